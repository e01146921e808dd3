package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabaseDriver    string
	DatabasePath      string
	DatabaseURL       string
	SessionSecret     string
	GinMode           string
	LogLevel          string
	LogEncoding       string
	SuperRootEmail    string
	SuperRootPassword string

	YouTubeAPIKey     string
	YouTubeAPIBaseURL string
	MetadataCacheTTL  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StatsTimezone           string
	StatsWeekStart          time.Weekday
	StatsWorkers            int
	StatsCronSpec           string
	StatsFreezeClosedWindow bool
	CronSecret              string

	// Warnings 记录被忽略的非法取值，由调用方负责输出。
	Warnings []string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	var cfg AppConfig

	cfg.Port = env("PORT", "8080")
	cfg.ListenAddr = env("LISTEN_ADDR", fmt.Sprintf(":%s", cfg.Port))
	cfg.DatabaseDriver = strings.ToLower(env("DATABASE_DRIVER", "sqlite"))
	cfg.DatabasePath = env("DATABASE_PATH", "helpyt.db")
	cfg.DatabaseURL = env("DATABASE_URL", "")
	cfg.SessionSecret = env("SESSION_SECRET", "helpyt-dev-secret")
	cfg.GinMode = env("GIN_MODE", "release")
	cfg.LogLevel = strings.ToLower(env("LOG_LEVEL", "info"))
	cfg.LogEncoding = env("LOG_ENCODING", "json")
	cfg.SuperRootEmail = env("SUPER_ROOT_EMAIL", "")
	cfg.SuperRootPassword = env("SUPER_ROOT_PASSWORD", "")

	cfg.YouTubeAPIKey = env("YOUTUBE_API_KEY", "")
	cfg.YouTubeAPIBaseURL = env("YOUTUBE_API_BASE_URL", "https://www.googleapis.com/youtube/v3")
	cfg.MetadataCacheTTL = cfg.duration("METADATA_CACHE_TTL", 24*time.Hour)

	cfg.RedisAddr = env("REDIS_ADDR", "")
	cfg.RedisPassword = env("REDIS_PASSWORD", "")
	cfg.RedisDB = cfg.integer("REDIS_DB", 0, 0)

	cfg.StatsTimezone = env("STATS_TIMEZONE", "UTC")
	if _, err := time.LoadLocation(cfg.StatsTimezone); err != nil {
		cfg.warn("STATS_TIMEZONE", cfg.StatsTimezone)
		cfg.StatsTimezone = "UTC"
	}
	cfg.StatsWeekStart = cfg.weekday("STATS_WEEK_START", time.Sunday)
	cfg.StatsWorkers = cfg.integer("STATS_WORKERS", 8, 1)
	cfg.StatsCronSpec = env("STATS_CRON_SPEC", "")
	cfg.StatsFreezeClosedWindow = cfg.boolean("STATS_FREEZE_CLOSED_WINDOWS", true)
	cfg.CronSecret = env("CRON_SECRET", "")

	if cfg.DatabaseDriver != "sqlite" && cfg.DatabaseDriver != "postgres" {
		cfg.warn("DATABASE_DRIVER", cfg.DatabaseDriver)
		cfg.DatabaseDriver = "sqlite"
	}

	return cfg
}

// DSN 返回当前驱动对应的连接串。
func (c AppConfig) DSN() string {
	if c.DatabaseDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DatabasePath
}

// StatsLocation 返回统计窗口使用的时区，非法值回退 UTC。
func (c AppConfig) StatsLocation() *time.Location {
	loc, err := time.LoadLocation(c.StatsTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func env(key, def string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	return value
}

func (c *AppConfig) warn(key, value string) {
	c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring invalid %s=%q", key, value))
}

func (c *AppConfig) duration(key string, def time.Duration) time.Duration {
	raw := env(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		c.warn(key, raw)
		return def
	}
	return d
}

func (c *AppConfig) integer(key string, def, min int) int {
	raw := env(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		c.warn(key, raw)
		return def
	}
	return n
}

func (c *AppConfig) boolean(key string, def bool) bool {
	raw := env(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		c.warn(key, raw)
		return def
	}
	return b
}

func (c *AppConfig) weekday(key string, def time.Weekday) time.Weekday {
	raw := strings.ToLower(env(key, ""))
	if raw == "" {
		return def
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if raw == name || raw == name[:3] {
			return d
		}
	}
	c.warn(key, raw)
	return def
}
