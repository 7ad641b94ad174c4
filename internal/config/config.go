package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr            string
	Port                  string
	DatabaseDriver        string
	DatabaseDSN           string
	RedisURL              string
	DedupBackend          string
	DedupMemorySize       int
	SessionSecret         string
	GinMode               string
	IdentitySalt          string
	TrustForwardedHeaders bool
	Location              *time.Location
	LogLevel              string
	LogFormat             string
	CORSAllowedOrigins    []string
	SuperRootUserName     string
	SuperRootPassword     string
}

const (
	DedupBackendRedis  = "redis"
	DedupBackendMemory = "memory"
	DedupBackendNone   = "none"
)

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 当前目录存在 .env 时会先加载它，已存在的环境变量不会被覆盖。
func Load() AppConfig {
	_ = godotenv.Load()

	port := env("PORT", "8080")
	listenAddr := env("LISTEN_ADDR", fmt.Sprintf(":%s", port))

	databaseDSN := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	if databaseDSN == "" {
		databaseDSN = env("DATABASE_PATH", "engagement.db")
	}

	redisURL := strings.TrimSpace(os.Getenv("REDIS_URL"))

	dedupBackend := strings.ToLower(strings.TrimSpace(os.Getenv("DEDUP_BACKEND")))
	switch dedupBackend {
	case DedupBackendRedis, DedupBackendMemory, DedupBackendNone:
	default:
		if redisURL != "" {
			dedupBackend = DedupBackendRedis
		} else {
			dedupBackend = DedupBackendMemory
		}
	}

	location := time.Local
	if tz := strings.TrimSpace(os.Getenv("TIMEZONE")); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			location = loc
		}
	}

	return AppConfig{
		ListenAddr:            listenAddr,
		Port:                  port,
		DatabaseDriver:        env("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:           databaseDSN,
		RedisURL:              redisURL,
		DedupBackend:          dedupBackend,
		DedupMemorySize:       envInt("DEDUP_MEMORY_SIZE", 100000),
		SessionSecret:         env("SESSION_SECRET", "engagement-dev-secret"),
		GinMode:               env("GIN_MODE", "release"),
		IdentitySalt:          env("IDENTITY_SALT", "engagement-dev-salt"),
		TrustForwardedHeaders: envBool("TRUST_FORWARDED_HEADERS", true),
		Location:              location,
		LogLevel:              env("LOG_LEVEL", "info"),
		LogFormat:             env("LOG_FORMAT", "text"),
		CORSAllowedOrigins:    envList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		SuperRootUserName:     strings.TrimSpace(os.Getenv("SUPER_ROOT_USER_NAME")),
		SuperRootPassword:     strings.TrimSpace(os.Getenv("SUPER_ROOT_PASSWORD")),
	}
}

// ServerAddr 返回 http.Server 监听地址。LISTEN_ADDR 自带端口时原样使用，只给主机时与 PORT 拼接。
func (c AppConfig) ServerAddr() string {
	addr := strings.TrimSpace(c.ListenAddr)
	if addr == "" {
		return net.JoinHostPort("", c.Port)
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, c.Port)
}

func env(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return value
}

func envList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
