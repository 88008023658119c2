package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Chat   ChatConfig
	Upload UploadConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	upload, err := loadUploadConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Log: logCfg, Chat: chat, Upload: upload}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr            string
	AllowedOrigin   string
	RateLimitPerMin int
	ShutdownTimeout time.Duration
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		addr = ":" + port
	}

	rateLimit, err := parseOptionalIntEnv("RATE_LIMIT_PER_MIN")
	if err != nil {
		return ServerConfig{}, err
	}
	perMin := 120
	if rateLimit != nil {
		perMin = *rateLimit
	}

	shutdown, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Addr:            addr,
		AllowedOrigin:   getEnvOrDefault("CORS_ALLOWED_ORIGIN", "*"),
		RateLimitPerMin: perMin,
		ShutdownTimeout: shutdown,
	}, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

// Development reports whether the console encoder should be used.
func (c LogConfig) Development() bool {
	return c.Format == "console"
}

func loadLogConfig() (LogConfig, error) {
	level := strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q", level)
	}

	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json"))
	if format != "json" && format != "console" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q", format)
	}

	return LogConfig{Level: level, Format: format}, nil
}

// ChatConfig 描述会话生命周期与“正在输入”模拟。
type ChatConfig struct {
	SessionTTL  time.Duration
	MaxSessions int
	DelayScale  float64
}

func loadChatConfig() (ChatConfig, error) {
	ttl, err := parseDurationEnv("CHAT_SESSION_TTL", 30*time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}

	maxSessions := 10000
	if override, err := parseOptionalIntEnv("CHAT_MAX_SESSIONS"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			maxSessions = 1
		} else {
			maxSessions = *override
		}
	}

	scale := 1.0
	if override, err := parseOptionalFloatEnv("CHAT_REPLY_DELAY_SCALE"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return ChatConfig{}, fmt.Errorf("invalid CHAT_REPLY_DELAY_SCALE value %v: must not be negative", *override)
		}
		scale = *override
	}

	return ChatConfig{SessionTTL: ttl, MaxSessions: maxSessions, DelayScale: scale}, nil
}

// UploadConfig 描述作业上传限制。
type UploadConfig struct {
	MaxBytes int64
}

func loadUploadConfig() (UploadConfig, error) {
	maxBytes := int64(32 << 20) // 32MB
	override, err := parseOptionalIntEnv("UPLOAD_MAX_BYTES")
	if err != nil {
		return UploadConfig{}, err
	}
	if override != nil {
		maxBytes = int64(*override)
	}
	return UploadConfig{MaxBytes: maxBytes}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
