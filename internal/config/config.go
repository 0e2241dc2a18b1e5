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
	Server  ServerConfig
	AI      AIConfig
	Media   MediaConfig
	Archive ArchiveConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	media, err := loadMediaConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Media:   media,
		Archive: loadArchiveConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述 Gemini 相关配置。APIKey 是服务端兜底凭证，
// 会话创建时客户端可以携带自己的 key 覆盖它。
type AIConfig struct {
	APIKey       string
	Model        string
	VideoModel   string
	Temperature  *float32
	SystemPrompt string
}

// Enabled 表示是否提供了服务端兜底凭证。
func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloat32Env("GEMINI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:        getEnvOrDefault("GEMINI_CHAT_MODEL", "gemini-exp-1206"),
		VideoModel:   getEnvOrDefault("GEMINI_VIDEO_MODEL", "gemini-1.5-pro"),
		Temperature:  temperature,
		SystemPrompt: getEnvOrDefault("GEMINI_SYSTEM_PROMPT", "You are a helpful AI assistant."),
	}, nil
}

// MediaConfig 描述媒体上传与远端处理轮询的配置。
type MediaConfig struct {
	PollInterval  time.Duration
	PollMaxWait   time.Duration
	CheckRetries  int
	CheckBackoff  time.Duration
	MaxImageBytes int64
	MaxVideoBytes int64
	TempDir       string
}

func loadMediaConfig() (MediaConfig, error) {
	interval, err := parseDurationEnv("MEDIA_POLL_INTERVAL", 10*time.Second)
	if err != nil {
		return MediaConfig{}, err
	}

	maxWait, err := parseDurationEnv("MEDIA_POLL_MAX_WAIT", 10*time.Minute)
	if err != nil {
		return MediaConfig{}, err
	}

	backoff, err := parseDurationEnv("MEDIA_POLL_CHECK_BACKOFF", 2*time.Second)
	if err != nil {
		return MediaConfig{}, err
	}

	retries, err := parseIntEnv("MEDIA_POLL_CHECK_RETRIES", 3)
	if err != nil {
		return MediaConfig{}, err
	}

	maxImage, err := parseInt64Env("MEDIA_MAX_IMAGE_BYTES", 10<<20)
	if err != nil {
		return MediaConfig{}, err
	}

	maxVideo, err := parseInt64Env("MEDIA_MAX_VIDEO_BYTES", 200<<20)
	if err != nil {
		return MediaConfig{}, err
	}

	return MediaConfig{
		PollInterval:  interval,
		PollMaxWait:   maxWait,
		CheckRetries:  retries,
		CheckBackoff:  backoff,
		MaxImageBytes: maxImage,
		MaxVideoBytes: maxVideo,
		TempDir:       getEnvOrDefault("MEDIA_TEMP_DIR", ""),
	}, nil
}

// ArchiveConfig 描述会话存档目录配置。
type ArchiveConfig struct {
	Dir string
}

func loadArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Dir: getEnvOrDefault("ARCHIVE_DIR", "conversations"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseInt64Env(key string, defaultValue int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
