package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
)

// Config aggregates every setting of the service.
type Config struct {
	Env     string
	Log     LogConfig
	Server  ServerConfig
	Backend BackendConfig
	AI      AIConfig
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:     getEnvOrDefault("APP_ENV", "development"),
		Log:     LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
		Server:  server,
		Backend: backend,
		AI:      ai,
	}, nil
}

// IsDevelopment reports whether human-readable console logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level string
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	MaxUploadBytes int64
	// Widgets with no live binding are unmounted after WidgetIdleTTL.
	WidgetIdleTTL time.Duration
	ReapInterval  time.Duration
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// Accept ":8080" or "127.0.0.1:8080" as well.
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		addr = ":" + port
	}

	maxUpload, err := parseOptionalIntEnv("MAX_UPLOAD_BYTES")
	if err != nil {
		return ServerConfig{}, err
	}
	maxUploadBytes := int64(10 << 20)
	if maxUpload != nil && *maxUpload > 0 {
		maxUploadBytes = int64(*maxUpload)
	}

	idleTTL, err := parseOptionalDurationEnv("WIDGET_IDLE_TTL")
	if err != nil {
		return ServerConfig{}, err
	}
	reapInterval, err := parseOptionalDurationEnv("WIDGET_REAP_INTERVAL")
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{
		Addr:           addr,
		AllowedOrigins: parseListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxUploadBytes: maxUploadBytes,
		WidgetIdleTTL:  30 * time.Minute,
		ReapInterval:   time.Minute,
	}
	if idleTTL != nil && *idleTTL > 0 {
		cfg.WidgetIdleTTL = *idleTTL
	}
	if reapInterval != nil && *reapInterval > 0 {
		cfg.ReapInterval = *reapInterval
	}
	return cfg, nil
}

// BackendConfig points at the recommendation backend.
type BackendConfig struct {
	BaseURL string
	// Timeout of zero leaves backend calls unbounded.
	Timeout time.Duration
}

func loadBackendConfig() (BackendConfig, error) {
	timeout, err := parseOptionalDurationEnv("BACKEND_TIMEOUT")
	if err != nil {
		return BackendConfig{}, err
	}

	cfg := BackendConfig{
		BaseURL: strings.TrimRight(getEnvOrDefault("BACKEND_BASE_URL", "http://localhost:8000"), "/"),
	}
	if timeout != nil {
		cfg.Timeout = *timeout
	}
	return cfg, nil
}

// Language model providers.
const (
	ProviderNone   = ""
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// AIConfig describes the optional in-process language model used for intent
// classification and chat replies.
type AIConfig struct {
	Provider string

	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	MaxTokens   *int

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
}

// Enabled reports whether the selected provider has the credentials it needs.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	case ProviderOpenAI:
		return c.OpenAIKey != "" && c.OpenAIModel != ""
	default:
		return false
	}
}

// NewChatModel creates an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY and Model, or ARK_ACCESS_KEY and ARK_SECRET_KEY")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))
	switch provider {
	case ProviderNone, ProviderArk, ProviderOpenAI:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q: want ark or openai", provider)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:      provider,
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         strings.TrimSpace(os.Getenv("Model")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:   temperature,
		MaxTokens:     maxTokens,
		OpenAIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	var out []string
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return nil, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("invalid %s value %q: must not be negative", key, value)
	}
	return &val, nil
}

func lookupTrimmed(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value := strings.TrimSpace(raw)
	return value, value != ""
}
