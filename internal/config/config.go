package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Provider names accepted by LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
)

// Context modes accepted by CHAT_CONTEXT_MODE.
const (
	// ContextSingle sends only the latest user message to the model.
	ContextSingle = "single"
	// ContextConversation sends the persona prompt and the session transcript along with it.
	ContextConversation = "conversation"
)

const (
	defaultChatHost    = "http://localhost:8000"
	defaultLandingPort = "5000"
	defaultChatPort    = "8000"
	defaultOpenAIModel = "gpt-3.5-turbo"
	defaultGeminiModel = "gemini-2.0-flash"
)

// Config aggregates every setting of both services.
type Config struct {
	Landing LandingConfig
	Chat    ChatConfig
	AI      AIConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	landing, err := loadLandingConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	metrics, err := loadMetricsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Landing: landing,
		Chat:    chat,
		AI:      ai,
		Log:     loadLogConfig(),
		Metrics: metrics,
	}, nil
}

// LoadDotEnv loads ENV_FILE, or .env from the working directory, into the
// process environment. Variables already set are left untouched. A missing
// file is reported with ok=false and no error.
func LoadDotEnv() (path string, ok bool, err error) {
	path = getEnvOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, false, nil
		}
		return path, false, fmt.Errorf("load %s: %w", path, err)
	}
	return path, true, nil
}

// ServerConfig is an HTTP listen address.
type ServerConfig struct {
	Addr string
}

// LandingConfig configures the landing page process.
type LandingConfig struct {
	Server ServerConfig
	// ChatHost is the chat service base URL used as the redirect target.
	ChatHost string
}

// ChatConfig configures the chat session host.
type ChatConfig struct {
	Server ServerConfig
	// PersonaFromQuery selects the session persona from the ?therapist= query
	// parameter. When false every session starts with the default persona.
	PersonaFromQuery bool
	ContextMode      string
	PersonaFile      string
}

// LogConfig drives internal/logging.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the prometheus endpoint and token accounting.
type MetricsConfig struct {
	Enabled       bool
	TokenCounting bool
}

func loadLandingConfig() (LandingConfig, error) {
	server, err := loadServerConfig("FLASK_PORT", defaultLandingPort)
	if err != nil {
		return LandingConfig{}, err
	}

	return LandingConfig{Server: server, ChatHost: getEnvOrDefault("CHAINLIT_HOST", defaultChatHost)}, nil
}

func loadChatConfig() (ChatConfig, error) {
	server, err := loadServerConfig("CHAT_PORT", defaultChatPort)
	if err != nil {
		return ChatConfig{}, err
	}

	fromQuery, err := parseBoolEnv("CHAT_PERSONA_FROM_QUERY", false)
	if err != nil {
		return ChatConfig{}, err
	}

	mode := strings.ToLower(getEnvOrDefault("CHAT_CONTEXT_MODE", ContextSingle))
	switch mode {
	case ContextSingle, ContextConversation:
	default:
		return ChatConfig{}, fmt.Errorf("invalid CHAT_CONTEXT_MODE value: %q", mode)
	}

	return ChatConfig{
		Server:           server,
		PersonaFromQuery: fromQuery,
		ContextMode:      mode,
		PersonaFile:      strings.TrimSpace(os.Getenv("PERSONA_FILE")),
	}, nil
}

// loadServerConfig accepts a bare port or a host:port address.
func loadServerConfig(key, defaultPort string) (ServerConfig, error) {
	port := getEnvOrDefault(key, defaultPort)

	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid %s value: %q", key, port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig selects and configures the completion provider.
type AIConfig struct {
	Provider string
	Model    string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	ArkAPIKey    string
	ArkAccessKey string
	ArkSecretKey string
	ArkBaseURL   string
	ArkRegion    string

	GeminiAPIKey  string
	GeminiBaseURL string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the selected provider has enough configuration to
// build a client. The OpenAI provider is always buildable; a missing key
// surfaces as an authentication failure on the first completion call.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return c.Model != ""
	case ProviderArk:
		return c.Model != "" && (c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != ""))
	case ProviderGemini:
		return c.Model != "" && c.GeminiAPIKey != ""
	default:
		return false
	}
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderOpenAI))
	var defaultModel string
	switch provider {
	case ProviderOpenAI:
		defaultModel = defaultOpenAIModel
	case ProviderGemini:
		defaultModel = defaultGeminiModel
	case ProviderArk:
		// Ark has no default model; the endpoint id must be configured.
	default:
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value: %q", provider)
	}

	return AIConfig{
		Provider:      provider,
		Model:         getEnvOrDefault("LLM_MODEL", defaultModel),
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		ArkAPIKey:     strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkAccessKey:  strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey:  strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkBaseURL:    getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:     getEnvOrDefault("ARK_REGION", "cn-beijing"),
		GeminiAPIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL: strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
	}, nil
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
	}
}

func loadMetricsConfig() (MetricsConfig, error) {
	enabled, err := parseBoolEnv("METRICS_ENABLED", true)
	if err != nil {
		return MetricsConfig{}, err
	}

	tokens, err := parseBoolEnv("TOKEN_COUNTING", false)
	if err != nil {
		return MetricsConfig{}, err
	}

	return MetricsConfig{Enabled: enabled, TokenCounting: tokens}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
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
