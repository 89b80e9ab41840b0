package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderDoubao = "doubao"
	ProviderQwen   = "qwen"
	ProviderGemini = "gemini"
)

var (
	ErrMissingCredential = errors.New("provider credential is not configured")
	ErrUnknownProvider   = errors.New("unsupported model provider")
)

const defaultSystemPrompt = "You are Mety, a personal AI study assistant for students. " +
	"You help students understand complex topics, create study plans, generate practice questions, and summarize content. " +
	"Be friendly, encouraging, and provide clear explanations with examples when possible. " +
	"Keep responses concise but informative."

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Model  ModelConfig  `mapstructure:"model"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Doubao DoubaoConfig `mapstructure:"doubao"`
	Qwen   QwenConfig   `mapstructure:"qwen"`
	Gemini GeminiConfig `mapstructure:"gemini"`
	Chat   ChatConfig   `mapstructure:"chat"`
	Client ClientConfig `mapstructure:"client"`
	CORS   CORSConfig   `mapstructure:"cors"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type ModelConfig struct {
	Provider string `mapstructure:"provider"`
}

type OpenAIConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	Model        string `mapstructure:"model"`
	DebugRequest bool   `mapstructure:"debug_request"`
}

type DoubaoConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type QwenConfig struct {
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	Model        string  `mapstructure:"model"`
	TopP         float32 `mapstructure:"top_p"`
	DebugRequest bool    `mapstructure:"debug_request"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ChatConfig holds the fixed generation policy applied to every provider call.
type ChatConfig struct {
	SystemPrompt    string        `mapstructure:"system_prompt"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Temperature     float32       `mapstructure:"temperature"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
}

// ClientConfig is read by chat clients, never by the backend.
type ClientConfig struct {
	Mode         string        `mapstructure:"mode"`
	BaseURL      string        `mapstructure:"base_url"`
	HistoryLimit int           `mapstructure:"history_limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	// Every key needs a default so AutomaticEnv can override it on Unmarshal.
	v.SetDefault("model.provider", ProviderOpenAI)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.debug_request", false)
	v.SetDefault("doubao.api_key", "")
	v.SetDefault("doubao.base_url", "")
	v.SetDefault("doubao.model", "")
	v.SetDefault("qwen.api_key", "")
	v.SetDefault("qwen.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("qwen.model", "qwen-plus")
	v.SetDefault("qwen.top_p", 0.8)
	v.SetDefault("qwen.debug_request", false)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")

	v.SetDefault("chat.system_prompt", defaultSystemPrompt)
	v.SetDefault("chat.max_tokens", 1000)
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.provider_timeout", 30*time.Second)

	v.SetDefault("client.mode", "remote")
	v.SetDefault("client.base_url", "http://localhost:5000")
	v.SetDefault("client.history_limit", 10)
	v.SetDefault("client.timeout", 30*time.Second)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from defaults, an optional YAML file, a .env file
// in the working directory and the process environment, in increasing order of
// precedence. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("METY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "METY_SERVER_PORT", "PORT")
	_ = v.BindEnv("client.base_url", "METY_CLIENT_BASE_URL", "METY_API_URL")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// The config file wins; fall back to the conventional provider variables.
	// The first variable that is set wins.
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = firstEnv(openAIKeyEnv...)
	}
	if cfg.Doubao.APIKey == "" {
		cfg.Doubao.APIKey = firstEnv(doubaoKeyEnv...)
	}
	if cfg.Qwen.APIKey == "" {
		cfg.Qwen.APIKey = firstEnv(qwenKeyEnv...)
	}
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = firstEnv(geminiKeyEnv...)
	}

	cfg.Model.Provider = strings.ToLower(strings.TrimSpace(cfg.Model.Provider))

	return cfg, nil
}

var (
	openAIKeyEnv = []string{"OPENAI_API_KEY"}
	doubaoKeyEnv = []string{"ARK_API_KEY", "DOUBAO_API_KEY"}
	qwenKeyEnv   = []string{"DASHSCOPE_API_KEY"}
	geminiKeyEnv = []string{"GEMINI_API_KEY"}
)

func firstEnv(names ...string) string {
	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			return value
		}
	}
	return ""
}

// Validate checks what the backend needs before it may accept requests: a
// known provider and that provider's credential.
func (c *Config) Validate() error {
	var key string
	var envNames []string
	switch c.Model.Provider {
	case ProviderOpenAI:
		key, envNames = c.OpenAI.APIKey, openAIKeyEnv
	case ProviderDoubao:
		key, envNames = c.Doubao.APIKey, doubaoKeyEnv
	case ProviderQwen:
		key, envNames = c.Qwen.APIKey, qwenKeyEnv
	case ProviderGemini:
		key, envNames = c.Gemini.APIKey, geminiKeyEnv
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Model.Provider)
	}

	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: set %s in the environment or .env file",
			ErrMissingCredential, strings.Join(envNames, " or "))
	}
	if c.Chat.ProviderTimeout <= 0 {
		return fmt.Errorf("chat.provider_timeout must be positive, got %s", c.Chat.ProviderTimeout)
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("chat.max_tokens must be positive, got %d", c.Chat.MaxTokens)
	}
	return nil
}
