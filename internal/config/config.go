package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Провайдеры, поддерживаемые сервисом.
const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderYandex  = "yandex"
	ProviderMistral = "mistral"
)

// Config конфигурация процесса. Собирается один раз при старте
// и передаётся вниз явно — компоненты не читают окружение сами.
type Config struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	LogLevel       string        `mapstructure:"log_level"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Provider выбирает единственный активный адаптер на деплоймент.
	Provider string `mapstructure:"provider"`

	HistoryLimit int           `mapstructure:"history_limit"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`

	Store   StoreConfig   `mapstructure:"store"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Mistral MistralConfig `mapstructure:"mistral"`
	Yandex  YandexConfig  `mapstructure:"yandex"`
}

// StoreConfig настройки blob-хранилища сессий.
type StoreConfig struct {
	Type string `mapstructure:"type"` // "memory", "file" или "sqlite"
	Path string `mapstructure:"path"` // путь к файлу для file/sqlite
}

type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey                  string `mapstructure:"api_key"`
	BaseURL                 string `mapstructure:"base_url"`
	Model                   string `mapstructure:"model"`
	FallbackModel           string `mapstructure:"fallback_model"`
	TranscribeModel         string `mapstructure:"transcribe_model"`
	TranscribeFallbackModel string `mapstructure:"transcribe_fallback_model"`
}

type MistralConfig struct {
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	Model         string `mapstructure:"model"`
	FallbackModel string `mapstructure:"fallback_model"`
}

type YandexConfig struct {
	APIKey     string `mapstructure:"api_key"`
	FolderID   string `mapstructure:"folder_id"`
	BaseURL    string `mapstructure:"base_url"`
	STTBaseURL string `mapstructure:"stt_base_url"`
	Model      string `mapstructure:"model"`

	// Параметры SpeechKit-распознавания.
	Language    string `mapstructure:"language"`
	AudioFormat string `mapstructure:"audio_format"`
	SampleRate  int    `mapstructure:"sample_rate"`
}

const envPrefix = "COURSEASSIST"

// Load читает конфигурацию: значения по умолчанию, затем config.yaml
// (если есть), затем переменные окружения COURSEASSIST_*.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Файл конфигурации опционален, окружения достаточно.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", "60s")

	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("history_limit", 20)
	v.SetDefault("session_ttl", "60m")

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.path", "data/sessions")

	// Пустые значения по умолчанию, чтобы viper связал ключи
	// с переменными окружения при Unmarshal.
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("mistral.api_key", "")
	v.SetDefault("yandex.api_key", "")
	v.SetDefault("yandex.folder_id", "")

	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-1.5-flash")

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.fallback_model", "gpt-3.5-turbo")
	v.SetDefault("openai.transcribe_model", "gpt-4o-mini-transcribe")
	v.SetDefault("openai.transcribe_fallback_model", "whisper-1")

	v.SetDefault("mistral.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("mistral.model", "mistral-small-latest")
	v.SetDefault("mistral.fallback_model", "open-mistral-7b")

	v.SetDefault("yandex.base_url", "https://llm.api.cloud.yandex.net")
	v.SetDefault("yandex.stt_base_url", "https://stt.api.cloud.yandex.net")
	v.SetDefault("yandex.model", "yandexgpt-lite")
	v.SetDefault("yandex.language", "ru-RU")
	v.SetDefault("yandex.audio_format", "oggopus")
	v.SetDefault("yandex.sample_rate", 48000)
}

func validate(cfg Config) error {
	switch cfg.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderYandex, ProviderMistral:
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	switch cfg.Store.Type {
	case "memory":
	case "file", "sqlite":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for store type %q", cfg.Store.Type)
		}
	default:
		return fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}

	if cfg.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", cfg.HistoryLimit)
	}
	return nil
}
