package common

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Input   InputConfig   `mapstructure:"input"`
	Prompt  PromptConfig  `mapstructure:"prompt"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Export  ExportConfig  `mapstructure:"export"`
	OCR     OCRConfig     `mapstructure:"ocr"`
	Journal JournalConfig `mapstructure:"journal"`
	Log     LogConfig     `mapstructure:"log"`
}

// InputConfig controls document discovery
type InputConfig struct {
	Dir        string   `mapstructure:"dir"`
	Recursive  bool     `mapstructure:"recursive"`
	SkipHidden bool     `mapstructure:"skip_hidden"`
	Extensions []string `mapstructure:"extensions"`
}

// PromptConfig points at the prompt template
type PromptConfig struct {
	Path          string `mapstructure:"path"`
	MaxInputChars int    `mapstructure:"max_input_chars"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // gemini | vertex | openai
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ProjectID   string        `mapstructure:"project_id"`
	Region      string        `mapstructure:"region"`
}

// BatchConfig bounds concurrency and retries
type BatchConfig struct {
	Workers           int           `mapstructure:"workers"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BaseBackoff       time.Duration `mapstructure:"base_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	DocumentTimeout   time.Duration `mapstructure:"document_timeout"`
}

// ExportConfig describes the template workbook and the output
type ExportConfig struct {
	TemplatePath string `mapstructure:"template_path"`
	OutputPath   string `mapstructure:"output_path"`
	Sheet        string `mapstructure:"sheet"`
	StartRow     int    `mapstructure:"start_row"`
	LayoutPath   string `mapstructure:"layout_path"`
}

// OCRConfig holds OCR-fallback configuration
type OCRConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Pdftoppm  string `mapstructure:"pdftoppm"`
	Tesseract string `mapstructure:"tesseract"`
	Lang      string `mapstructure:"lang"`
	DPI       int    `mapstructure:"dpi"`
	MaxPages  int    `mapstructure:"max_pages"` // 0 = every page
	PSM       int    `mapstructure:"psm"`
}

// JournalConfig enables the SQLite run journal when Path is set
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"

	DefaultConfigFile = "caba.yaml"
	DefaultPromptFile = "prompt.txt"
	envPrefix         = "CABA"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("input.dir", "pdf")
	v.SetDefault("input.recursive", false)
	v.SetDefault("input.skip_hidden", true)
	v.SetDefault("input.extensions", []string{"pdf"})

	v.SetDefault("prompt.path", DefaultPromptFile)
	v.SetDefault("prompt.max_input_chars", 20000)

	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.project_id", "")
	v.SetDefault("llm.region", "us-central1")

	v.SetDefault("batch.workers", 3)
	v.SetDefault("batch.max_retries", 3)
	v.SetDefault("batch.base_backoff", time.Second)
	v.SetDefault("batch.max_backoff", 30*time.Second)
	v.SetDefault("batch.requests_per_minute", 0)
	v.SetDefault("batch.document_timeout", 3*time.Minute)

	v.SetDefault("export.template_path", "base.xlsx")
	v.SetDefault("export.output_path", "output.xlsx")
	v.SetDefault("export.sheet", "Cab-Usage")
	v.SetDefault("export.start_row", 9) // first data row of the stock Cab-Usage template
	v.SetDefault("export.layout_path", "")

	v.SetDefault("ocr.enabled", false)
	v.SetDefault("ocr.pdftoppm", "pdftoppm")
	v.SetDefault("ocr.tesseract", "tesseract")
	v.SetDefault("ocr.lang", "eng")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max_pages", 0)
	v.SetDefault("ocr.psm", 6)

	v.SetDefault("journal.path", "")
	v.SetDefault("log.level", "info")
}

// LoadConfig reads defaults, then the config file (path, or caba.yaml in the
// working directory when path is empty), then CABA_* environment variables
// (a .env file in the working directory is loaded into the environment first).
// A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	// a .env beside the binary may carry the API key; real env vars win
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("caba")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, NewAppError(KindConfig, "read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError(KindConfig, "decode config", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerAPIKey(cfg.LLM.Provider)
	}
	return &cfg, nil
}

// providerAPIKey falls back to the variable each provider documents.
func providerAPIKey(provider string) string {
	switch provider {
	case ProviderGemini:
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

// SaveConfig persists the user-facing paths so the next run can reuse them.
// The API key is only written when includeAPIKey is set.
func SaveConfig(cfg *Config, path string, includeAPIKey bool) error {
	if path == "" {
		path = DefaultConfigFile
	}
	v := viper.New()
	v.Set("input.dir", cfg.Input.Dir)
	v.Set("input.recursive", cfg.Input.Recursive)
	v.Set("prompt.path", cfg.Prompt.Path)
	v.Set("export.template_path", cfg.Export.TemplatePath)
	v.Set("export.output_path", cfg.Export.OutputPath)
	v.Set("export.sheet", cfg.Export.Sheet)
	v.Set("export.start_row", cfg.Export.StartRow)
	if cfg.Export.LayoutPath != "" {
		v.Set("export.layout_path", cfg.Export.LayoutPath)
	}
	v.Set("llm.provider", cfg.LLM.Provider)
	if cfg.LLM.Model != "" {
		v.Set("llm.model", cfg.LLM.Model)
	}
	if includeAPIKey && cfg.LLM.APIKey != "" {
		v.Set("llm.api_key", cfg.LLM.APIKey)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return NewAppError(KindConfig, "save config "+path, err)
	}
	return nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return NewConfigError(fmt.Sprintf("an API key is required for provider %q", c.LLM.Provider))
		}
	case ProviderVertex:
		if c.LLM.ProjectID == "" || c.LLM.Region == "" {
			return NewConfigError("llm.project_id and llm.region are required for provider \"vertex\"")
		}
	default:
		return NewConfigError(fmt.Sprintf("unknown llm.provider %q (want gemini, vertex or openai)", c.LLM.Provider))
	}
	if strings.TrimSpace(c.Input.Dir) == "" {
		return NewConfigError("input.dir is required")
	}
	if strings.TrimSpace(c.Export.OutputPath) == "" {
		return NewConfigError("export.output_path is required")
	}
	if c.Batch.Workers < 1 {
		return NewConfigError("batch.workers must be at least 1")
	}
	if c.Batch.MaxRetries < 0 {
		return NewConfigError("batch.max_retries must not be negative")
	}
	if c.Batch.RequestsPerMinute < 0 {
		return NewConfigError("batch.requests_per_minute must not be negative")
	}
	if c.Export.StartRow < 0 {
		return NewConfigError("export.start_row must not be negative")
	}
	return nil
}

// LogLevel maps log.level onto slog, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
