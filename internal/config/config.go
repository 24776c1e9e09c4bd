package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Storage   StorageConfig
	WhatsApp  WhatsAppConfig
	Clinic    ClinicConfig
	Retrieval RetrievalConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	ChatModel       string
	EmbedModel      string
	EmbedDimensions int
}

type StorageConfig struct {
	DataDir string
}

type WhatsAppConfig struct {
	APIBaseURL    string
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
}

type ClinicConfig struct {
	DemoClinicID string
	DemoName     string
}

type RetrievalConfig struct {
	TopK int
}

type LogConfig struct {
	Level string
}

// DemoClinicID scopes every request until real multi-clinic onboarding exists.
const DemoClinicID = "00000000-0000-0000-0000-000000000001"

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		OpenAI: OpenAIConfig{
			BaseURL:         "https://api.openai.com/v1",
			ChatModel:       "gpt-4o-mini",
			EmbedModel:      "text-embedding-3-small",
			EmbedDimensions: 1536,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		WhatsApp: WhatsAppConfig{
			APIBaseURL: "https://graph.facebook.com/v19.0",
		},
		Clinic: ClinicConfig{
			DemoClinicID: DemoClinicID,
			DemoName:     "Clínica Demo",
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aura"
	}
	return filepath.Join(home, ".aura")
}

// Load reads configuration from an optional YAML file, a .env file in the
// working directory (if present), and AURA_* environment variables. Later
// sources win: file values override defaults, environment overrides both.
// filePath may be empty, in which case only defaults and environment apply.
func Load(filePath string) (Config, error) {
	// Best effort: a missing .env is not an error.
	_ = godotenv.Load()

	cfg := defaults()

	if filePath != "" {
		if err := applyFile(&cfg, filePath); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. " +
			"Set it via the AURA_OPENAI_API_KEY environment variable or the openai.api_key config file entry")
	}

	return cfg, nil
}
