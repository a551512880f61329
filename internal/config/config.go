package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the exponent CLI and local API server.
type Config struct {
	Root    string        `mapstructure:"root"`
	Server  ServerConfig  `mapstructure:"server"`
	CodeGen CodeGenConfig `mapstructure:"codegen"`
	Storage StorageConfig `mapstructure:"storage"`
	Modal   ModalConfig   `mapstructure:"modal"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	Train   TrainConfig   `mapstructure:"train"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// CodeGenConfig configures the code generation endpoint (OpenAI-compatible
// chat completions API).
type CodeGenConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// StorageConfig configures the S3-compatible bucket used for cloud training
// dataset uploads.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ModalConfig configures the serverless execution backend.
type ModalConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	TokenID     string        `mapstructure:"token_id"`
	TokenSecret string        `mapstructure:"token_secret"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type GitHubConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// OAuthProviderConfig holds one provider's client credentials and endpoints.
type OAuthProviderConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	AuthURL      string `mapstructure:"auth_url"`
	TokenURL     string `mapstructure:"token_url"`
	Scopes       string `mapstructure:"scopes"`
}

type OAuthConfig struct {
	CallbackPort int                 `mapstructure:"callback_port"`
	Timeout      time.Duration       `mapstructure:"timeout"`
	Google       OAuthProviderConfig `mapstructure:"google"`
	GitHub       OAuthProviderConfig `mapstructure:"github"`
}

// TrainConfig configures the training dispatcher.
type TrainConfig struct {
	Python string `mapstructure:"python"`
	DBPath string `mapstructure:"db_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultRoot returns the per-user root directory holding projects,
// credentials, and the job index.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".exponent"
	}
	return filepath.Join(home, ".exponent")
}

// Load reads configuration from an optional config file, .env file, and
// environment variables. Environment variables override file values.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultRoot())
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("root", DefaultRoot())
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("codegen.base_url", "https://api.openai.com/v1")
	v.SetDefault("codegen.model", "gpt-4o-mini")
	v.SetDefault("codegen.timeout", 60*time.Second)
	v.SetDefault("codegen.max_retries", 3)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("modal.base_url", "https://api.modal.com/v1")
	v.SetDefault("modal.timeout", 30*time.Second)
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("oauth.callback_port", 8765)
	v.SetDefault("oauth.timeout", 120*time.Second)
	v.SetDefault("oauth.google.auth_url", "https://accounts.google.com/o/oauth2/v2/auth")
	v.SetDefault("oauth.google.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("oauth.google.scopes", "openid email profile")
	v.SetDefault("oauth.github.auth_url", "https://github.com/login/oauth/authorize")
	v.SetDefault("oauth.github.token_url", "https://github.com/login/oauth/access_token")
	v.SetDefault("oauth.github.scopes", "repo read:user")
	v.SetDefault("train.python", "python3")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("codegen.api_key", "OPENAI_API_KEY")
	v.BindEnv("codegen.base_url", "CODEGEN_BASE_URL")
	v.BindEnv("codegen.model", "CODEGEN_MODEL")
	v.BindEnv("codegen.timeout", "API_TIMEOUT")
	v.BindEnv("codegen.max_retries", "MAX_RETRIES")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "AWS_ACCESS_KEY_ID")
	v.BindEnv("storage.secret_key", "AWS_SECRET_ACCESS_KEY")
	v.BindEnv("storage.region", "AWS_REGION")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("modal.base_url", "MODAL_BASE_URL")
	v.BindEnv("modal.token_id", "MODAL_TOKEN_ID")
	v.BindEnv("modal.token_secret", "MODAL_TOKEN_SECRET")
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("oauth.google.client_id", "GOOGLE_CLIENT_ID")
	v.BindEnv("oauth.google.client_secret", "GOOGLE_CLIENT_SECRET")
	v.BindEnv("oauth.github.client_id", "GITHUB_CLIENT_ID")
	v.BindEnv("oauth.github.client_secret", "GITHUB_CLIENT_SECRET")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Train.DBPath == "" {
		cfg.Train.DBPath = filepath.Join(cfg.Root, "jobs.db")
	}

	return &cfg, nil
}
