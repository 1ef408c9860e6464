package config

import (
	"strings"
	"time"

	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/ifuryst/repurpose/pkg/logger"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logger     logger.Config    `yaml:"logger"`
	Auth       AuthConfig       `yaml:"auth"`
	LLM        LLMConfig        `yaml:"llm"`
	Processor  ProcessorConfig  `yaml:"processor"`
	Upload     UploadConfig     `yaml:"upload"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	Host        string   `yaml:"host"`
	Mode        string   `yaml:"mode"`
	CertFile    string   `yaml:"cert_file"`
	KeyFile     string   `yaml:"key_file"`
	Version     string   `yaml:"version"`
	Environment string   `yaml:"environment"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
	// Path is the database file when Type is sqlite
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	JWTAlgorithm string `yaml:"jwt_algorithm"`
	Issuer       string `yaml:"issuer"`
	Audience     string `yaml:"audience"`
	// TOTPSecret guards the operator endpoints, empty disables them
	TOTPSecret string `yaml:"totp_secret"`
}

type LLMConfig struct {
	Provider      string  `yaml:"provider"`
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	RetryAttempts int     `yaml:"retry_attempts"`
	RetryDelay    string  `yaml:"retry_delay"`
	Timeout       string  `yaml:"timeout"`
}

type ProcessorConfig struct {
	// Disabled keeps the server from running the engine in-process
	Disabled          bool   `yaml:"disabled"`
	BatchSize         int    `yaml:"batch_size"`
	PollInterval      string `yaml:"poll_interval"`
	ErrorBackoff      string `yaml:"error_backoff"`
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
	JobTimeout        string `yaml:"job_timeout"`
	RetryMaxAttempts  int    `yaml:"retry_max_attempts"`
	LeaseTimeout      string `yaml:"lease_timeout"`
	ReapInterval      string `yaml:"reap_interval"`
	// PersistenceMode is "partial" or "atomic"
	PersistenceMode string `yaml:"persistence_mode"`
}

type UploadConfig struct {
	MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	FetchTimeout      string   `yaml:"fetch_timeout"`
}

type StorageConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type MonitoringConfig struct {
	StatsInterval string `yaml:"stats_interval"`
	RetentionDays int    `yaml:"retention_days"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	return cfg, nil
}

// SetDefaults fills every unset field
func (cfg *Config) SetDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "1.0.0"
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "development"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000", "http://localhost:8000"}
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "repurpose.db"
	}

	if cfg.Auth.JWTAlgorithm == "" {
		cfg.Auth.JWTAlgorithm = "HS256"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "groq"
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "groq") {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3-8b-8192"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}
	if cfg.LLM.RetryAttempts == 0 {
		cfg.LLM.RetryAttempts = 3
	}
	if cfg.LLM.RetryDelay == "" {
		cfg.LLM.RetryDelay = "1s"
	}
	if cfg.LLM.Timeout == "" {
		cfg.LLM.Timeout = "60s"
	}

	if cfg.Processor.BatchSize == 0 {
		cfg.Processor.BatchSize = 5
	}
	if cfg.Processor.PollInterval == "" {
		cfg.Processor.PollInterval = "5s"
	}
	if cfg.Processor.ErrorBackoff == "" {
		cfg.Processor.ErrorBackoff = "10s"
	}
	if cfg.Processor.MaxConcurrentJobs == 0 {
		cfg.Processor.MaxConcurrentJobs = 1
	}
	if cfg.Processor.JobTimeout == "" {
		cfg.Processor.JobTimeout = "300s"
	}
	if cfg.Processor.RetryMaxAttempts == 0 {
		cfg.Processor.RetryMaxAttempts = 3
	}
	if cfg.Processor.LeaseTimeout == "" {
		cfg.Processor.LeaseTimeout = "6m"
	}
	if cfg.Processor.ReapInterval == "" {
		cfg.Processor.ReapInterval = "1m"
	}
	if cfg.Processor.PersistenceMode == "" {
		cfg.Processor.PersistenceMode = "partial"
	}

	if cfg.Upload.MaxFileSizeMB == 0 {
		cfg.Upload.MaxFileSizeMB = 50
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		cfg.Upload.AllowedExtensions = []string{"pdf", "docx", "pptx", "txt"}
	}
	if cfg.Upload.FetchTimeout == "" {
		cfg.Upload.FetchTimeout = "30s"
	}

	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "content"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Key == "" {
		cfg.Redis.Key = "repurpose:jobs:wake"
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "repurpose"
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "stdout"
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}

	if cfg.Monitoring.StatsInterval == "" {
		cfg.Monitoring.StatsInterval = "10m"
	}
	if cfg.Monitoring.RetentionDays == 0 {
		cfg.Monitoring.RetentionDays = 90
	}
}

// MaxFileSizeBytes converts the upload limit to bytes
func (u UploadConfig) MaxFileSizeBytes() int64 {
	return int64(u.MaxFileSizeMB) * 1024 * 1024
}

// IsAllowedExtension reports whether the file name carries an allowed extension
func (u UploadConfig) IsAllowedExtension(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(filename[idx+1:])
	for _, allowed := range u.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// ParseDuration parses s and falls back to def when s is empty or invalid
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
