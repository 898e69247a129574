package config

import (
	"errors"
	"fmt"
	"os"

	"shareit/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Sync       SyncConfig       `yaml:"sync"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port            int `yaml:"port"`
	DefaultPageSize int `yaml:"default_page_size"`
}

type GatewayConfig struct {
	Port      int                    `yaml:"port"`
	ServerURL string                 `yaml:"server_url"`
	RateLimit GatewayRateLimitConfig `yaml:"rate_limit"`
}

type GatewayRateLimitConfig struct {
	RPS      float64 `yaml:"rps"`
	Burst    int     `yaml:"burst"`
	Requests int     `yaml:"requests"`
	Window   int     `yaml:"window"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	Enabled               bool   `yaml:"enabled"`
	GoogleCredentialsFile string `yaml:"credentials_file"`
	LedgerSpreadSheetID   string `yaml:"ledger_spreadsheet_id"`
}

type SyncConfig struct {
	Enabled      bool `yaml:"enabled"`
	MaxRetries   int  `yaml:"max_retries"`
	PollInterval int  `yaml:"poll_interval"`
	BatchSize    int  `yaml:"batch_size"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен: при его отсутствии используем окружение процесса
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Gateway.ServerURL == "" {
		return errors.New("gateway server_url is required")
	}

	if c.Google.Enabled && c.Google.GoogleCredentialsFile == "" {
		return errors.New("google sync enabled but credentials_file not set")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.DefaultPageSize == 0 {
		c.Server.DefaultPageSize = models.DefaultPageSize
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = 8090
	}
	if c.Gateway.ServerURL == "" {
		c.Gateway.ServerURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Gateway.RateLimit.RPS == 0 {
		c.Gateway.RateLimit.RPS = 20
	}
	if c.Gateway.RateLimit.Burst == 0 {
		c.Gateway.RateLimit.Burst = 5
	}
	if c.Gateway.RateLimit.Requests == 0 {
		c.Gateway.RateLimit.Requests = models.RateLimitRequests
	}
	if c.Gateway.RateLimit.Window == 0 {
		c.Gateway.RateLimit.Window = models.RateLimitWindow
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = 5
	}
	if c.Sync.PollInterval == 0 {
		c.Sync.PollInterval = 2
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 20
	}
}
