package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration. Extend it as the project grows.
type Config struct {
	Server struct {
		Address  string `mapstructure:"address"`   // 0.0.0.0
		HTTPPort string `mapstructure:"http_port"` // 8080 (PORT)
	} `mapstructure:"server"`

	App struct {
		Environment string `mapstructure:"environment"` // development|production
		BaseURL     string `mapstructure:"base_url"`    // APP_BASE_URL
		Domains     string `mapstructure:"domains"`     // REPLIT_DOMAINS, comma separated
	} `mapstructure:"app"`

	Auth struct {
		SessionSecret string        `mapstructure:"session_secret"` // SESSION_SECRET
		SessionTTL    time.Duration `mapstructure:"session_ttl"`
		SecureCookie  bool          `mapstructure:"secure_cookie"`
	} `mapstructure:"auth"`

	Encryption struct {
		SecretKey string `mapstructure:"secret_key"` // SECRET_KEY
		KeySalt   string `mapstructure:"key_salt"`
	} `mapstructure:"encryption"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
		File   string `mapstructure:"file"`   // file prefix; empty means stdout only
	} `mapstructure:"logs"`

	Database struct {
		Driver string `mapstructure:"driver"` // postgres | mysql | sqlite
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Storage struct {
		DocumentsRoot string `mapstructure:"documents_root"`
		MaxUploadMB   int64  `mapstructure:"max_upload_mb"`
	} `mapstructure:"storage"`

	DocuSeal struct {
		BaseURL             string        `mapstructure:"base_url"`
		APIKey              string        `mapstructure:"api_key"`
		Timeout             time.Duration `mapstructure:"timeout"`
		RetryCount          int           `mapstructure:"retry_count"`
		PollInterval        time.Duration `mapstructure:"poll_interval"`
		WatchInterval       time.Duration `mapstructure:"watch_interval"`
		WatchTicks          int           `mapstructure:"watch_ticks"`
		OnboardingTemplates []int64       `mapstructure:"onboarding_templates"`
		HREmail             string        `mapstructure:"hr_email"`
		WebhookSecret       string        `mapstructure:"webhook_secret"`
	} `mapstructure:"docuseal"`

	Expiry struct {
		HighDays         int `mapstructure:"high_days"`
		MediumDays       int `mapstructure:"medium_days"`
		ExpiringSoonDays int `mapstructure:"expiring_soon_days"`
	} `mapstructure:"expiry"`

	Tracing struct {
		Enabled  bool   `mapstructure:"enabled"`
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"tracing"`

	Bootstrap struct {
		AdminUsername string `mapstructure:"admin_username"`
		AdminPassword string `mapstructure:"admin_password"`
		AdminEmail    string `mapstructure:"admin_email"`
	} `mapstructure:"bootstrap"`
}

// Load reads configuration from env and an optional file, on top of defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// legacy flat variable names
	_ = v.BindEnv("auth.session_secret", "SESSION_SECRET", "AUTH_SESSION_SECRET")
	_ = v.BindEnv("encryption.secret_key", "SECRET_KEY", "ENCRYPTION_SECRET_KEY")
	_ = v.BindEnv("app.base_url", "APP_BASE_URL")
	_ = v.BindEnv("app.domains", "REPLIT_DOMAINS")
	_ = v.BindEnv("server.http_port", "PORT", "SERVER_HTTP_PORT")
	_ = v.BindEnv("app.environment", "APP_ENV", "NODE_ENV")
	_ = v.BindEnv("docuseal.api_key", "DOCUSEAL_API_KEY")

	setDefaults(v)

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "staffdesk"))
		}
		v.AddConfigPath("/etc/staffdesk")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if cfg.App.Environment == "production" && !v.IsSet("auth.secure_cookie") {
		cfg.Auth.SecureCookie = true
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "5000")

	v.SetDefault("app.environment", "development")
	v.SetDefault("app.base_url", "")
	v.SetDefault("app.domains", "")

	v.SetDefault("auth.session_ttl", 24*time.Hour)

	v.SetDefault("encryption.key_salt", "staffdesk-field-encryption")

	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.format", "text")
	v.SetDefault("logs.file", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "staffdesk.db")

	v.SetDefault("storage.documents_root", "uploads")
	v.SetDefault("storage.max_upload_mb", 20)

	v.SetDefault("docuseal.base_url", "https://api.docuseal.com")
	v.SetDefault("docuseal.timeout", 15*time.Second)
	v.SetDefault("docuseal.retry_count", 3)
	v.SetDefault("docuseal.poll_interval", 15*time.Second)
	v.SetDefault("docuseal.watch_interval", 10*time.Second)
	v.SetDefault("docuseal.watch_ticks", 12)
	v.SetDefault("docuseal.hr_email", "")
	v.SetDefault("docuseal.webhook_secret", "")

	v.SetDefault("expiry.high_days", 15)
	v.SetDefault("expiry.medium_days", 30)
	v.SetDefault("expiry.expiring_soon_days", 30)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Auth.SessionSecret) == "" {
		return errors.New("auth.session_secret (SESSION_SECRET) must be set")
	}
	if s := strings.TrimSpace(c.Encryption.SecretKey); s == "" || s == "CHANGE_ME" {
		return errors.New("encryption.secret_key (SECRET_KEY) must be set (not empty and not CHANGE_ME)")
	}
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.New("server.address must not be empty")
	}
	if strings.TrimSpace(c.Server.HTTPPort) == "" {
		return errors.New("server.http_port must not be empty")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth.session_ttl must be positive")
	}
	if c.Expiry.HighDays <= 0 || c.Expiry.MediumDays < c.Expiry.HighDays {
		return errors.New("expiry.medium_days must be >= expiry.high_days > 0")
	}
	if c.DocuSeal.WatchTicks <= 0 || c.DocuSeal.WatchInterval <= 0 || c.DocuSeal.PollInterval <= 0 {
		return errors.New("docuseal poll/watch settings must be positive")
	}
	return nil
}

// PublicBaseURL resolves the base URL used in generated links.
// APP_BASE_URL wins; otherwise the first REPLIT_DOMAINS entry; otherwise localhost.
func (c *Config) PublicBaseURL() string {
	if u := strings.TrimRight(strings.TrimSpace(c.App.BaseURL), "/"); u != "" {
		return u
	}
	for _, d := range strings.Split(c.App.Domains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			return "https://" + d
		}
	}
	return "http://localhost:" + c.Server.HTTPPort
}
