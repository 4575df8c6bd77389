package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Mode selects the backing implementation for contracts and templates.
type Mode string

const (
	ModePersistent Mode = "persistent"
	ModeDemo       Mode = "demo"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Minio     MinioConfig     `yaml:"minio"`
	AI        AIConfig        `yaml:"ai"`
	OCR       OCRConfig       `yaml:"ocr"`
	Email     EmailConfig     `yaml:"email"`
	PDF       PDFConfig       `yaml:"pdf"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Users     []User          `yaml:"users"`

	// Mode is resolved once by Load and never changes afterwards.
	Mode Mode `yaml:"-"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MongoConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StoreConfig tunes the in-memory demo store.
type StoreConfig struct {
	MaxContracts int `yaml:"max_contracts"`
}

type RedisConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

// Enabled reports whether blob storage is configured.
func (m MinioConfig) Enabled() bool {
	return m.Endpoint != "" && m.Bucket != ""
}

type AIConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type OCRConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	APIKey       string        `yaml:"api_key"`
	Language     string        `yaml:"language"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type EmailConfig struct {
	APIKey  string        `yaml:"api_key"`
	From    string        `yaml:"from"`
	BaseURL string        `yaml:"base_url"` // public URL used in signing links
	Timeout time.Duration `yaml:"timeout"`
}

// PDFConfig points at an optional UTF-8 TrueType font. Without one only
// Latin-1 text renders.
type PDFConfig struct {
	FontPath string `yaml:"font_path"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
	// Required rejects API calls without a bearer token. When false,
	// anonymous calls are accepted and audited as "anonymous".
	Required bool `yaml:"required"`
}

type RateLimitConfig struct {
	// FailOpen lets requests through when the counter store is unreachable.
	FailOpen *bool          `yaml:"fail_open"`
	Window   time.Duration  `yaml:"window"`
	Default  int            `yaml:"default"`
	Routes   map[string]int `yaml:"routes"`
}

// AllowOnStoreError resolves the fail policy, defaulting to fail-open.
func (r RateLimitConfig) AllowOnStoreError() bool {
	if r.FailOpen == nil {
		return true
	}
	return *r.FailOpen
}

// LimitFor returns the per-window limit configured for a route name.
func (r RateLimitConfig) LimitFor(route string) int {
	if n, ok := r.Routes[route]; ok && n > 0 {
		return n
	}
	return r.Default
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

// Load reads an optional .env file, the YAML file at path (a missing file is
// allowed so the service can run purely from the environment), applies
// environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.Mongo.URI != "" {
		cfg.Mode = ModePersistent
	} else {
		cfg.Mode = ModeDemo
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	setString(&cfg.Mongo.URI, "MONGODB_URI")
	setString(&cfg.Mongo.Database, "MONGODB_DATABASE")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Minio.Bucket, "MINIO_BUCKET")
	setString(&cfg.AI.APIKey, "AI_API_KEY")
	setString(&cfg.AI.BaseURL, "AI_BASE_URL")
	setString(&cfg.OCR.Endpoint, "AZURE_VISION_ENDPOINT")
	setString(&cfg.OCR.APIKey, "AZURE_VISION_KEY")
	setString(&cfg.Email.APIKey, "RESEND_API_KEY")
	setString(&cfg.PDF.FontPath, "PDF_FONT_PATH")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "contract_system"
	}
	if cfg.Mongo.Timeout == 0 {
		cfg.Mongo.Timeout = 5 * time.Second
	}
	if cfg.Store.MaxContracts == 0 {
		cfg.Store.MaxContracts = 500
	}
	if cfg.Redis.Timeout == 0 {
		cfg.Redis.Timeout = 2 * time.Second
	}
	if cfg.Minio.Region == "" {
		cfg.Minio.Region = "us-east-1"
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "ja"
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 30 * time.Second
	}
	if cfg.OCR.PollInterval == 0 {
		cfg.OCR.PollInterval = time.Second
	}
	if cfg.Email.Timeout == 0 {
		cfg.Email.Timeout = 10 * time.Second
	}
	if cfg.Email.From == "" {
		cfg.Email.From = "noreply@contract-system.local"
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.Default == 0 {
		cfg.RateLimit.Default = 100
	}
	if cfg.RateLimit.Routes == nil {
		cfg.RateLimit.Routes = make(map[string]int)
	}
	// Routes that call paid upstream services get tighter budgets.
	for route, limit := range map[string]int{"ai.analyze": 10, "ai.chat": 30, "ocr.upload": 10} {
		if _, ok := cfg.RateLimit.Routes[route]; !ok {
			cfg.RateLimit.Routes[route] = limit
		}
	}
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
