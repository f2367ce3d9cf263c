package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	DB      DBConfig      `yaml:"db"`
	Storage StorageConfig `yaml:"storage"`
	JWT     JWTConfig     `yaml:"jwt"`
	Server  ServerConfig  `yaml:"server"`
	Mail    MailConfig    `yaml:"mail"`
	Google  GoogleConfig  `yaml:"google"`
	Uploads UploadsConfig `yaml:"uploads"`
}

type DBConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"memora"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"memora_secret"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"memora"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	// Path is the database file when Driver is "sqlite".
	Path string `yaml:"path" env:"DB_PATH" env-default:"memora.db"`
}

type StorageConfig struct {
	Endpoint       string        `yaml:"endpoint" env:"STORAGE_ENDPOINT" env-default:"localhost:9000"`
	PublicEndpoint string        `yaml:"public_endpoint" env:"STORAGE_PUBLIC_ENDPOINT"`
	AccessKey      string        `yaml:"access_key" env:"STORAGE_ACCESS_KEY" env-default:"memora"`
	SecretKey      string        `yaml:"secret_key" env:"STORAGE_SECRET_KEY" env-default:"memora_secret"`
	Bucket         string        `yaml:"bucket" env:"STORAGE_BUCKET" env-default:"memora"`
	Region         string        `yaml:"region" env:"STORAGE_REGION" env-default:"auto"`
	UseSSL         bool          `yaml:"use_ssl" env:"STORAGE_USE_SSL" env-default:"false"`
	PresignTTL     time.Duration `yaml:"presign_ttl" env:"PRESIGN_TTL" env-default:"1h"`
}

type JWTConfig struct {
	Secret                string `yaml:"secret" env:"JWT_SECRET" env-default:"change-me-in-production"`
	ExpirationHours       int    `yaml:"expiration_hours" env:"JWT_EXPIRATION_HOURS" env-default:"24"`
	SocialExpirationHours int    `yaml:"social_expiration_hours" env:"SOCIAL_JWT_EXPIRATION_HOURS" env-default:"720"`
}

type ServerConfig struct {
	Port        string `yaml:"port" env:"SERVER_PORT" env-default:"5000"`
	FrontendURL string `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
}

type MailConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"smtp.gmail.com"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"465"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"MAIL_FROM" env-default:"Memora Team <no-reply@memora.local>"`
}

type GoogleConfig struct {
	ClientID string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	// ClientSecret and RedirectURL enable the authorization code flow in
	// addition to ID-token sign-in.
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `yaml:"redirect_url" env:"GOOGLE_REDIRECT_URL"`
}

type UploadsConfig struct {
	MaxFileMB int `yaml:"max_file_mb" env:"MAX_UPLOAD_MB" env-default:"50"`
}

// Enabled reports whether SMTP credentials are configured.
func (m MailConfig) Enabled() bool {
	return m.User != "" && m.Password != ""
}

// BodyLimit is the largest request body the server accepts: a full batch of
// photos at the per-file limit.
func (u UploadsConfig) BodyLimit() int {
	return 10 * u.MaxFileMB * 1024 * 1024
}

// Load reads configuration from the YAML file named by CONFIG_PATH, if any.
// Environment variables always take precedence over the file.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("reading environment: %w", err)
		}
		return &cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return &cfg, nil
}
