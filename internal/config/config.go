package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,required,notEmpty"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET,required,notEmpty"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	AccessTokenPrefix  string        `env:"ACCESS_TOKEN_PREFIX" envDefault:"Bearer "`
	TokenIssuer        string        `env:"TOKEN_ISSUER" envDefault:"mentora-auth"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"12"`
	ResetCodeTTL       time.Duration `env:"RESET_CODE_TTL" envDefault:"15m"`

	PublicBaseURL    string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	LoginRedirectURL string `env:"LOGIN_REDIRECT_URL" envDefault:"http://localhost:5173/login"`
	CookieSecure     bool   `env:"COOKIE_SECURE" envDefault:"true"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Mentora"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	EmailQueueKey string        `env:"EMAIL_QUEUE_KEY" envDefault:"email:jobs"`
	EmailAttempts int           `env:"EMAIL_ATTEMPTS" envDefault:"1"`
	EmailBackoff  time.Duration `env:"EMAIL_BACKOFF" envDefault:"5s"`
	EmailWorkers  int           `env:"EMAIL_WORKERS" envDefault:"2"`
}

var ErrSharedTokenSecret = errors.New("access and refresh token secrets must differ")

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que los tags no pueden expresar.
func (c *Config) Validate() error {
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return ErrSharedTokenSecret
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.EmailAttempts <= 0 {
		c.EmailAttempts = 1
	}
	if c.EmailWorkers <= 0 {
		c.EmailWorkers = 1
	}
	return nil
}
