package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string
	BaseURL    string

	DB struct {
		DSN string
	}

	Auth struct {
		JWTSecret       string
		AccessTokenTTL  time.Duration
		RefreshTokenTTL time.Duration
		// AdminEmail is promoted to application admin at login.
		AdminEmail string
	}

	OIDC struct {
		Enabled      bool
		ClientID     string
		ClientSecret string
		IssuerURL    string
		RedirectPath string
	}

	Translate struct {
		URL    string
		APIKey string
	}

	PrometheusEnabled bool
	TrustedProxies    []string
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	cfg.Auth.JWTSecret = os.Getenv("APP_JWT_SECRET")
	var err error
	if cfg.Auth.AccessTokenTTL, err = getenvDuration("APP_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Auth.RefreshTokenTTL, err = getenvDuration("APP_REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	cfg.Auth.AdminEmail = os.Getenv("APP_ADMIN_EMAIL")

	cfg.OIDC.ClientID = os.Getenv("APP_OIDC_CLIENT_ID")
	cfg.OIDC.ClientSecret = os.Getenv("APP_OIDC_CLIENT_SECRET")
	cfg.OIDC.IssuerURL = os.Getenv("APP_OIDC_ISSUER_URL")
	cfg.OIDC.RedirectPath = getenvDefault("APP_OIDC_REDIRECT_PATH", "/v1/auth/oidc/callback")
	cfg.OIDC.Enabled = cfg.OIDC.ClientID != "" && cfg.OIDC.ClientSecret != "" && cfg.OIDC.IssuerURL != ""

	cfg.Translate.URL = getenvDefault("APP_LIBRETRANSLATE_URL", "http://localhost:5000")
	cfg.Translate.APIKey = os.Getenv("APP_LIBRETRANSLATE_API_KEY")

	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("APP_JWT_SECRET is required")
	}
	if len(cfg.Auth.JWTSecret) < 32 {
		return nil, fmt.Errorf("APP_JWT_SECRET must be at least 32 characters long (got %d)", len(cfg.Auth.JWTSecret))
	}
	if cfg.Auth.AccessTokenTTL <= 0 || cfg.Auth.RefreshTokenTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}

	if len(cfg.TrustedProxies) == 0 {
		fmt.Println("WARNING: No APP_TRUSTED_PROXIES configured. The server will trust all proxies - Not recommended for public environments.")
	}

	return cfg, nil
}

// Secure reports whether the deployment serves HTTPS, which decides the
// Secure flag on every cookie.
func (c *Config) Secure() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
