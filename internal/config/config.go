package config

import "os"

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Postgres PostgresConfig
	Static   StaticConfig
}

type ServerConfig struct {
	Port             string
	AllowedOrigins   string
	AllowCredentials string
}

type AuthConfig struct {
	AccessSecret   string
	RefreshSecret  string
	AccessTTL      string
	RefreshTTL     string
	CookieSecure   string
	CookieSameSite string
	CookiePath     string
	CookieDomain   string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type StaticConfig struct {
	ImagesDir string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:             getenv("PORT", "8080"),
			AllowedOrigins:   getenv("CLIENT_URL", "http://localhost:5173"),
			AllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "true"),
		},
		Auth: AuthConfig{
			AccessSecret:   os.Getenv("JWT_ACCESS_SECRET"),
			RefreshSecret:  os.Getenv("JWT_REFRESH_SECRET"),
			AccessTTL:      getenv("JWT_ACCESS_TTL", "15m"),
			RefreshTTL:     getenv("JWT_REFRESH_TTL", "168h"),
			CookieSecure:   os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite: os.Getenv("AUTH_COOKIE_SAMESITE"),
			CookiePath:     os.Getenv("AUTH_COOKIE_PATH"),
			CookieDomain:   os.Getenv("AUTH_COOKIE_DOMAIN"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Static: StaticConfig{
			ImagesDir: getenv("STATIC_IMAGES_DIR", "./public/images"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
