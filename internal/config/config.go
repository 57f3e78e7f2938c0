package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Store      StoreConfig
	JWT        JWTConfig
	Argon2     Argon2Config
	CORS       CORSConfig
	Monitoring MonitoringConfig
	AI         AIConfig
	Export     ExportConfig
	Mail       MailConfig
	History    HistoryConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	MaxUploadBytes int64
	// LoginRatePerMinute caps auth requests per client IP.
	LoginRatePerMinute int
}

// DatabaseConfig is the SQL database holding users, tokens and the audit
// log. Driver is one of postgres, mysql or sqlite.
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	DSN        string
	SQLitePath string
}

// StoreConfig selects the backing for settings and history. Driver is
// one of sql (the database above), mongo or memory.
type StoreConfig struct {
	Driver   string
	MongoURI string
	MongoDB  string
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type CORSConfig struct {
	Origins []string
}

type MonitoringConfig struct {
	PrometheusEnabled bool
}

type AIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	ChunkSize  int
	// RatePerMinute caps generation calls; zero disables pacing.
	RatePerMinute int
}

type ExportConfig struct {
	ChromePath   string
	PagesPerFile int
	ScaleFactor  float64
	TempDir      string
	Timeout      time.Duration
}

type MailConfig struct {
	SendgridAPIKey string
	FromName       string
	FromAddress    string
}

type HistoryConfig struct {
	Retention time.Duration
}

func Load() (*Config, error) {
	return load(true)
}

// LoadOffline loads the configuration for tools that run the pipeline
// without the API, so no JWT secret is needed.
func LoadOffline() (*Config, error) {
	return load(false)
}

func load(server bool) (*Config, error) {
	godotenv.Load()

	accessExpiry, _ := time.ParseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"))
	refreshExpiry, _ := time.ParseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h"))
	aiTimeout, _ := time.ParseDuration(getEnv("AI_TIMEOUT", "120s"))
	exportTimeout, _ := time.ParseDuration(getEnv("EXPORT_TIMEOUT", "60s"))
	retention, _ := time.ParseDuration(getEnv("HISTORY_RETENTION", "2160h"))

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "")
	dbName := getEnv("DB_NAME", "report_cards")
	driver := getEnv("DB_DRIVER", "postgres")
	sqlitePath := getEnv("SQLITE_PATH", "report_cards.db")

	dsn := getEnv("DATABASE_URL", "")
	if dsn == "" {
		dsn = buildDSN(driver, dbHost, dbPort, dbUser, dbPass, dbName, sqlitePath)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			Env:                getEnv("ENV", "development"),
			MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
			LoginRatePerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 10),
		},
		Database: DatabaseConfig{
			Driver:     driver,
			Host:       dbHost,
			Port:       dbPort,
			User:       dbUser,
			Password:   dbPass,
			Name:       dbName,
			DSN:        dsn,
			SQLitePath: sqlitePath,
		},
		Store: StoreConfig{
			Driver:   getEnv("STORE_DRIVER", "sql"),
			MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDB:  getEnv("MONGO_DB", "report_cards"),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", ""),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Argon2: Argon2Config{
			Memory:      uint32(getEnvInt("ARGON2_MEMORY", 65536)),
			Iterations:  uint32(getEnvInt("ARGON2_ITERATIONS", 3)),
			Parallelism: uint8(getEnvInt("ARGON2_PARALLELISM", 2)),
			SaltLength:  uint32(getEnvInt("ARGON2_SALT_LENGTH", 16)),
			KeyLength:   uint32(getEnvInt("ARGON2_KEY_LENGTH", 32)),
		},
		CORS: CORSConfig{
			Origins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled: getEnv("PROMETHEUS_ENABLED", "true") == "true",
		},
		AI: AIConfig{
			APIKey:        getEnv("GEMINI_API_KEY", ""),
			Model:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			BaseURL:       getEnv("GEMINI_BASE_URL", ""),
			APIVersion:    getEnv("GEMINI_API_VERSION", "v1beta"),
			Timeout:       aiTimeout,
			ChunkSize:     getEnvInt("AI_CHUNK_SIZE", 50),
			RatePerMinute: getEnvInt("AI_RATE_PER_MINUTE", 0),
		},
		Export: ExportConfig{
			ChromePath:   getEnv("CHROME_EXECUTABLE", "/usr/bin/google-chrome"),
			PagesPerFile: getEnvInt("EXPORT_PAGES_PER_FILE", 50),
			ScaleFactor:  getEnvFloat("EXPORT_SCALE", 2),
			TempDir:      getEnv("EXPORT_TEMP_DIR", os.TempDir()),
			Timeout:      exportTimeout,
		},
		Mail: MailConfig{
			SendgridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromName:       getEnv("MAIL_FROM_NAME", "Report Card Generator"),
			FromAddress:    getEnv("MAIL_FROM_ADDRESS", "no-reply@reportcards.local"),
		},
		History: HistoryConfig{
			Retention: retention,
		},
	}

	if server && cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AI.ChunkSize <= 0 {
		return nil, fmt.Errorf("AI_CHUNK_SIZE must be positive")
	}
	switch cfg.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	switch cfg.Store.Driver {
	case "sql", "mongo", "memory":
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}
	if cfg.Export.PagesPerFile <= 0 {
		return nil, fmt.Errorf("EXPORT_PAGES_PER_FILE must be positive")
	}

	return cfg, nil
}

func buildDSN(driver, host, port, user, pass, name, sqlitePath string) string {
	switch driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			user, pass, host, port, name)
	case "sqlite":
		return sqlitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, pass, name)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
