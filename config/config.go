package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort        string
	JWTSecret      string
	AllowedOrigins []string
	// Requests per minute per client IP for the whole API, and for claim submissions.
	RateLimitPerMinute       int
	SubmitRateLimitPerMinute int
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: DBDriver is "mysql" or "postgres"
	DBDriver       string
	DatabaseURI    string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int
	DBMaxIdleConns int
	// Set to manage the schema out of band instead of at boot
	DBSkipMigrations bool
	// Redis for caching and token revocation
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Review access: any match grants the reviewer capability
	ReviewerRoles   []string
	ReviewerUserIDs []string
	AdminUsernames  []string
	// Review notifications: MailProvider is "smtp", "sendgrid" or empty (disabled)
	MailProvider   string
	MailFrom       string
	MailFromName   string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPTLS        bool
	SendGridAPIKey string
}

// fileConfig mirrors the grouped layout of config/config.json.
type fileConfig struct {
	App struct {
		AppPort                  string   `json:"AppPort"`
		JWTSecret                string   `json:"JWTSecret"`
		AllowedOrigins           []string `json:"AllowedOrigins"`
		RateLimitPerMinute       int      `json:"RateLimitPerMinute"`
		SubmitRateLimitPerMinute int      `json:"SubmitRateLimitPerMinute"`
	} `json:"app"`
	Gin struct {
		Mode    string `json:"Mode"`
		LogPath string `json:"LogPath"`
	} `json:"gin"`
	Database struct {
		Driver         string `json:"Driver"`
		DatabaseURI    string `json:"DatabaseURI"`
		DBHost         string `json:"DBHost"`
		DBPort         string `json:"DBPort"`
		DBUser         string `json:"DBUser"`
		DBPassword     string `json:"DBPassword"`
		DBName         string `json:"DBName"`
		SSLMode        string `json:"SSLMode"`
		MaxOpenConns   int    `json:"MaxOpenConns"`
		MaxIdleConns   int    `json:"MaxIdleConns"`
		SkipMigrations bool   `json:"SkipMigrations"`
	} `json:"database"`
	Redis struct {
		RedisHost     string `json:"RedisHost"`
		RedisPort     int    `json:"RedisPort"`
		RedisDB       int    `json:"RedisDB"`
		RedisPassword string `json:"RedisPassword"`
	} `json:"redis"`
	Log struct {
		Level      string `json:"Level"`
		Path       string `json:"Path"`
		MaxSizeMB  int    `json:"MaxSizeMB"`
		MaxBackups int    `json:"MaxBackups"`
		MaxAgeDays int    `json:"MaxAgeDays"`
		Compress   bool   `json:"Compress"`
	} `json:"log"`
	Review struct {
		Roles          []string `json:"Roles"`
		UserIDs        []string `json:"UserIDs"`
		AdminUsernames []string `json:"AdminUsernames"`
	} `json:"review"`
	Mail struct {
		Provider       string `json:"Provider"`
		From           string `json:"From"`
		FromName       string `json:"FromName"`
		SMTPHost       string `json:"SMTPHost"`
		SMTPPort       int    `json:"SMTPPort"`
		SMTPUsername   string `json:"SMTPUsername"`
		SMTPPassword   string `json:"SMTPPassword"`
		SMTPTLS        bool   `json:"SMTPTLS"`
		SendGridAPIKey string `json:"SendGridAPIKey"`
	} `json:"mail"`
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> .env -> defaults -> environment variable overrides
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}

	// .env only fills variables that are not already set in the process environment
	_ = godotenv.Load()

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Override replaces the cached configuration. Intended for tests and tools
// that build the configuration themselves.
func Override(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var fc fileConfig
	if err := json.NewDecoder(f).Decode(&fc); err != nil {
		return err
	}

	out.AppPort = fc.App.AppPort
	out.JWTSecret = fc.App.JWTSecret
	out.AllowedOrigins = fc.App.AllowedOrigins
	out.RateLimitPerMinute = fc.App.RateLimitPerMinute
	out.SubmitRateLimitPerMinute = fc.App.SubmitRateLimitPerMinute

	out.GinMode = fc.Gin.Mode
	out.GinPath = fc.Gin.LogPath

	out.DBDriver = fc.Database.Driver
	out.DatabaseURI = fc.Database.DatabaseURI
	out.DBHost = fc.Database.DBHost
	out.DBPort = fc.Database.DBPort
	out.DBUser = fc.Database.DBUser
	out.DBPassword = fc.Database.DBPassword
	out.DBName = fc.Database.DBName
	out.DBSSLMode = fc.Database.SSLMode
	out.DBMaxOpenConns = fc.Database.MaxOpenConns
	out.DBMaxIdleConns = fc.Database.MaxIdleConns
	out.DBSkipMigrations = fc.Database.SkipMigrations

	out.RedisHost = fc.Redis.RedisHost
	out.RedisPort = fc.Redis.RedisPort
	out.RedisDB = fc.Redis.RedisDB
	out.RedisPassword = fc.Redis.RedisPassword

	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress

	out.ReviewerRoles = fc.Review.Roles
	out.ReviewerUserIDs = fc.Review.UserIDs
	out.AdminUsernames = fc.Review.AdminUsernames

	out.MailProvider = fc.Mail.Provider
	out.MailFrom = fc.Mail.From
	out.MailFromName = fc.Mail.FromName
	out.SMTPHost = fc.Mail.SMTPHost
	out.SMTPPort = fc.Mail.SMTPPort
	out.SMTPUsername = fc.Mail.SMTPUsername
	out.SMTPPassword = fc.Mail.SMTPPassword
	out.SMTPTLS = fc.Mail.SMTPTLS
	out.SendGridAPIKey = fc.Mail.SendGridAPIKey
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.SubmitRateLimitPerMinute == 0 {
		c.SubmitRateLimitPerMinute = 10
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		if c.DBDriver == "postgres" {
			c.DBPort = "5432"
		} else {
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "perkclaims"
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.DBMaxOpenConns == 0 {
		c.DBMaxOpenConns = 20
	}
	if c.DBMaxIdleConns == 0 {
		c.DBMaxIdleConns = 5
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if len(c.ReviewerRoles) == 0 {
		c.ReviewerRoles = []string{"reviewer", "admin"}
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.MailFromName == "" {
		c.MailFromName = "Perk Claims"
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("SUBMIT_RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.SubmitRateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = strings.ToLower(v)
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("DB_SSLMODE", ""); v != "" {
		c.DBSSLMode = v
	}
	if v := getEnv("DB_MAX_OPEN_CONNS", ""); v != "" {
		c.DBMaxOpenConns = mustParseInt(v)
	}
	if v := getEnv("DB_MAX_IDLE_CONNS", ""); v != "" {
		c.DBMaxIdleConns = mustParseInt(v)
	}
	if v := getEnv("DB_SKIP_MIGRATIONS", ""); v != "" {
		c.DBSkipMigrations = v == "true"
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	// Logging env overrides
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("REVIEWER_ROLES", ""); v != "" {
		c.ReviewerRoles = readListEnv("REVIEWER_ROLES", c.ReviewerRoles)
	}
	if v := getEnv("REVIEWER_USER_IDS", ""); v != "" {
		c.ReviewerUserIDs = readListEnv("REVIEWER_USER_IDS", c.ReviewerUserIDs)
	}
	if v := getEnv("ADMIN_USERNAMES", ""); v != "" {
		c.AdminUsernames = readListEnv("ADMIN_USERNAMES", c.AdminUsernames)
	}
	// Mail env overrides
	if v := getEnv("MAIL_PROVIDER", ""); v != "" {
		c.MailProvider = strings.ToLower(v)
	}
	if v := getEnv("MAIL_FROM", ""); v != "" {
		c.MailFrom = v
	}
	if v := getEnv("MAIL_FROM_NAME", ""); v != "" {
		c.MailFromName = v
	}
	if v := getEnv("SMTP_HOST", ""); v != "" {
		c.SMTPHost = v
	}
	if v := getEnv("SMTP_PORT", ""); v != "" {
		c.SMTPPort = mustParseInt(v)
	}
	if v := getEnv("SMTP_USERNAME", ""); v != "" {
		c.SMTPUsername = v
	}
	if v := getEnv("SMTP_PASSWORD", ""); v != "" {
		c.SMTPPassword = v
	}
	if v := getEnv("SMTP_TLS", ""); v != "" {
		c.SMTPTLS = v == "true"
	}
	if v := getEnv("SENDGRID_API_KEY", ""); v != "" {
		c.SendGridAPIKey = v
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
