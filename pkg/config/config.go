package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify access tokens issued by
// the admin API.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes timetable generation and the default policy applied
// when a request does not override it.
type SchedulerConfig struct {
	Enabled         bool
	ProposalTTL     time.Duration
	CacheTTL        time.Duration
	MaxPlacements   int
	CoreSubjects    []string
	CoreSessions    int
	DefaultSessions int
	MaxDaysPerWeek  int
	BalanceLoad     bool
	PreferFiveDays  bool
	// Timezone is used for calendar exports.
	Timezone string
	// TermWeeks bounds the recurrence of calendar exports.
	TermWeeks int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxDays := v.GetInt("SCHEDULER_MAX_DAYS_PER_WEEK")
	if maxDays != 5 && maxDays != 6 {
		maxDays = 6
	}
	cfg.Scheduler = SchedulerConfig{
		Enabled:         v.GetBool("ENABLE_SCHEDULER"),
		ProposalTTL:     parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
		CacheTTL:        parseDuration(v.GetString("SCHEDULER_CACHE_TTL"), 10*time.Minute),
		MaxPlacements:   v.GetInt("SCHEDULER_MAX_PLACEMENTS"),
		CoreSubjects:    splitAndTrim(v.GetString("SCHEDULER_CORE_SUBJECTS")),
		CoreSessions:    v.GetInt("SCHEDULER_CORE_SESSIONS"),
		DefaultSessions: v.GetInt("SCHEDULER_DEFAULT_SESSIONS"),
		MaxDaysPerWeek:  maxDays,
		BalanceLoad:     v.GetBool("SCHEDULER_BALANCE_LOAD"),
		PreferFiveDays:  v.GetBool("SCHEDULER_PREFER_FIVE_DAYS"),
		Timezone:        v.GetString("SCHEDULER_TIMEZONE"),
		TermWeeks:       v.GetInt("SCHEDULER_TERM_WEEKS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")
	v.SetDefault("SCHEDULER_CACHE_TTL", "10m")
	v.SetDefault("SCHEDULER_MAX_PLACEMENTS", 10000)
	v.SetDefault("SCHEDULER_CORE_SUBJECTS", "math,physics,chemistry,history,literature,english")
	v.SetDefault("SCHEDULER_CORE_SESSIONS", 3)
	v.SetDefault("SCHEDULER_DEFAULT_SESSIONS", 2)
	v.SetDefault("SCHEDULER_MAX_DAYS_PER_WEEK", 6)
	v.SetDefault("SCHEDULER_BALANCE_LOAD", true)
	v.SetDefault("SCHEDULER_PREFER_FIVE_DAYS", true)
	v.SetDefault("SCHEDULER_TIMEZONE", "Asia/Jakarta")
	v.SetDefault("SCHEDULER_TERM_WEEKS", 18)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
