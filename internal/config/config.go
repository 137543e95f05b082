package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	ClinicTimezone string

	BusinessOpen    string
	BusinessClose   string
	ClosedWeekdays  []time.Weekday

	DefaultDurationMins int
	WalkInWaitMins      int
	MinBookingLead      time.Duration
	PatientMinLead      time.Duration
	PatientMaxAheadDays int

	CORSAllowedOrigins []string

	RateLimitPerSec float64
	RateLimitBurst  int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "Local"),

		BusinessOpen:   getEnv("BUSINESS_OPEN", "08:00"),
		BusinessClose:  getEnv("BUSINESS_CLOSE", "17:00"),
		ClosedWeekdays: getEnvAsWeekdays("CLOSED_WEEKDAYS", []time.Weekday{time.Sunday}),

		DefaultDurationMins: getEnvAsInt("DEFAULT_DURATION_MINS", 30),
		WalkInWaitMins:      getEnvAsInt("WALKIN_WAIT_MINS", 30),
		MinBookingLead:      getEnvAsDuration("MIN_BOOKING_LEAD", 0),
		PatientMinLead:      getEnvAsDuration("PATIENT_MIN_LEAD", 2*time.Hour),
		PatientMaxAheadDays: getEnvAsInt("PATIENT_MAX_AHEAD_DAYS", 30),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),

		RateLimitPerSec: getEnvAsFloat("RATE_LIMIT_PER_SEC", 0),
		RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// Location resolves the clinic timezone, falling back to the process-local
// zone when the name does not load.
func (c *Config) Location() *time.Location {
	if c.ClinicTimezone == "" || c.ClinicTimezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvAsWeekdays(key string, defaultValue []time.Weekday) []time.Weekday {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []time.Weekday
	for _, part := range strings.Split(value, ",") {
		parsed, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || parsed < 0 || parsed > 6 {
			continue
		}
		out = append(out, time.Weekday(parsed))
	}
	return out
}
