package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/robfig/cron/v3"
)

// DeptRule maps cost center names containing Match onto a department code.
type DeptRule struct {
	Match string `yaml:"match"`
	Dept  string `yaml:"dept"`
}

type Config struct {
	Port        string   `yaml:"port"`
	DatabaseURL string   `yaml:"database_url"`
	DBLogLevel  string   `yaml:"db_log_level"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
	CORSOrigins []string `yaml:"cors_origins"`

	AuthRequired   bool    `yaml:"auth_required"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`

	SAPMappingSchedule string `yaml:"sap_mapping_schedule"`
	Timezone           string `yaml:"timezone"`
	MinFiscalYear      int    `yaml:"min_fiscal_year"`

	// DefaultDept applies when no rule matches; empty means the row is skipped.
	DeptRules   []DeptRule `yaml:"dept_rules"`
	DefaultDept string     `yaml:"default_dept"`
}

func defaults() *Config {
	return &Config{
		Port:           "5050",
		DBLogLevel:     "warn",
		LogLevel:       "info",
		LogFormat:      "json",
		CORSOrigins:    []string{"http://localhost:5173", "http://localhost:5174"},
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		AMQPExchange:   "opex.events",
		Timezone:       "Asia/Seoul",
		MinFiscalYear:  2022,
		DeptRules: []DeptRule{
			{Match: "DX개발운영팀", Dept: "A"},
			{Match: "IT운영팀", Dept: "A"},
			{Match: "HR/GA PL", Dept: "A"},
			{Match: "DX기획팀", Dept: "B"},
			{Match: "보안", Dept: "C"},
			{Match: "SECURITY", Dept: "C"},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence. The file is CONFIG_FILE, or
// opex.yaml when present in the working directory.
func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		if _, err := os.Stat("opex.yaml"); err == nil {
			path = "opex.yaml"
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBLogLevel = getEnv("DB_LOG_LEVEL", cfg.DBLogLevel)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.AuthRequired = getEnvBool("AUTH_REQUIRED", cfg.AuthRequired)
	cfg.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.SAPMappingSchedule = getEnv("SAP_MAPPING_SCHEDULE", cfg.SAPMappingSchedule)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.MinFiscalYear = getEnvInt("MIN_FISCAL_YEAR", cfg.MinFiscalYear)

	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is empty")
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be json or console", c.LogFormat))
	}

	if c.RateLimitRPS < 0 {
		problems = append(problems, fmt.Sprintf("invalid rate limit %v: must not be negative", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		problems = append(problems, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SAPMappingSchedule != "" {
		if _, err := cron.ParseStandard(c.SAPMappingSchedule); err != nil {
			problems = append(problems, fmt.Sprintf("invalid SAP mapping schedule '%s': %v", c.SAPMappingSchedule, err))
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.MinFiscalYear < 2000 || c.MinFiscalYear > 2999 {
		problems = append(problems, fmt.Sprintf("invalid minimum fiscal year %d", c.MinFiscalYear))
	}

	for i, rule := range c.DeptRules {
		if rule.Match == "" || rule.Dept == "" {
			problems = append(problems, fmt.Sprintf("dept rule %d needs both match and dept", i))
		}
	}

	if len(problems) > 0 {
		return errors.New("configuration validation failed:\n- " + strings.Join(problems, "\n- "))
	}
	return nil
}

// Location returns the configured time zone, UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
