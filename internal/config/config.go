package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jengzang/locator-backend-go/internal/models"
)

// Config 应用配置
type Config struct {
	Port     string
	PageName string
	LogLevel string
	DB       DBConfig
	Units    []models.TrackedUnit `validate:"required,min=1,dive"`
}

// DBConfig holds the Location Store connection settings
type DBConfig struct {
	Driver  string `validate:"oneof=sqlite mysql postgres"`
	Host    string `validate:"required_unless=Driver sqlite"`
	Port    string
	User    string
	Pass    string
	Name    string `validate:"required"` // database name, or file path for sqlite
	Migrate bool
}

type unitsFile struct {
	Units []models.TrackedUnit `yaml:"units"`
}

// DefaultUnits mirrors the two partitions written by the UDP sniffer
var DefaultUnits = []models.TrackedUnit{
	{ID: "1", Table: "locations2", Label: "Vehículo 1", HasRPM: true},
	{ID: "2", Table: "vehiculo2", Label: "Vehículo 2", HasRPM: true},
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load 加载配置.
// Values come from the env file (ENV_FILE, default .env); variables already present in
// the process environment take precedence. A missing env file is only an error when the
// environment does not provide DB_NAME either.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || os.Getenv("DB_NAME") == "" {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	migrate, _ := strconv.ParseBool(os.Getenv("DB_MIGRATE"))

	cfg := &Config{
		Port:     getEnv("PORT", ":8080"),
		PageName: getEnv("PAGE_NAME", "Localizador"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			Driver:  getEnv("DB_DRIVER", "sqlite"),
			Host:    getEnv("DB_HOST", "localhost"),
			Port:    os.Getenv("DB_PORT"),
			User:    os.Getenv("DB_USER"),
			Pass:    os.Getenv("DB_PASS"),
			Name:    os.Getenv("DB_NAME"),
			Migrate: migrate,
		},
		Units: DefaultUnits,
	}

	if path := os.Getenv("UNITS_FILE"); path != "" {
		units, err := LoadUnits(path)
		if err != nil {
			return nil, err
		}
		cfg.Units = units
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnits reads the tracked-unit map from a YAML file
func LoadUnits(path string) ([]models.TrackedUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read units file: %w", err)
	}

	var f unitsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse units file: %w", err)
	}
	return f.Units, nil
}

// Validate checks struct constraints, table identifiers and unit id uniqueness
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]bool, len(c.Units))
	for _, u := range c.Units {
		if !identifier.MatchString(u.Table) {
			return fmt.Errorf("invalid configuration: unit %s table %q is not a valid identifier", u.ID, u.Table)
		}
		if seen[u.ID] {
			return fmt.Errorf("invalid configuration: duplicate unit id %s", u.ID)
		}
		seen[u.ID] = true
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
