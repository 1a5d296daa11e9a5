package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when no --config flag is given. A missing file is
// not an error.
const DefaultConfigPath = "config.yaml"

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type CirculationConfig struct {
	LoanPeriodDays int     `yaml:"loan_period_days"`
	FinePerDay     float64 `yaml:"fine_per_day"`
}

type CatalogConfig struct {
	PageSize    int `yaml:"page_size"`
	SearchLimit int `yaml:"search_limit"`
}

type ImportConfig struct {
	BooksCSV      string `yaml:"books_csv"`
	EmployeesCSV  string `yaml:"employees_csv"`
	ClassifierIn  string `yaml:"classifier_in"`
	ClassifierOut string `yaml:"classifier_out"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the whole application configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Circulation CirculationConfig `yaml:"circulation"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Import      ImportConfig      `yaml:"import"`
	Log         LogConfig         `yaml:"log"`
}

// DefaultConfig returns the values used for anything the file leaves out.
func DefaultConfig() Config {
	return Config{
		Database:    DatabaseConfig{Path: "library.db"},
		Circulation: CirculationConfig{LoanPeriodDays: DefaultLoanPeriodDays, FinePerDay: DefaultFinePerDay},
		Catalog:     CatalogConfig{PageSize: DefaultPageSize, SearchLimit: DefaultSearchLimit},
		Import: ImportConfig{
			BooksCSV:      "books.csv",
			EmployeesCSV:  "emp.csv",
			ClassifierIn:  "books.csv",
			ClassifierOut: "books_categorized.csv",
		},
		Log: LogConfig{Level: "warn"},
	}
}

// LoadConfig layers, lowest first: defaults, the YAML file at path, a .env
// file in the working directory, then LIBRARY_DB_PATH / LIBRARY_LOG_LEVEL.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	buf, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if v := os.Getenv("LIBRARY_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LIBRARY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if cfg.Circulation.LoanPeriodDays <= 0 {
		return nil, fmt.Errorf("circulation.loan_period_days must be > 0, got %d", cfg.Circulation.LoanPeriodDays)
	}
	if cfg.Circulation.FinePerDay < 0 {
		return nil, fmt.Errorf("circulation.fine_per_day must be >= 0, got %v", cfg.Circulation.FinePerDay)
	}
	return &cfg, nil
}

// SlogLevel maps the configured level name to a slog.Level; unknown names
// mean info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
