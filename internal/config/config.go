package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// ErrConfig marks configuration problems so the CLI can map them to a
// distinct exit code.
var ErrConfig = errors.New("configuration error")

// Config holds runtime settings for the migration tool. Warehouse
// credentials are only required for commands that talk to Databricks.
type Config struct {
	Catalog        string `validate:"required"`
	Schema         string
	Host           string `validate:"required"`
	Token          string `validate:"required"`
	HTTPPath       string `validate:"required"`
	SchemaPath     string
	MigrationsPath string
	StateTable     string
}

// Load loads config from environment variables. Offline commands work
// without warehouse credentials; ValidateForDBOps gates the rest.
func Load() *Config {
	return &Config{
		Catalog:        getenv("UCMT_CATALOG", ""),
		Schema:         getenv("UCMT_SCHEMA", "default"),
		Host:           getenv("DATABRICKS_HOST", ""),
		Token:          getenv("DATABRICKS_TOKEN", ""),
		HTTPPath:       getenv("DATABRICKS_HTTP_PATH", ""),
		SchemaPath:     getenv("UCMT_SCHEMA_PATH", "schema"),
		MigrationsPath: getenv("UCMT_MIGRATIONS_PATH", "migrations"),
		StateTable:     getenv("UCMT_STATE_TABLE", "_ucmt_migrations"),
	}
}

// ValidateForDBOps checks that everything needed to reach the warehouse
// is present.
func (c *Config) ValidateForDBOps() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: missing required setting %s", ErrConfig, settingName(verrs[0].Field()))
		}
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

func settingName(field string) string {
	switch field {
	case "Catalog":
		return "UCMT_CATALOG"
	case "Host":
		return "DATABRICKS_HOST"
	case "Token":
		return "DATABRICKS_TOKEN"
	case "HTTPPath":
		return "DATABRICKS_HTTP_PATH"
	}
	return field
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
