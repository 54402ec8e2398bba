package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/atikulmunna/logsift/internal/analyzer"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}
	if c.Server.MaxUploadMB < 1 {
		errs = append(errs, &ValidationError{
			Field:   "server.max_upload_mb",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Server.MaxUploadMB),
		})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.rate_limit",
			Message: "must not be negative",
		})
	}

	if _, err := analyzer.ProfileByName(c.Analysis.Profile); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "analysis.profile",
			Message: err.Error(),
		})
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "json", "console", "text":
	default:
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("must be json or console, got %q", c.Logging.Format),
		})
	}

	if c.Store.Capacity < 0 {
		errs = append(errs, &ValidationError{
			Field:   "store.capacity",
			Message: "must not be negative",
		})
	}

	return errs
}

// Err folds Validate's result into a single error, or nil.
func (c *Config) Err() error {
	errs := c.Validate()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
