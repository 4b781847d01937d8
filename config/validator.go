package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var environments = []string{"development", "staging", "production"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("env", validateEnvironment); err != nil {
		panic(err)
	}
	return v
}

// ConfigError represents a validation error for a specific field.
type ConfigError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of config errors.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// ValidateWithDetails performs validation and returns detailed errors.
func ValidateWithDetails(cfg *Config) error {
	var details ValidationErrors
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			details = append(details, ConfigError{
				Field:   fe.Namespace(),
				Message: formatValidationError(fe),
				Value:   fe.Value(),
			})
		}
	}
	details = append(details, crossFieldErrors(cfg)...)
	if len(details) > 0 {
		return details
	}
	return nil
}

// crossFieldErrors checks rules that depend on more than one field.
func crossFieldErrors(cfg *Config) ValidationErrors {
	var errs ValidationErrors
	require := func(cond bool, field, msg string, value interface{}) {
		if cond {
			errs = append(errs, ConfigError{Field: field, Message: msg, Value: value})
		}
	}

	switch cfg.Storage.Type {
	case "badger":
		require(cfg.Storage.Badger.Path == "", "Config.Storage.Badger.Path", "required when storage.type is badger", cfg.Storage.Badger.Path)
	case "sqlite":
		require(cfg.Storage.SQLite.Path == "", "Config.Storage.SQLite.Path", "required when storage.type is sqlite", cfg.Storage.SQLite.Path)
	}

	require(cfg.Redis.Enabled && cfg.Redis.Address == "", "Config.Redis.Address", "required when redis is enabled", cfg.Redis.Address)
	require(cfg.Embedding.Provider == "openai" && cfg.Embedding.BaseURL == "", "Config.Embedding.BaseURL", "required for the openai provider", cfg.Embedding.BaseURL)
	require(cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "", "Config.Tracing.Endpoint", "required when tracing is enabled", cfg.Tracing.Endpoint)
	require(cfg.Tracing.Enabled && cfg.Tracing.Timeout <= 0, "Config.Tracing.Timeout", "must be positive when tracing is enabled", cfg.Tracing.Timeout)

	// The handler deadline has to fire before the server drops the connection.
	h := cfg.Server.HTTP
	require(h.RequestTimeout > 0 && h.WriteTimeout > 0 && h.RequestTimeout >= h.WriteTimeout,
		"Config.Server.HTTP.RequestTimeout", "must be shorter than write_timeout", h.RequestTimeout)

	return errs
}

// formatValidationError converts validator.FieldError to a human-readable message.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "env":
		return fmt.Sprintf("must be one of [%s]", strings.Join(environments, " "))
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

func validateEnvironment(fl validator.FieldLevel) bool {
	return slices.Contains(environments, fl.Field().String())
}
