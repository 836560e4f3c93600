package adt

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
)

// DefaultAPIVersion is the data-plane API version used when none is configured.
const DefaultAPIVersion = "2023-10-31"

// Config holds the values required to reach an Azure Digital Twins instance.
// The field tags name the environment variables LoadConfig reads.
type Config struct {
	TenantID     string `env:"AZURE_TENANT_ID" validate:"required"`
	ClientID     string `env:"AZURE_CLIENT_ID" validate:"required"`
	ClientSecret string `env:"AZURE_CLIENT_SECRET" validate:"required"`
	// Endpoint is the instance URL, e.g. https://my-instance.api.weu.digitaltwins.azure.net
	Endpoint   string `env:"AZURE_ADT_URL" validate:"required,url"`
	APIVersion string `env:"AZURE_ADT_API_VERSION" envDefault:"2023-10-31"`
}

// LoadConfig reads a Config from the environment. It does not check that the
// required values are present; Open does that through Validate.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

var validate = newConfigValidator()

// Field names are reported by their environment variable so that a
// ConfigurationError points at what the operator must set.
func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("env"), ",")
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks that all required values are present. It returns a
// *ConfigurationError describing the first offending value.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	e := errs[0]
	switch e.Tag() {
	case "required":
		return &ConfigurationError{Key: e.Field(), Reason: "not set"}
	case "url":
		return &ConfigurationError{Key: e.Field(), Reason: fmt.Sprintf("not a valid URL: %q", e.Value())}
	default:
		return &ConfigurationError{Key: e.Field(), Reason: "failed " + e.Tag() + " check"}
	}
}
