package adt

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func setenvAll(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoadConfig(t *testing.T) {
	setenvAll(t, map[string]string{
		"AZURE_TENANT_ID":     "tenant",
		"AZURE_CLIENT_ID":     "client",
		"AZURE_CLIENT_SECRET": "secret",
		"AZURE_ADT_URL":       "https://example.api.weu.digitaltwins.azure.net",
	})

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal("LoadConfig:", err)
	}
	want := Config{
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     "https://example.api.weu.digitaltwins.azure.net",
		APIVersion:   DefaultAPIVersion,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v; want nil", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     "https://example.api.weu.digitaltwins.azure.net",
	}
	tests := []struct {
		name    string
		modify  func(*Config)
		wantKey string
	}{
		{"tenant", func(c *Config) { c.TenantID = "" }, "AZURE_TENANT_ID"},
		{"client", func(c *Config) { c.ClientID = "" }, "AZURE_CLIENT_ID"},
		{"secret", func(c *Config) { c.ClientSecret = "" }, "AZURE_CLIENT_SECRET"},
		{"endpoint", func(c *Config) { c.Endpoint = "" }, "AZURE_ADT_URL"},
		{"malformed endpoint", func(c *Config) { c.Endpoint = "not a url" }, "AZURE_ADT_URL"},
		{"all missing", func(c *Config) { *c = Config{} }, "AZURE_TENANT_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v; want *ConfigurationError", err)
			}
			if cfgErr.Key != tt.wantKey {
				t.Errorf("ConfigurationError.Key = %q; want %q", cfgErr.Key, tt.wantKey)
			}
		})
	}
}
