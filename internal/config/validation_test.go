package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Relocation.Keep = "newest"
	cfg.Hashing.Algorithm = "sha512"

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty quarantine dir", func(c *Config) { c.Scan.QuarantineDir = "" }, "scan.quarantine_dir"},
		{"nested quarantine dir", func(c *Config) { c.Scan.QuarantineDir = "a/b" }, "scan.quarantine_dir"},
		{"parent quarantine dir", func(c *Config) { c.Scan.QuarantineDir = ".." }, "scan.quarantine_dir"},
		{"unknown algorithm", func(c *Config) { c.Hashing.Algorithm = "md5" }, "hashing.algorithm"},
		{"zero buffer", func(c *Config) { c.Hashing.BufferSize = 0 }, "hashing.buffer_size"},
		{"unknown keep policy", func(c *Config) { c.Relocation.Keep = "largest" }, "relocation.keep"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error for %s", tt.field)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error to mention %q, got: %v", tt.field, err)
			}
		})
	}
}

func TestValidationCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hashing.Algorithm = "crc32"
	cfg.Logging.Format = "yaml"

	err := cfg.Validate()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Errorf("expected 2 validation errors, got %d: %v", len(verrs), verrs)
	}
	if !strings.HasPrefix(err.Error(), "validation failed:") {
		t.Errorf("unexpected error text: %s", err.Error())
	}
}

func TestValidationErrorsEmpty(t *testing.T) {
	var verrs ValidationErrors
	if verrs.Error() != "" {
		t.Errorf("expected empty string for no errors, got %q", verrs.Error())
	}
}
