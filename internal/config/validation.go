package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
// The scan root is not checked here; it may come from the command line and
// is verified against the filesystem when the scan starts.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateScan()...)
	errors = append(errors, c.validateHashing()...)
	errors = append(errors, c.validateRelocation()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateScan() ValidationErrors {
	var errors ValidationErrors

	name := c.Scan.QuarantineDir
	switch {
	case name == "":
		errors = append(errors, ValidationError{
			Field:   "scan.quarantine_dir",
			Message: "quarantine_dir is required",
		})
	case name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		errors = append(errors, ValidationError{
			Field:   "scan.quarantine_dir",
			Message: "quarantine_dir must be a single directory name under the root",
		})
	}

	return errors
}

func (c *Config) validateHashing() ValidationErrors {
	var errors ValidationErrors

	validAlgorithms := map[string]bool{"sha256": true, "sha512": true, "": true}
	if !validAlgorithms[c.Hashing.Algorithm] {
		errors = append(errors, ValidationError{
			Field:   "hashing.algorithm",
			Message: "algorithm must be 'sha256' or 'sha512'",
		})
	}

	if c.Hashing.BufferSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "hashing.buffer_size",
			Message: "buffer_size must be positive",
		})
	}

	return errors
}

func (c *Config) validateRelocation() ValidationErrors {
	var errors ValidationErrors

	validPolicies := map[string]bool{"first": true, "oldest": true, "newest": true, "shortest-path": true, "": true}
	if !validPolicies[c.Relocation.Keep] {
		errors = append(errors, ValidationError{
			Field:   "relocation.keep",
			Message: "keep must be 'first', 'oldest', 'newest', or 'shortest-path'",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
