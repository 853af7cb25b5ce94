// Package config provides configuration structures and loading for godedup.
package config

// DefaultQuarantineDir is the name of the folder, created directly under the
// scanned root, that receives relocated duplicates.
const DefaultQuarantineDir = "_Duplicates"

// Config represents the complete application configuration.
type Config struct {
	Scan       ScanConfig       `yaml:"scan" mapstructure:"scan"`
	Hashing    HashingConfig    `yaml:"hashing" mapstructure:"hashing"`
	Relocation RelocationConfig `yaml:"relocation" mapstructure:"relocation"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// ScanConfig controls which files are enumerated.
type ScanConfig struct {
	Root              string `yaml:"root" mapstructure:"root"`
	QuarantineDir     string `yaml:"quarantine_dir" mapstructure:"quarantine_dir"`
	FollowSymlinks    bool   `yaml:"follow_symlinks" mapstructure:"follow_symlinks"`
	IncludeQuarantine bool   `yaml:"include_quarantine" mapstructure:"include_quarantine"`
}

// HashingConfig controls how file digests are computed.
type HashingConfig struct {
	Algorithm  string `yaml:"algorithm" mapstructure:"algorithm"`     // sha256 or sha512
	BufferSize int    `yaml:"buffer_size" mapstructure:"buffer_size"` // bytes read per chunk
}

// RelocationConfig controls what happens to duplicates once grouped.
type RelocationConfig struct {
	Keep   string `yaml:"keep" mapstructure:"keep"` // first, oldest, newest, shortest-path
	DryRun bool   `yaml:"dry_run" mapstructure:"dry_run"`
	Verify bool   `yaml:"verify" mapstructure:"verify"`
}

// ReportConfig controls run output beyond logging.
type ReportConfig struct {
	Path     string `yaml:"path" mapstructure:"path"` // JSON report file, empty disables
	Progress bool   `yaml:"progress" mapstructure:"progress"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			QuarantineDir:     DefaultQuarantineDir,
			FollowSymlinks:    true,
			IncludeQuarantine: false,
		},
		Hashing: HashingConfig{
			Algorithm:  "sha256",
			BufferSize: 64 * 1024,
		},
		Relocation: RelocationConfig{
			Keep:   "first",
			DryRun: false,
			Verify: false,
		},
		Report: ReportConfig{
			Progress: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Overrides holds command line values that take precedence over the file.
// Zero values mean "not set".
type Overrides struct {
	Root          string
	QuarantineDir string
	LogLevel      string
	LogFormat     string
	Algorithm     string
	BufferSize    int
	Keep          string
	ReportPath    string
	DryRun        bool
	Verify        bool
	NoProgress    bool
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Root != "" {
		c.Scan.Root = o.Root
	}
	if o.QuarantineDir != "" {
		c.Scan.QuarantineDir = o.QuarantineDir
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.Algorithm != "" {
		c.Hashing.Algorithm = o.Algorithm
	}
	if o.BufferSize > 0 {
		c.Hashing.BufferSize = o.BufferSize
	}
	if o.Keep != "" {
		c.Relocation.Keep = o.Keep
	}
	if o.ReportPath != "" {
		c.Report.Path = o.ReportPath
	}
	if o.DryRun {
		c.Relocation.DryRun = true
	}
	if o.Verify {
		c.Relocation.Verify = true
	}
	if o.NoProgress {
		c.Report.Progress = false
	}
}
