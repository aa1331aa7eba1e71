// Package cliconfig loads the optional per-project `.probitas.jsonc`
// file: CLI defaults only (max workers, default timeout, log level, a
// NO_COLOR override) — never scenario content, which stays entirely
// external to the core per spec.md §1.
package cliconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// DefaultFileName is the config file looked for in the current working
// directory when a CLI invocation does not pass an explicit path.
const DefaultFileName = ".probitas.jsonc"

// Config is the full set of CLI defaults a project can pin so they don't
// need to be repeated on every invocation. A corresponding flag with a
// non-zero value takes precedence over a field; NoColor is OR-ed with
// --no-color, so no flag turns color back on once the file disables it.
type Config struct {
	MaxWorkers     int    `json:"maxWorkers,omitempty"`
	DefaultTimeout int    `json:"defaultTimeoutMs,omitempty"`
	MaxFailures    int    `json:"maxFailures,omitempty"`
	LogLevel       string `json:"logLevel,omitempty"`
	NoColor        bool   `json:"noColor,omitempty"`
}

// Default returns the engine-level floor a missing or empty config file
// falls back to.
func Default() Config {
	return Config{
		MaxWorkers:     0, // 0 means pkg/pool's own runtime.NumCPU() default
		DefaultTimeout: 30000,
		LogLevel:       "info",
	}
}

// Load reads and parses path as JSONC (tolerating comments and trailing
// commas, the same approach as the teacher's pkg/provisioner/json.go),
// overlaying it onto Default(). A missing file is not an error: Load
// returns Default() unchanged, since a project with no config file is
// the common case.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	standardized, err := standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return cfg, nil
}

// standardize strips JSONC comments and trailing commas via hujson so
// the result decodes with encoding/json.
func standardize(raw []byte) ([]byte, error) {
	ast, err := hujson.Parse(raw)
	if err != nil {
		return nil, err
	}
	ast.Standardize()
	return ast.Pack(), nil
}

// HasComments reports whether raw JSONC content contains a comment
// marker (// or /*); trailing commas are not detected. It is
// informational only, useful for a future `probitas
// fmt` command (out of scope here) that would need to warn before
// overwriting a hand-annotated file.
func HasComments(raw []byte) bool {
	return bytes.Contains(raw, []byte("//")) || bytes.Contains(raw, []byte("/*"))
}
