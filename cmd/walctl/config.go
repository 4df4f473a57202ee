package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"waldb/internal/logger"
)

// configFileName is the JSONC config file walctl looks for inside the log
// directory, the same "file next to the data it describes" convention the
// logger itself uses for its log files.
const configFileName = "waldb.json"

// Config mirrors logger.Options plus the operator-facing knobs walctl
// itself needs. Every field is optional; zero values fall back to
// logger.Options' own defaults. WriteLogFiles and TrimLogFiles are decoded
// but not applied: loggerOptions passes on only LgMax and LgBsize.
type Config struct {
	LgMax         int64 `json:"lg_max,omitempty"`
	LgBsize       int   `json:"lg_bsize,omitempty"`
	WriteLogFiles *bool `json:"write_log_files,omitempty"`
	TrimLogFiles  *bool `json:"trim_log_files,omitempty"`
}

// loadConfig reads dir/waldb.json if present. A missing file is not an
// error; it just means every knob takes the logger's built-in default.
// The file may use JSONC syntax (comments, trailing commas) since it is
// parsed with hujson before being unmarshaled as JSON.
func loadConfig(dir string) (Config, error) {
	var cfg Config

	path := filepath.Join(dir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// loggerOptions converts Config into logger.Options, applying the
// logger's zero-means-default convention.
func (c Config) loggerOptions() logger.Options {
	return logger.Options{
		LgMax:   c.LgMax,
		LgBsize: c.LgBsize,
	}
}
