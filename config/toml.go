package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Keep in sync with the mapstructure tags in config.go.
//
//go:embed config.toml.tpl
var configTOML string

var configTemplate = template.Must(template.New("config.toml").Parse(configTOML))

// Render produces the config.toml contents for cfg.
func (cfg *Config) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteConfigFile renders cfg to path, creating the parent directory.
func WriteConfigFile(path string, cfg *Config) error {
	dat, err := cfg.Render()
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, dat, 0o644)
}
