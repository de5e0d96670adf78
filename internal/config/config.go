package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultFileName = "launcher.yaml"

type Config struct {
	TargetScript     string   `yaml:"targetScript"`
	RequirementsFile string   `yaml:"requirementsFile"`
	RequiredModules  []string `yaml:"requiredModules"`
	MinPython        string   `yaml:"minPython"`
	ExtraPythonPaths []string `yaml:"extraPythonPaths"`
	StateDir         string   `yaml:"stateDir"`
	LogDir           string   `yaml:"logDir"`
}

// Load reads the launcher config at path. A missing file is not an error:
// the built-in defaults describe the stock Algo Trading Pro layout.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Normalize(Config{})
		}
		return Config{}, fmt.Errorf("read launcher config: %w", err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml (%s): %w", filepath.Base(path), err)
	}
	return Normalize(cfg)
}

func Normalize(cfg Config) (Config, error) {
	if cfg.TargetScript == "" {
		cfg.TargetScript = "TradingGUI.py"
	}
	if cfg.RequirementsFile == "" {
		cfg.RequirementsFile = "requirements.txt"
	}
	if len(cfg.RequiredModules) == 0 {
		cfg.RequiredModules = []string{"PyQt5", "pandas", "numpy", "requests", "websocket"}
	}
	if cfg.MinPython == "" {
		cfg.MinPython = "3.8"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = ".tradelaunch"
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	if _, _, err := cfg.MinVersion(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MinVersion parses MinPython ("3.8") into its major/minor floor.
func (c Config) MinVersion() (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(c.MinPython), ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("minPython must look like \"3.8\", got %q", c.MinPython)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("minPython major segment: %w", err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("minPython minor segment: %w", err)
	}
	return major, minor, nil
}
