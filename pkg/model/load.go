package model

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSource is the source reported for the embedded artifact.
const DefaultSource = "embedded:boston.yaml"

var (
	//go:embed assets/*
	f embed.FS
)

// Artifact is the on-disk form of a linear model.
type Artifact struct {
	Name         string    `json:"name" yaml:"name"`
	Version      string    `json:"version" yaml:"version"`
	Features     []string  `json:"features" yaml:"features"`
	Intercept    float64   `json:"intercept" yaml:"intercept"`
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
	Scaler       *Scaler   `json:"scaler,omitempty" yaml:"scaler,omitempty"`
}

// Load reads a model artifact from path. Files ending in .json are decoded as
// JSON, everything else as YAML. An empty path loads the embedded default.
func Load(path string) (Model, error) {
	if path == "" {
		return Default()
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact %s: %w", path, err)
	}

	m, err := Parse(b, strings.EqualFold(filepath.Ext(path), ".json"), path)
	if err != nil {
		return nil, err
	}

	slog.Debug("model loaded", "path", path, "name", m.Info().Name, "version", m.Info().Version)
	return m, nil
}

// Default returns the embedded Boston Housing model.
func Default() (Model, error) {
	b, err := f.ReadFile("assets/boston.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded model: %w", err)
	}
	return Parse(b, false, DefaultSource)
}

// Parse decodes artifact content into a model. The source is recorded in Info.
func Parse(b []byte, isJSON bool, source string) (Model, error) {
	if len(b) == 0 {
		return nil, errors.New("model artifact is empty")
	}

	var a Artifact
	if isJSON {
		if err := json.Unmarshal(b, &a); err != nil {
			return nil, fmt.Errorf("decoding model artifact %s: %w", source, err)
		}
	} else {
		if err := yaml.Unmarshal(b, &a); err != nil {
			return nil, fmt.Errorf("decoding model artifact %s: %w", source, err)
		}
	}

	info := Info{
		Name:     a.Name,
		Version:  a.Version,
		Source:   source,
		Features: a.Features,
	}

	m, err := NewLinear(info, a.Intercept, a.Coefficients, a.Scaler)
	if err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", source, err)
	}
	return m, nil
}
