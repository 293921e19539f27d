package interp

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is a named interpreter configuration loaded from a YAML file.
// Profiles tune how code runs without touching the main config: a plotting
// profile might raise the figure DPI, a data profile might pre-import pandas
// through the extra preamble.
type Profile struct {
	Name            string   `yaml:"name"`
	Python          string   `yaml:"python"`
	FigureDPI       int      `yaml:"figure_dpi"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	ExtraPreamble   []string `yaml:"extra_preamble"`
	AutoSaveFigures *bool    `yaml:"auto_save_figures"`
}

// LoadProfile reads an interpreter profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}

	return &p, nil
}

// Apply overlays the profile's settings onto opts. Zero values leave the
// existing setting alone.
func (p *Profile) Apply(opts *Options) {
	if p.Python != "" {
		opts.Python = p.Python
	}
	if p.FigureDPI > 0 {
		opts.FigureDPI = p.FigureDPI
	}
	if p.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	if len(p.ExtraPreamble) > 0 {
		opts.ExtraPreamble = append(opts.ExtraPreamble, p.ExtraPreamble...)
	}
	if p.AutoSaveFigures != nil {
		opts.AutoSaveFigures = *p.AutoSaveFigures
	}
}
