package qualitygate

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"quality-backend/internal/measures"
)

//go:embed defaults.yaml
var builtinDefaults []byte

// Defaults is the quality configuration file: the gate used by projects
// without their own, and the debt model.
type Defaults struct {
	Gate struct {
		Name       string      `yaml:"name"`
		Conditions []Condition `yaml:"conditions"`
	} `yaml:"gate"`
	Debt measures.DebtConfig `yaml:"debt"`
}

// LoadDefaults reads the quality config at path, or the built-in one when
// path is empty. Unknown keys are rejected.
func LoadDefaults(path string) (Defaults, error) {
	raw := builtinDefaults
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Defaults{}, fmt.Errorf("read quality config: %w", err)
		}
		raw = b
	}
	return ParseDefaults(raw)
}

// ParseDefaults decodes and validates a quality config document.
func ParseDefaults(raw []byte) (Defaults, error) {
	var d Defaults
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Defaults{}, fmt.Errorf("decode quality config: %w", err)
	}
	conds, err := NormalizeConditions(d.Gate.Conditions)
	if err != nil {
		return Defaults{}, err
	}
	d.Gate.Conditions = conds
	if strings.TrimSpace(d.Gate.Name) == "" {
		d.Gate.Name = "Default quality gate"
	}
	if err := d.Debt.Validate(); err != nil {
		return Defaults{}, err
	}
	return d, nil
}

// DefaultGate returns the configured default gate for a project.
func (d Defaults) DefaultGate(projectID string) Gate {
	conds := make([]Condition, len(d.Gate.Conditions))
	copy(conds, d.Gate.Conditions)
	return Gate{
		ProjectID:  projectID,
		Name:       d.Gate.Name,
		Conditions: conds,
		IsDefault:  true,
	}
}
