package intake

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/validate"
)

//go:embed presets.yaml
var builtinPresetsYAML []byte

// ErrUnknownPreset is returned when a preset key is not registered
var ErrUnknownPreset = errors.New("unknown preset")

// Preset is a named, pre-populated set of intake answers
type Preset struct {
	Key            string `yaml:"key"`
	Description    string `yaml:"description,omitempty"`
	Name           string `yaml:"name"`
	Age            int    `yaml:"age"`
	MedicaidStatus bool   `yaml:"medicaid_status"`
	DisabilityType string `yaml:"disability_type"`
	HousingStatus  string `yaml:"housing_status"`

	// ExpectEligible documents the intended outcome; it is never copied into a record
	ExpectEligible *bool `yaml:"expect_eligible,omitempty"`
}

// Record builds a fresh intake record holding only the preset's answers
func (p Preset) Record() model.IntakeRecord {
	return model.IntakeRecord{
		Name:           model.StringPtr(p.Name),
		Age:            model.IntPtr(p.Age),
		MedicaidStatus: model.BoolPtr(p.MedicaidStatus),
		DisabilityType: model.StringPtr(validate.Disability(p.DisabilityType)),
		HousingStatus:  model.StringPtr(p.HousingStatus),
	}
}

// validate runs the preset's answers through the field rules
func (p Preset) validate() error {
	if strings.TrimSpace(p.Key) == "" {
		return fmt.Errorf("preset key is required")
	}
	rec := &model.IntakeRecord{}
	checks := []struct {
		field model.Field
		raw   string
	}{
		{model.FieldName, p.Name},
		{model.FieldAge, strconv.Itoa(p.Age)},
		{model.FieldHousing, p.HousingStatus},
	}
	for _, c := range checks {
		if err := validate.Apply(rec, c.field, c.raw); err != nil {
			return fmt.Errorf("preset %s: %w", p.Key, err)
		}
	}
	return nil
}

// PresetBook holds the registered presets
type PresetBook struct {
	presets map[string]Preset
	builtin map[string]bool
}

// NewPresetBook returns a book holding the built-in presets
func NewPresetBook() *PresetBook {
	book := &PresetBook{
		presets: make(map[string]Preset),
		builtin: make(map[string]bool),
	}

	presets, err := parsePresets(builtinPresetsYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in presets: %v", err))
	}
	for _, p := range presets {
		book.presets[p.Key] = p
		book.builtin[p.Key] = true
	}
	return book
}

// LoadFile adds presets from a YAML file. Built-in presets cannot be replaced.
func (b *PresetBook) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read presets file: %w", err)
	}

	presets, err := parsePresets(data)
	if err != nil {
		return fmt.Errorf("parse presets file %s: %w", path, err)
	}

	for _, p := range presets {
		if b.builtin[p.Key] {
			return fmt.Errorf("preset %s is built in and cannot be redefined", p.Key)
		}
		b.presets[p.Key] = p
	}
	return nil
}

// Get returns the preset registered under key
func (b *PresetBook) Get(key string) (Preset, error) {
	p, ok := b.presets[strings.TrimSpace(key)]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, key)
	}
	return p, nil
}

// Keys returns the registered preset keys, sorted
func (b *PresetBook) Keys() []string {
	keys := make([]string, 0, len(b.presets))
	for k := range b.presets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns the registered presets sorted by key
func (b *PresetBook) All() []Preset {
	keys := b.Keys()
	out := make([]Preset, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.presets[k])
	}
	return out
}

func parsePresets(data []byte) ([]Preset, error) {
	var presets []Preset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, p := range presets {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if seen[p.Key] {
			return nil, fmt.Errorf("duplicate preset key: %s", p.Key)
		}
		seen[p.Key] = true
	}
	return presets, nil
}
