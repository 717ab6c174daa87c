package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/catalogsync/internal/delta"
	"github.com/pelletier/go-toml/v2"
)

// CatalogConfig declares the payload types, lists and scripted entries
// shared by a producer and its consumers.
type CatalogConfig struct {
	Name     string          `toml:"name"`
	Payloads []PayloadConfig `toml:"payloads"`
	Lists    []string        `toml:"lists"`
	Entries  []EntryConfig   `toml:"entries"`
}

// PayloadConfig is one registered payload type and its wire index.
type PayloadConfig struct {
	Name   string        `toml:"name"`
	Index  uint16        `toml:"index"`
	Fields []FieldConfig `toml:"fields"`
}

// FieldConfig is one schema field. Quantize names the integer wire kind
// for a float field; Scale, PostScale and SignFlag only apply with it.
type FieldConfig struct {
	Name      string  `toml:"name"`
	Kind      string  `toml:"kind"`
	Quantize  string  `toml:"quantize"`
	Scale     float64 `toml:"scale"`
	PostScale float64 `toml:"post_scale"`
	SignFlag  bool    `toml:"sign_flag"`
}

// EntryConfig adds Value to List at Tick. With Payload set, Values fills
// the named fields; repeating a value at a later tick changes its payload.
type EntryConfig struct {
	List    string         `toml:"list"`
	Value   string         `toml:"value"`
	Tick    int            `toml:"tick"`
	Payload string         `toml:"payload"`
	Values  map[string]any `toml:"values"`
}

func LoadCatalogConfig(path string) (CatalogConfig, error) {
	var cfg CatalogConfig
	if err := loadToml(path, &cfg); err != nil {
		return CatalogConfig{}, err
	}
	return finishCatalog(cfg)
}

// ParseCatalogConfig reads a catalog from raw TOML.
func ParseCatalogConfig(data []byte) (CatalogConfig, error) {
	var cfg CatalogConfig
	if err := decodeStrict(data, &cfg); err != nil {
		return CatalogConfig{}, fmt.Errorf("config parse failed: %w", err)
	}
	return finishCatalog(cfg)
}

func finishCatalog(cfg CatalogConfig) (CatalogConfig, error) {
	if cfg.Name == "" {
		cfg.Name = "catalog"
	}
	if err := ValidateCatalogConfig(cfg); err != nil {
		return CatalogConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := decodeStrict(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// Misspelled keys fail the load instead of silently zeroing a field.
func decodeStrict(data []byte, out any) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func ValidateCatalogConfig(cfg CatalogConfig) error {
	payloads := make(map[string]PayloadConfig, len(cfg.Payloads))
	indices := make(map[uint16]string, len(cfg.Payloads))
	for i, p := range cfg.Payloads {
		if err := ValidatePayload(p); err != nil {
			return fmt.Errorf("payload[%d] invalid: %w", i, err)
		}
		if _, ok := payloads[p.Name]; ok {
			return fmt.Errorf("payload[%d] invalid: duplicate name %q", i, p.Name)
		}
		if other, ok := indices[p.Index]; ok {
			return fmt.Errorf("payload[%d] invalid: index %d already used by %q", i, p.Index, other)
		}
		payloads[p.Name] = p
		indices[p.Index] = p.Name
	}

	lists := make(map[string]struct{}, len(cfg.Lists))
	for i, name := range cfg.Lists {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("list[%d] invalid: blank name", i)
		}
		if _, ok := lists[name]; ok {
			return fmt.Errorf("list[%d] invalid: duplicate name %q", i, name)
		}
		lists[name] = struct{}{}
	}

	for i, e := range cfg.Entries {
		if _, ok := lists[e.List]; !ok {
			return fmt.Errorf("entry[%d] invalid: unknown list %q", i, e.List)
		}
		if strings.TrimSpace(e.Value) == "" {
			return fmt.Errorf("entry[%d] invalid: value is required", i)
		}
		if e.Tick < 0 {
			return fmt.Errorf("entry[%d] invalid: negative tick", i)
		}
		if e.Payload == "" {
			if len(e.Values) > 0 {
				return fmt.Errorf("entry[%d] invalid: values without payload", i)
			}
			continue
		}
		p, ok := payloads[e.Payload]
		if !ok {
			return fmt.Errorf("entry[%d] invalid: unknown payload %q", i, e.Payload)
		}
		for name := range e.Values {
			if !p.hasField(name) {
				return fmt.Errorf("entry[%d] invalid: payload %q has no field %q", i, p.Name, name)
			}
		}
	}
	return nil
}

func ValidatePayload(p PayloadConfig) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}
	for i, f := range p.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("field[%d]: name is required", i)
		}
		kind, err := delta.ParseKind(f.Kind)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		if f.Quantize == "" {
			if f.Scale != 0 || f.PostScale != 0 || f.SignFlag {
				return fmt.Errorf("field %q: scale options need quantize", f.Name)
			}
			continue
		}
		if !kind.Float() {
			return fmt.Errorf("field %q: only float fields can be quantized", f.Name)
		}
		wire, err := delta.ParseKind(f.Quantize)
		if err != nil {
			return fmt.Errorf("field %q quantize: %w", f.Name, err)
		}
		if !wire.Integer() {
			return fmt.Errorf("field %q: quantize kind %s is not an integer", f.Name, wire)
		}
	}
	return nil
}

func (p PayloadConfig) hasField(name string) bool {
	for _, f := range p.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// LastTick is the highest tick any entry is scheduled on.
func (cfg CatalogConfig) LastTick() int {
	last := 0
	for _, e := range cfg.Entries {
		last = max(last, e.Tick)
	}
	return last
}

// EntriesAt returns the entries scheduled on tick, in file order.
func (cfg CatalogConfig) EntriesAt(tick int) []EntryConfig {
	var out []EntryConfig
	for _, e := range cfg.Entries {
		if e.Tick == tick {
			out = append(out, e)
		}
	}
	return out
}
