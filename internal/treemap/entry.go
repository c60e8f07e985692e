package treemap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Label tells whether a range is known to the graph database or only part of
// the generated address-space universe.
type Label string

const (
	LabelExisting Label = "existing"
	LabelReserved Label = "reserved"
)

// ParseLabel maps wire labels onto Label. The browser client sends "neo4j" for
// ranges it fetched and "my_pool" for the rest.
func ParseLabel(s string) Label {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reserved", "my_pool", "free":
		return LabelReserved
	default:
		return LabelExisting
	}
}

// Entry is one caller-supplied range or host.
type Entry struct {
	// Value overrides the map key as the CIDR when set.
	Value      string `json:"value,omitempty" yaml:"value,omitempty"`
	Label      Label  `json:"label" yaml:"label"`
	Vulnerable bool   `json:"vulnerable" yaml:"vulnerable"`
}

type entryWire struct {
	Value      string          `json:"value"`
	Label      string          `json:"label"`
	Vulnerable *bool           `json:"vulnerable"`
	Vuln       json.RawMessage `json:"vuln"`
}

// UnmarshalJSON accepts both {label, vulnerable} and the legacy
// {value, label, vuln: 0|1} shape.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Value = w.Value
	e.Label = ParseLabel(w.Label)
	switch {
	case w.Vulnerable != nil:
		e.Vulnerable = *w.Vulnerable
	case len(w.Vuln) > 0:
		v, err := truthy(string(bytes.TrimSpace(w.Vuln)))
		if err != nil {
			return fmt.Errorf("vuln: %w", err)
		}
		e.Vulnerable = v
	default:
		e.Vulnerable = false
	}
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML input files.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	var w struct {
		Value      string `yaml:"value"`
		Label      string `yaml:"label"`
		Vulnerable *bool  `yaml:"vulnerable"`
		Vuln       string `yaml:"vuln"`
	}
	if err := node.Decode(&w); err != nil {
		return err
	}
	e.Value = w.Value
	e.Label = ParseLabel(w.Label)
	switch {
	case w.Vulnerable != nil:
		e.Vulnerable = *w.Vulnerable
	case w.Vuln != "":
		v, err := truthy(w.Vuln)
		if err != nil {
			return fmt.Errorf("vuln: %w", err)
		}
		e.Vulnerable = v
	}
	return nil
}

func truthy(s string) (bool, error) {
	s = strings.Trim(s, `"`)
	switch strings.ToLower(s) {
	case "", "null", "false":
		return false, nil
	case "true":
		return true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false, fmt.Errorf("not a flag: %q", s)
	}
	return f != 0, nil
}
