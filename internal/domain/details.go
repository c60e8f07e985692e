package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Details is the optional secondary attribute of a node. It is either a
// string (a subnet note, a domain tag) or a number (a CVE base score).
type Details struct {
	text    string
	number  float64
	numeric bool
}

// StringDetails wraps a string value
func StringDetails(s string) *Details {
	return &Details{text: s}
}

// NumberDetails wraps a numeric value
func NumberDetails(f float64) *Details {
	return &Details{number: f, numeric: true}
}

// IsNumber reports whether the value was supplied as a number
func (d *Details) IsNumber() bool {
	return d != nil && d.numeric
}

// Float returns the numeric value. Strings holding a number are accepted,
// which is how some CVE scores arrive from the database.
func (d *Details) Float() (float64, bool) {
	if d == nil {
		return 0, false
	}
	if d.numeric {
		return d.number, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(d.text), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (d *Details) String() string {
	if d == nil {
		return ""
	}
	if d.numeric {
		return strconv.FormatFloat(d.number, 'f', -1, 64)
	}
	return d.text
}

// Equal compares two optional values
func (d *Details) Equal(o *Details) bool {
	if d == nil || o == nil {
		return d == o
	}
	return *d == *o
}

// MarshalJSON implements json.Marshaler
func (d Details) MarshalJSON() ([]byte, error) {
	if d.numeric {
		return json.Marshal(d.number)
	}
	return json.Marshal(d.text)
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Details) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = Details{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Details{text: s}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("details must be a string or a number: %w", err)
	}
	*d = Details{number: f, numeric: true}
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Details) MarshalYAML() (any, error) {
	if d.numeric {
		return d.number, nil
	}
	return d.text, nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Details) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("details must be a scalar, got kind %d", node.Kind)
	}
	switch node.Tag {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return err
		}
		*d = Details{number: f, numeric: true}
	default:
		*d = Details{text: node.Value}
	}
	return nil
}
