package model

import (
	"encoding/json"
	"fmt"
)

type jsonValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes v as {"type": "...", "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	var (
		raw any
		err error
	)
	switch v.Type {
	case TypeInt:
		raw, err = v.AsInt()
	case TypeFloat:
		raw, err = v.AsFloat()
	case TypeChar, TypeString:
		raw, err = v.AsString()
	default:
		return []byte("null"), nil
	}
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonValue{Type: v.Type.String(), Value: payload})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value{}
		return nil
	}
	var jv jsonValue
	if err := json.Unmarshal(b, &jv); err != nil {
		return err
	}
	switch jv.Type {
	case "int":
		var n int64
		if err := json.Unmarshal(jv.Value, &n); err != nil {
			return err
		}
		*v = Int(n)
	case "float":
		var f float64
		if err := json.Unmarshal(jv.Value, &f); err != nil {
			return err
		}
		*v = Float(f)
	case "char":
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return err
		}
		if len(s) != 1 {
			return fmt.Errorf("model: char value must be one byte, got %q", s)
		}
		*v = Char(s[0])
	case "string":
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return err
		}
		*v = String(s)
	default:
		return fmt.Errorf("model: unknown value type %q", jv.Type)
	}
	return nil
}
