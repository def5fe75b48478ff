package rowstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Params are the bind parameters of a statement: named, positional, or
// none. They are always passed to the backend bind primitive and never
// formatted into SQL text.
type Params struct {
	Named      map[string]any
	Positional []any
}

// Named returns named parameters.
func Named(args map[string]any) Params { return Params{Named: args} }

// Positional returns positional parameters.
func Positional(args ...any) Params { return Params{Positional: args} }

// IsZero reports whether no parameters are set.
func (p Params) IsZero() bool {
	return len(p.Named) == 0 && len(p.Positional) == 0
}

func (p Params) bind(stmt PreparedStatement) PreparedStatement {
	switch {
	case len(p.Named) > 0:
		return stmt.BindNamed(p.Named)
	case len(p.Positional) > 0:
		return stmt.Bind(p.Positional...)
	default:
		return stmt
	}
}

// UnmarshalJSON accepts a JSON object (named), array (positional) or null.
func (p *Params) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = Params{}
		return nil
	}

	dec := func(v any) error {
		d := json.NewDecoder(bytes.NewReader(data))
		d.UseNumber()
		return d.Decode(v)
	}

	switch data[0] {
	case '{':
		var named map[string]any
		if err := dec(&named); err != nil {
			return err
		}
		*p = Params{Named: normalizeNumbers(named).(map[string]any)}
	case '[':
		var pos []any
		if err := dec(&pos); err != nil {
			return err
		}
		*p = Params{Positional: normalizeNumbers(pos).([]any)}
	default:
		return fmt.Errorf("params must be an object or an array")
	}
	return nil
}

// MarshalJSON writes named params as an object and positional params as
// an array.
func (p Params) MarshalJSON() ([]byte, error) {
	switch {
	case len(p.Named) > 0:
		return json.Marshal(p.Named)
	case len(p.Positional) > 0:
		return json.Marshal(p.Positional)
	default:
		return []byte("null"), nil
	}
}

// normalizeNumbers converts json.Number values to int64 when integral and
// float64 otherwise, so drivers receive native types.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	default:
		return v
	}
}

// Statement is a SQL text plus its bind parameters.
type Statement struct {
	SQL    string `json:"sql" validate:"required"`
	Params Params `json:"params"`
}
