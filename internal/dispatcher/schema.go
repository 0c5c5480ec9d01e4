package dispatcher

import (
	"fmt"

	cerrors "chromecontrol/internal/errors"
)

// Kind is the small type vocabulary a tool's declared schema uses to
// validate incoming JSON-RPC params (spec.md §9: "replace dynamic runtime
// schema validation with a per-tool schema descriptor built at registration
// time"). Deliberately minimal: the spec treats the full schema vocabulary
// as an external concern (§1) and only asks for types, enums, ranges, and
// required/optional/default.
type Kind string

const (
	KindString  Kind = "string"
	KindInt     Kind = "int"
	KindBool    Kind = "bool"
	KindObject  Kind = "object"
	KindStringArray Kind = "string_array"
)

// Param describes one argument a tool accepts.
type Param struct {
	Name     string
	Kind     Kind
	Required bool
	Default  interface{}
	Enum     []string
	Min, Max *float64
}

// Schema is a tool's full argument descriptor, walked by the dispatcher to
// validate and coerce an incoming params object before the handler ever
// sees it.
type Schema struct {
	Params []Param
}

// Validate checks and coerces raw JSON-decoded params (a
// map[string]interface{}, as produced by encoding/json into an
// interface{}) against the schema, filling in defaults for absent optional
// fields. It returns *ChromeError with ErrorType InvalidArguments on any
// mismatch, never a bare error, so dispatcher.Call can surface it directly
// as a structured tool failure.
func (s Schema) Validate(raw map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(s.Params))

	for _, p := range s.Params {
		v, present := raw[p.Name]
		if !present {
			if p.Required {
				return nil, cerrors.New(cerrors.InvalidArguments, "missing required argument: "+p.Name)
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		coerced, err := coerce(p, v)
		if err != nil {
			return nil, err
		}
		out[p.Name] = coerced
	}

	return out, nil
}

func coerce(p Param, v interface{}) (interface{}, error) {
	switch p.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, invalidKind(p, "string")
		}
		if len(p.Enum) > 0 && !contains(p.Enum, s) {
			return nil, cerrors.New(cerrors.InvalidArguments,
				fmt.Sprintf("argument %q must be one of %v, got %q", p.Name, p.Enum, s))
		}
		return s, nil

	case KindInt:
		f, ok := v.(float64) // encoding/json decodes all JSON numbers as float64
		if !ok {
			return nil, invalidKind(p, "int")
		}
		if p.Min != nil && f < *p.Min {
			return nil, rangeErr(p, f)
		}
		if p.Max != nil && f > *p.Max {
			return nil, rangeErr(p, f)
		}
		return int(f), nil

	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, invalidKind(p, "bool")
		}
		return b, nil

	case KindObject:
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, invalidKind(p, "object")
		}
		return m, nil

	case KindStringArray:
		arr, ok := v.([]interface{})
		if !ok {
			return nil, invalidKind(p, "string array")
		}
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				return nil, invalidKind(p, "string array")
			}
			out = append(out, s)
		}
		return out, nil

	default:
		return v, nil
	}
}

func invalidKind(p Param, want string) error {
	return cerrors.New(cerrors.InvalidArguments, fmt.Sprintf("argument %q must be a %s", p.Name, want))
}

func rangeErr(p Param, got float64) error {
	return cerrors.New(cerrors.InvalidArguments, fmt.Sprintf("argument %q value %v out of range", p.Name, got))
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
