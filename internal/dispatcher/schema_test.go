package dispatcher

import "testing"

func float64p(f float64) *float64 { return &f }

func TestSchemaValidate(t *testing.T) {
	t.Run("required missing", func(t *testing.T) {
		s := Schema{Params: []Param{{Name: "url", Kind: KindString, Required: true}}}
		if _, err := s.Validate(map[string]interface{}{}); err == nil {
			t.Fatal("expected error for missing required argument")
		}
	})

	t.Run("default filled for absent optional", func(t *testing.T) {
		s := Schema{Params: []Param{{Name: "status", Kind: KindInt, Default: 200}}}
		out, err := s.Validate(map[string]interface{}{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out["status"] != 200 {
			t.Errorf("expected default 200, got %v", out["status"])
		}
	})

	t.Run("string enum rejects unknown value", func(t *testing.T) {
		s := Schema{Params: []Param{{Name: "action", Kind: KindString, Enum: []string{"observe", "mock"}}}}
		if _, err := s.Validate(map[string]interface{}{"action": "explode"}); err == nil {
			t.Fatal("expected error for value outside enum")
		}
	})

	t.Run("string enum accepts known value", func(t *testing.T) {
		s := Schema{Params: []Param{{Name: "action", Kind: KindString, Enum: []string{"observe", "mock"}}}}
		out, err := s.Validate(map[string]interface{}{"action": "mock"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out["action"] != "mock" {
			t.Errorf("expected 'mock', got %v", out["action"])
		}
	})

	t.Run("int coerces from json float64", func(t *testing.T) {
		s := Schema{Params: []Param{{Name: "delay_ms", Kind: KindInt}}}
		out, err := s.Validate(map[string]interface{}{"delay_ms": float64(150)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out["delay_ms"] != 150 {
			t.Errorf("expected 150, got %v", out["delay_ms"])
		}
	})

	t.Run("int out of range rejected", func(t *testing.T) {
		s := Schema{Params: []Param{{Name: "status", Kind: KindInt, Min: float64p(100), Max: float64p(599)}}}
		if _, err := s.Validate(map[string]interface{}{"status": float64(42)}); err == nil {
			t.Fatal("expected range error")
		}
	})

	t.Run("wrong type rejected", func(t *testing.T) {
		s := Schema{Params: []Param{{Name: "enabled", Kind: KindBool}}}
		if _, err := s.Validate(map[string]interface{}{"enabled": "yes"}); err == nil {
			t.Fatal("expected type error for non-bool value")
		}
	})

	t.Run("object passthrough", func(t *testing.T) {
		s := Schema{Params: []Param{{Name: "snapshot", Kind: KindObject}}}
		in := map[string]interface{}{"cookies": []interface{}{}}
		out, err := s.Validate(map[string]interface{}{"snapshot": in})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := out["snapshot"].(map[string]interface{}); !ok {
			t.Errorf("expected snapshot to remain a map, got %T", out["snapshot"])
		}
	})

	t.Run("string array coerces json array of strings", func(t *testing.T) {
		s := Schema{Params: []Param{{Name: "domains", Kind: KindStringArray}}}
		out, err := s.Validate(map[string]interface{}{"domains": []interface{}{"a.com", "b.com"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, ok := out["domains"].([]string)
		if !ok || len(got) != 2 {
			t.Errorf("expected []string of length 2, got %#v", out["domains"])
		}
	})

	t.Run("string array rejects mixed-type elements", func(t *testing.T) {
		s := Schema{Params: []Param{{Name: "domains", Kind: KindStringArray}}}
		if _, err := s.Validate(map[string]interface{}{"domains": []interface{}{"a.com", 1}}); err == nil {
			t.Fatal("expected error for non-string array element")
		}
	})
}
