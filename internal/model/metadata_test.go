package model

import "testing"

func TestMetadataValue(t *testing.T) {
	var nilMeta Metadata
	v, err := nilMeta.Value()
	if err != nil {
		t.Fatalf("value nil: %v", err)
	}
	if v != "{}" {
		t.Errorf("nil map value = %v, want {}", v)
	}

	v, err = Metadata{"store": "co-op"}.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v != `{"store":"co-op"}` {
		t.Errorf("value = %v, want store json", v)
	}
}

func TestMetadataScan(t *testing.T) {
	var m Metadata
	if err := m.Scan(`{"store":"co-op"}`); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if m["store"] != "co-op" {
		t.Errorf("scanned = %v, want store co-op", m)
	}

	if err := m.Scan([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if m["a"] != float64(1) {
		t.Errorf("scanned = %v, want a=1", m)
	}

	if err := m.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if m == nil || len(m) != 0 {
		t.Errorf("nil scan = %v, want empty map", m)
	}

	if err := m.Scan(42); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestMetadataMerge(t *testing.T) {
	base := Metadata{"brand": "mill", "bin": "3"}
	in := Metadata{"brand": "organic", "opened": "yes"}

	out := base.Merge(in)

	if out["brand"] != "organic" {
		t.Errorf("incoming key must win, got %v", out["brand"])
	}
	if out["bin"] != "3" {
		t.Errorf("existing key must survive, got %v", out["bin"])
	}
	if out["opened"] != "yes" {
		t.Errorf("new key must appear, got %v", out["opened"])
	}

	// Inputs are untouched.
	if base["brand"] != "mill" {
		t.Errorf("base mutated: %v", base)
	}
	if len(in) != 2 {
		t.Errorf("incoming mutated: %v", in)
	}

	if out := Metadata(nil).Merge(nil); out == nil || len(out) != 0 {
		t.Errorf("nil merge = %v, want empty map", out)
	}
}
