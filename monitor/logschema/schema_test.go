package logschema

import "testing"

func TestValidate(t *testing.T) {
	err := Validate("collect_closed", map[string]interface{}{
		"in_window": 120,
		"scanned":   100,
		"upserted":  3,
		"origin":    "online",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = Validate("collect_closed", map[string]interface{}{
		"origin": "online",
	})
	if err == nil {
		t.Fatalf("expected error for missing fields")
	}
}

func TestValidateUnknownEventPasses(t *testing.T) {
	if err := Validate("mirror_started", map[string]interface{}{}); err != nil {
		t.Fatalf("unknown events must not fail validation: %v", err)
	}
}

func TestKnownEvents(t *testing.T) {
	names := Known()
	if len(names) == 0 {
		t.Fatalf("expected non-empty schema list")
	}
	found := false
	for _, n := range names {
		if n == "send_failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("send_failed not found in schemas")
	}
}
