package types

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	raw := `{"task_type":"inference","domain":"NLP"}`
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if got != raw {
		t.Fatalf("ExtractJSON() = %q, want %q", got, raw)
	}
}

func TestExtractJSON_FencedWithProse(t *testing.T) {
	raw := "Here is the extracted spec:\n```json\n{\"task_type\": \"training\"}\n```\nLet me know if you need more."
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("extracted payload does not unmarshal: %v", err)
	}
	if m["task_type"] != "training" {
		t.Fatalf("task_type = %q, want %q", m["task_type"], "training")
	}
}

func TestExtractJSON_NestedAndStrings(t *testing.T) {
	raw := `prefix {"a":{"b":"closing brace in string }"},"c":[1,2]} suffix {"ignored":true}`
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	want := `{"a":{"b":"closing brace in string }"},"c":[1,2]}`
	if got != want {
		t.Fatalf("ExtractJSON() = %q, want %q", got, want)
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	if _, err := ExtractJSON("I could not produce a plan."); err == nil {
		t.Fatalf("ExtractJSON() error = nil, want non-nil for prose-only output")
	}
}

func TestExtractJSON_Unbalanced(t *testing.T) {
	if _, err := ExtractJSON(`{"a": 1`); err == nil {
		t.Fatalf("ExtractJSON() error = nil, want non-nil for truncated object")
	}
}
