package models

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDuration_JSONForms(t *testing.T) {
	var d struct {
		W Duration `json:"w"`
	}
	if err := json.Unmarshal([]byte(`{"w":"90s"}`), &d); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if d.W.Std() != 90*time.Second {
		t.Errorf("expected 90s, got %v", d.W.Std())
	}

	if err := json.Unmarshal([]byte(`{"w":60}`), &d); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if d.W.Std() != 60*time.Second {
		t.Errorf("expected bare number as seconds, got %v", d.W.Std())
	}

	if err := json.Unmarshal([]byte(`{"w":"nonsense"}`), &d); err == nil {
		t.Errorf("expected error for unparseable duration")
	}

	b, err := json.Marshal(struct {
		W Duration `json:"w"`
	}{W: Duration(90 * time.Second)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"w":"1m30s"}` {
		t.Errorf("unexpected marshal output %s", b)
	}
}

func TestDuration_YAMLForms(t *testing.T) {
	var d struct {
		W Duration `yaml:"w"`
	}
	if err := yaml.Unmarshal([]byte("w: 5m\n"), &d); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if d.W.Std() != 5*time.Minute {
		t.Errorf("expected 5m, got %v", d.W.Std())
	}

	if err := yaml.Unmarshal([]byte("w: 30\n"), &d); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if d.W.Std() != 30*time.Second {
		t.Errorf("expected bare number as seconds, got %v", d.W.Std())
	}
}
