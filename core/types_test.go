package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestToolDescriptorFolder(t *testing.T) {
	d := ToolDescriptor{Name: "comfyui"}
	if got := d.Folder(); got != "comfyui" {
		t.Fatalf("Folder() = %q, want comfyui", got)
	}
	d.FolderName = "ComfyUI"
	if got := d.Folder(); got != "ComfyUI" {
		t.Fatalf("Folder() = %q, want ComfyUI", got)
	}
}

func TestManifestUpsertReplacesInPlace(t *testing.T) {
	m := &Manifest{}
	m.Upsert(ToolDescriptor{Name: "a", Description: "one"})
	m.Upsert(ToolDescriptor{Name: "b"})
	m.Upsert(ToolDescriptor{Name: "a", Description: "two"})

	if len(m.Tools) != 2 {
		t.Fatalf("len(Tools) = %d, want 2", len(m.Tools))
	}
	if m.Tools[0].Name != "a" || m.Tools[0].Description != "two" {
		t.Fatalf("Tools[0] = %+v, want replaced entry for a", m.Tools[0])
	}
	got, ok := m.Get("b")
	if !ok || got.Name != "b" {
		t.Fatalf("Get(b) = %+v, %v", got, ok)
	}
}

func TestDescriptorUnknownFieldRoundTrip(t *testing.T) {
	in := []byte(`{"name":"onetrainer","url":"https://example.com/x.git","future_field":{"nested":true},"gui_mode":true}`)

	var d ToolDescriptor
	if err := json.Unmarshal(in, &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if d.Name != "onetrainer" || !d.GUIMode {
		t.Fatalf("unexpected decode: %+v", d)
	}
	if _, ok := d.Extra["future_field"]; !ok {
		t.Fatalf("Extra missing future_field: %v", d.Extra)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var round map[string]json.RawMessage
	if err := json.Unmarshal(out, &round); err != nil {
		t.Fatalf("re-decode error = %v", err)
	}
	if string(round["future_field"]) != `{"nested":true}` {
		t.Fatalf("future_field = %s, want preserved", round["future_field"])
	}
}

func TestManifestUnknownTopLevelFieldRoundTrip(t *testing.T) {
	in := []byte(`{"metadata":{"version":"1","sponsor":"acme"},"tools":[],"x_checksum":"abc"}`)

	var m Manifest
	if err := json.Unmarshal(in, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m.Metadata.Version != "1" {
		t.Fatalf("Version = %q, want 1", m.Metadata.Version)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var round map[string]json.RawMessage
	if err := json.Unmarshal(out, &round); err != nil {
		t.Fatalf("re-decode error = %v", err)
	}
	if string(round["x_checksum"]) != `"abc"` {
		t.Fatalf("x_checksum = %s, want preserved", round["x_checksum"])
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(round["metadata"], &meta); err != nil {
		t.Fatalf("metadata decode error = %v", err)
	}
	if string(meta["sponsor"]) != `"acme"` {
		t.Fatalf("sponsor = %s, want preserved", meta["sponsor"])
	}
}

func TestPlanHasInferred(t *testing.T) {
	p := Plan{Steps: []PlanStep{
		{Command: "git clone x", Confidence: ConfidenceExact},
	}}
	if p.HasInferred() {
		t.Fatal("HasInferred() = true, want false")
	}
	p.Steps = append(p.Steps, PlanStep{Command: "pip install -r requirements.txt", Confidence: ConfidenceInferred})
	if !p.HasInferred() {
		t.Fatal("HasInferred() = false, want true")
	}
}

func TestErrorCodeFlow(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(CodeExecution, "step failed", cause).WithDetails(map[string]any{"step": 2})

	if got := CodeOf(err); got != CodeExecution {
		t.Fatalf("CodeOf() = %q, want %q", got, CodeExecution)
	}
	if !IsCode(err, CodeExecution) {
		t.Fatal("IsCode() = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is(err, cause) = false, want true")
	}
	if err.Details["step"] != 2 {
		t.Fatalf("Details[step] = %v, want 2", err.Details["step"])
	}
}
