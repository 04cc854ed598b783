package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/merlin-labs/merlin/core"
)

func testManifest() *core.Manifest {
	return &core.Manifest{
		Metadata: core.ManifestMeta{
			Version:     "1.0",
			CreatedBy:   "merlin",
			Description: "starter tools",
		},
		Tools: []core.ToolDescriptor{
			{
				Name:            "comfyui",
				DisplayName:     "ComfyUI",
				SourceType:      core.SourceGitHub,
				URL:             "https://github.com/comfyanonymous/ComfyUI",
				InstallCommands: []string{"git clone https://github.com/comfyanonymous/ComfyUI", "pip install -r requirements.txt"},
				StartCommand:    "python main.py",
				WebInterface:    "http://localhost:8188",
			},
			{Name: "onetrainer", SourceType: core.SourceGitHub, URL: "https://github.com/Nerogar/OneTrainer"},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.json")
	want := testManifest()

	if err := Save(want, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Load(Save(m)) = %+v, want %+v", got, want)
	}
}

func TestLoadPreservesUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	raw := `{"metadata":{"version":"1"},"tools":[{"name":"a","vendor_notes":"keep me"}],"x_signature":"zz"}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	out := filepath.Join(t.TempDir(), "copy.json")
	if err := Save(m, out); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"vendor_notes"`, `"keep me"`, `"x_signature"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("saved manifest missing %s:\n%s", want, data)
		}
	}
}

func TestLoadMalformedJSONIsParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !core.IsCode(err, core.CodeParse) {
		t.Fatalf("Load() error = %v, want code %s", err, core.CodeParse)
	}
}

func TestLoadMissingNameIsSchemaError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"metadata":{},"tools":[{"url":"https://x"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !core.IsCode(err, core.CodeSchema) {
		t.Fatalf("Load() error = %v, want code %s", err, core.CodeSchema)
	}
}

func TestLoadDuplicateNameIsSchemaError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.json")
	raw := `{"metadata":{},"tools":[{"name":"a"},{"name":"a"}]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !core.IsCode(err, core.CodeSchema) {
		t.Fatalf("Load() error = %v, want code %s", err, core.CodeSchema)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Save(testManifest(), filepath.Join(dir, "m.json")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "m.json" {
		t.Fatalf("dir contents = %v, want only m.json", entries)
	}
}

func TestStoreListSummaries(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Save("beta", testManifest()); err != nil {
		t.Fatalf("Save(beta) error = %v", err)
	}
	if err := store.Save("alpha", &core.Manifest{Tools: []core.ToolDescriptor{{Name: "x"}}}); err != nil {
		t.Fatalf("Save(alpha) error = %v", err)
	}

	got, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(got))
	}
	if got[0].Name != "alpha" || got[1].Name != "beta" {
		t.Fatalf("List() order = %s, %s; want alpha, beta", got[0].Name, got[1].Name)
	}
	if got[1].ToolCount != 2 {
		t.Fatalf("beta ToolCount = %d, want 2", got[1].ToolCount)
	}
	if got[1].LastUpdated == "" {
		t.Fatal("beta LastUpdated is empty, want stamped")
	}
}

func TestStoreListMissingDirIsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent"))
	got, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len(List()) = %d, want 0", len(got))
	}
}
