package llmprovider

import (
	"context"
	"testing"

	"github.com/ollama/ollama/api"
)

type stubLister struct {
	resp *api.ListResponse
	err  error
}

func (s *stubLister) List(context.Context) (*api.ListResponse, error) {
	return s.resp, s.err
}

func gb(n float64) int64 {
	return int64(n * (1 << 30))
}

func TestCatalogList(t *testing.T) {
	cat := &Catalog{client: &stubLister{resp: &api.ListResponse{
		Models: []api.ListModelResponse{
			{Name: "qwen2.5-coder:7b", Size: gb(4.5), Details: api.ModelDetails{Family: "qwen2", ParameterSize: "7.6B"}},
			{Name: "llama3.1:latest", Size: gb(4.7), Details: api.ModelDetails{Family: "llama", ParameterSize: "8.0B"}},
		},
	}}}

	models, err := cat.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("models = %d, want 2", len(models))
	}
	if models[0].Name != "llama3.1:latest" {
		t.Fatalf("models not sorted by name: %+v", models)
	}
	if models[1].Family != "qwen2" || models[1].ParameterSize != "7.6B" {
		t.Fatalf("details not carried: %+v", models[1])
	}
	if models[0].SizeGB < 4.6 || models[0].SizeGB > 4.8 {
		t.Fatalf("size = %v GB, want about 4.7", models[0].SizeGB)
	}
}

func TestRecommendations(t *testing.T) {
	models := []ModelInfo{
		{Name: "qwen2.5-coder:7b", SizeGB: 4.5},
		{Name: "llama3.1:latest", SizeGB: 4.7},
		{Name: "mistral-large:123b", SizeGB: 68.0},
		{Name: "tinyllama:1.1b", SizeGB: 0.6},
	}

	rec := Recommendations(models)

	want := map[string][]string{
		UseCoding:        {"qwen2.5-coder:7b"},
		UseDocumentation: {"qwen2.5-coder:7b", "llama3.1:latest", "mistral-large:123b", "tinyllama:1.1b"},
		UseGeneral:       {"qwen2.5-coder:7b", "llama3.1:latest", "mistral-large:123b"},
		UseFast:          {"qwen2.5-coder:7b", "llama3.1:latest", "tinyllama:1.1b"},
	}
	for bucket, names := range want {
		got := rec[bucket]
		if len(got) != len(names) {
			t.Fatalf("%s = %v, want %v", bucket, got, names)
		}
		for i := range names {
			if got[i] != names[i] {
				t.Fatalf("%s = %v, want %v", bucket, got, names)
			}
		}
	}
}

func TestRecommendationsEmpty(t *testing.T) {
	if rec := Recommendations(nil); rec != nil {
		t.Fatalf("rec = %v, want nil", rec)
	}
}
