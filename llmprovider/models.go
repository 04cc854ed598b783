package llmprovider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ollama/ollama/api"
)

// ModelInfo describes one model available on the local Ollama daemon.
type ModelInfo struct {
	Name          string  `json:"name"`
	Family        string  `json:"family,omitempty"`
	ParameterSize string  `json:"parameter_size,omitempty"`
	SizeGB        float64 `json:"size_gb"`
}

type modelLister interface {
	List(ctx context.Context) (*api.ListResponse, error)
}

// Catalog lists installed models from an Ollama daemon.
type Catalog struct {
	client modelLister
}

// NewCatalog connects to the Ollama daemon at host, or to the environment
// default (OLLAMA_HOST) when host is empty.
func NewCatalog(host string) (*Catalog, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		return &Catalog{client: client}, nil
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama host %q: %w", host, err)
	}
	return &Catalog{client: api.NewClient(base, http.DefaultClient)}, nil
}

// List returns the daemon's installed models sorted by name.
func (c *Catalog) List(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing ollama models: %w", err)
	}
	models := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, ModelInfo{
			Name:          m.Name,
			Family:        m.Details.Family,
			ParameterSize: m.Details.ParameterSize,
			SizeGB:        float64(m.Size) / (1 << 30),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// Use-case buckets for Recommendations.
const (
	UseCoding        = "coding"
	UseDocumentation = "documentation"
	UseGeneral       = "general"
	UseFast          = "fast"
)

// Recommendations groups models into use-case buckets. A model may land in
// several buckets; an empty input yields nil.
func Recommendations(models []ModelInfo) map[string][]string {
	if len(models) == 0 {
		return nil
	}
	rec := map[string][]string{
		UseCoding:        {},
		UseDocumentation: {},
		UseGeneral:       {},
		UseFast:          {},
	}
	for _, m := range models {
		name := strings.ToLower(m.Name)
		if containsAny(name, "code", "coder", "codellama") {
			rec[UseCoding] = append(rec[UseCoding], m.Name)
		}
		if containsAny(name, "llama", "qwen", "mistral") {
			rec[UseDocumentation] = append(rec[UseDocumentation], m.Name)
		}
		if m.SizeGB > 3 {
			rec[UseGeneral] = append(rec[UseGeneral], m.Name)
		}
		if m.SizeGB < 5 {
			rec[UseFast] = append(rec[UseFast], m.Name)
		}
	}
	return rec
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
