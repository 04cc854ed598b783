package resolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxReadmeBytes = 1 << 20 // READMEs past 1 MiB are cut, not rejected

// Fetcher retrieves README text for a repository URL.
type Fetcher struct {
	// Client defaults to a client with a short timeout.
	Client *http.Client
	// BaseOverride, when set, replaces the raw-content host. Used in tests.
	BaseOverride string
}

// Fetch downloads the README for a GitHub or Hugging Face repository URL.
// It tries each candidate raw URL in order and returns the first hit.
func (f *Fetcher) Fetch(ctx context.Context, repoURL string) (string, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	candidates, err := f.candidates(repoURL)
	if err != nil {
		return "", err
	}

	var lastErr error
	for _, candidate := range candidates {
		text, err := fetchOne(ctx, client, candidate)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("fetch README for %s: %w", repoURL, lastErr)
}

func (f *Fetcher) candidates(repoURL string) ([]string, error) {
	u, err := url.Parse(strings.TrimSuffix(strings.TrimSpace(repoURL), ".git"))
	if err != nil {
		return nil, fmt.Errorf("parse repository URL: %w", err)
	}
	path := strings.Trim(u.Path, "/")

	if f.BaseOverride != "" {
		return []string{f.BaseOverride + "/" + path + "/README.md"}, nil
	}

	switch {
	case strings.Contains(u.Host, "github.com"):
		base := "https://raw.githubusercontent.com/" + path
		return []string{
			base + "/HEAD/README.md",
			base + "/main/README.md",
			base + "/master/README.md",
		}, nil
	case strings.Contains(u.Host, "huggingface.co"):
		return []string{"https://huggingface.co/" + path + "/raw/main/README.md"}, nil
	default:
		return []string{repoURL}, nil
	}
}

func fetchOne(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadmeBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var fencedLanguages = map[string]struct{}{
	"":           {},
	"bash":       {},
	"sh":         {},
	"shell":      {},
	"console":    {},
	"cmd":        {},
	"powershell": {},
	"zsh":        {},
}

// ExtractCommands pulls candidate shell commands from fenced code blocks in
// markdown, in document order. Prompt prefixes ($, >) are stripped; comment
// and output lines are skipped. Non-shell fences (json, python, yaml) are
// ignored.
func ExtractCommands(markdown string) []string {
	var (
		out     []string
		inFence bool
		shell   bool
	)
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				inFence = false
				continue
			}
			inFence = true
			lang := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "```")))
			_, shell = fencedLanguages[lang]
			continue
		}
		if !inFence || !shell || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		trimmed = strings.TrimPrefix(trimmed, "$ ")
		trimmed = strings.TrimPrefix(trimmed, "> ")
		out = append(out, trimmed)
	}
	return out
}
