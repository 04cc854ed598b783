package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/merlin-labs/merlin/core"
)

// Inferrer is the swappable strategy for extracting install commands from
// free text. The LLM-backed implementation is best-effort and optional; tests
// swap in a deterministic rule-based one without touching the network.
type Inferrer interface {
	Infer(ctx context.Context, readme string) ([]string, error)
}

const inferPromptHeader = `Extract the installation commands from the following README.
Return ONLY a JSON array of shell command strings, in the order they should run.
Prefer uv over pip when the README mentions both. Do not invent commands that
are not supported by the README text.

README:
`

// LLMInferrer asks a local model for an ordered command list.
type LLMInferrer struct {
	Client core.LLMClient
}

// Infer sends the README to the model and decodes the returned command list.
func (i *LLMInferrer) Infer(ctx context.Context, readme string) ([]string, error) {
	if i == nil || i.Client == nil {
		return nil, nil
	}
	text, err := i.Client.Complete(ctx, inferPromptHeader+readme)
	if err != nil {
		return nil, fmt.Errorf("infer: completion: %w", err)
	}
	commands, err := decodeCommandList(text)
	if err != nil {
		return nil, fmt.Errorf("infer: %w", err)
	}
	return commands, nil
}

var (
	jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")
	jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)
)

// decodeCommandList extracts a JSON string array from model output. Models
// wrap answers in fences or prose more often than not, so try the fenced
// form first and fall back to the first bare array.
func decodeCommandList(text string) ([]string, error) {
	var payload string
	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		payload = m[1]
	} else if m := jsonArrayRe.FindString(text); m != "" {
		payload = m
	} else {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var commands []string
	if err := json.Unmarshal([]byte(payload), &commands); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	out := commands[:0]
	for _, c := range commands {
		if clean := strings.TrimSpace(c); clean != "" {
			out = append(out, clean)
		}
	}
	return out, nil
}

// RuleInferrer is the deterministic fallback strategy: it scans prose (text
// outside code fences) for lines that look like install commands.
type RuleInferrer struct{}

var proseCommandRe = regexp.MustCompile(`^(?:\$ )?((?:git|pip3?|uv|python3?) .+)$`)

// Infer extracts command-shaped prose lines in document order.
func (RuleInferrer) Infer(_ context.Context, readme string) ([]string, error) {
	var (
		out     []string
		inFence bool
	)
	for _, line := range strings.Split(readme, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := proseCommandRe.FindStringSubmatch(trimmed); m != nil {
			out = append(out, m[1])
		}
	}
	return out, nil
}
