package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/merlin-labs/merlin/bridge"
	"github.com/merlin-labs/merlin/llmprovider"
)

// NewChatCmd creates the "chat" subcommand.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Drive Merlin through a local model in natural language",
		Long: "chat starts an interactive loop. Each prompt is sent to the local model\n" +
			"together with a catalog of Merlin's functions; when the model answers with\n" +
			"a function call it is executed through the agent bridge and the result is\n" +
			"fed back into the conversation.",
		RunE: runChat,
	}
	cmd.Flags().String("model", "", "Model to chat with (default: configured model)")
	return cmd
}

const chatSystemPrompt = `You are Merlin, an assistant that manages AI/ML developer tools.
You can call the functions listed below. To call one, answer with ONLY a JSON
object of the form {"function": "<name>", "args": {...}} and nothing else.
Otherwise answer the user in plain text.

Functions:
%s`

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = a.cfg.Model
	}
	client, err := llmprovider.New(llmprovider.DefaultProvider, "", model)
	if err != nil {
		return exitError(exitRuntime, "creating model client: %v", err)
	}

	deps := bridge.Deps{
		Config:    a.cfg,
		Manifests: a.store,
		Resolver:  a.resolver,
		Executor:  a.executor,
		Detector:  a.detector,
		Records:   a.records,
	}
	if catalog, err := llmprovider.NewCatalog(a.cfg.OllamaHost); err == nil {
		deps.Catalog = catalog
	}
	registry := bridge.New(deps)

	system := fmt.Sprintf(chatSystemPrompt, functionCatalog(registry))
	history := make([]llmprovider.Message, 0, 16)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chatting with %s. Type 'exit' to quit.\n", client.Model())

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		history = append(history, llmprovider.Message{Role: "user", Content: line})
		reply, err := client.Chat(cmd.Context(), system, history)
		if err != nil {
			fmt.Fprintf(out, "model error: %v\n", err)
			continue
		}
		history = append(history, llmprovider.Message{Role: "assistant", Content: reply})

		name, args, ok := parseFunctionCall(reply)
		if !ok {
			fmt.Fprintln(out, reply)
			continue
		}

		result, err := registry.Call(cmd.Context(), name, args)
		feedback := ""
		if err != nil {
			feedback = fmt.Sprintf("function %s failed: %v", name, err)
		} else {
			encoded, _ := json.MarshalIndent(result, "", "  ")
			feedback = fmt.Sprintf("function %s returned:\n%s", name, encoded)
		}
		fmt.Fprintln(out, feedback)
		history = append(history, llmprovider.Message{Role: "user", Content: feedback})
	}
}

// functionCatalog renders the registry as a prompt fragment.
func functionCatalog(registry *bridge.Registry) string {
	var sb strings.Builder
	for _, fn := range registry.List() {
		fmt.Fprintf(&sb, "- %s: %s\n", fn.Name, fn.Description)
		for param, desc := range fn.Parameters {
			fmt.Fprintf(&sb, "    %s: %s\n", param, desc)
		}
	}
	return sb.String()
}

// parseFunctionCall extracts a {"function": ..., "args": {...}} object from
// the model's reply, tolerating surrounding prose or code fences. Decoding
// stops at the end of the first complete object, so trailing text never
// bleeds into the call.
func parseFunctionCall(reply string) (string, json.RawMessage, bool) {
	for i := 0; i < len(reply); i++ {
		if reply[i] != '{' {
			continue
		}
		var call struct {
			Function string          `json:"function"`
			Args     json.RawMessage `json:"args"`
		}
		dec := json.NewDecoder(strings.NewReader(reply[i:]))
		if err := dec.Decode(&call); err != nil || call.Function == "" {
			continue
		}
		return call.Function, call.Args, true
	}
	return "", nil, false
}
