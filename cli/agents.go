// Agent commands: create, inspect, clone, and move agent configs.
//
// Information Hiding:
// - Output formatting
// - File/stdin handling for import and export

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cortexnotes/cortex/agent"
)

// AgentCreate registers a new agent and prints its id, echoing any
// compatibility warnings without failing.
func AgentCreate(ctx context.Context, app *App, input agent.CreateInput) error {
	cfg, warnings, err := app.Agents.Create(ctx, input)
	if err != nil {
		return err
	}
	for _, warning := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}
	fmt.Printf("Created agent %s (%s)\n", cfg.Name, cfg.ID)
	return nil
}

// AgentCreateFromFile reads a full creation input from a JSON file,
// or stdin when the path is "-".
func AgentCreateFromFile(ctx context.Context, app *App, path string) error {
	data, err := readInput(path)
	if err != nil {
		return err
	}
	var input agent.CreateInput
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("malformed agent definition: %w", err)
	}
	return AgentCreate(ctx, app, input)
}

// AgentList prints every agent, sorted by name.
func AgentList(ctx context.Context, app *App) error {
	agents := app.Agents.List()
	if len(agents) == 0 {
		fmt.Println("No agents configured. Create one with 'cortex agent create'.")
		return nil
	}

	fmt.Printf("%-38s %-24s %-20s %s\n", "ID", "NAME", "MODEL", "UPDATED")
	for _, cfg := range agents {
		fmt.Printf("%-38s %-24s %-20s %s\n", cfg.ID, cfg.Name, cfg.Model.Model, formatTime(cfg.UpdatedAt))
	}
	return nil
}

// AgentShow prints the full config as indented JSON.
func AgentShow(ctx context.Context, app *App, id string) error {
	cfg, ok := app.Agents.Get(id)
	if !ok {
		return fmt.Errorf("agent not found: %s", id)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode agent %s: %w", id, err)
	}
	fmt.Println(string(data))
	return nil
}

// AgentDelete removes an agent; its sessions cascade away with it.
func AgentDelete(ctx context.Context, app *App, id string) error {
	if err := app.Agents.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted agent %s\n", id)
	return nil
}

// AgentClone copies an agent under a new name.
func AgentClone(ctx context.Context, app *App, id, newName string) error {
	copied, err := app.Agents.Clone(ctx, id, newName)
	if err != nil {
		return err
	}
	fmt.Printf("Cloned %s into %s (%s)\n", id, copied.Name, copied.ID)
	return nil
}

// AgentExport writes the portable envelope to a file, or stdout when
// the path is empty or "-".
func AgentExport(ctx context.Context, app *App, id, outPath string) error {
	exported, err := app.Agents.Export(id)
	if err != nil {
		return err
	}
	if outPath == "" || outPath == "-" {
		fmt.Println(exported)
		return nil
	}
	if err := os.WriteFile(outPath, []byte(exported+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Printf("Exported agent %s to %s\n", id, outPath)
	return nil
}

// AgentImport reads an exported envelope from a JSON file, or stdin
// when the path is "-".
func AgentImport(ctx context.Context, app *App, path string) error {
	data, err := readInput(path)
	if err != nil {
		return err
	}
	cfg, err := app.Agents.Import(ctx, strings.TrimSpace(string(data)))
	if err != nil {
		return err
	}
	fmt.Printf("Imported agent %s (%s)\n", cfg.Name, cfg.ID)
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
