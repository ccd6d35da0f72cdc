// Package main provides the cortex CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cortexnotes/cortex/agent"
	"github.com/cortexnotes/cortex/cli"
	"github.com/cortexnotes/cortex/llm"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	vaultDir string
	backend  string
	logLevel string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "cortex",
		Short: "Agents, providers, and chat sessions for your notes vault",
		Long: `Cortex manages the agent layer of a notes vault.

Agents are stored as JSON files inside the vault and resolved into
runnable instances on demand. Providers supply the models agents run
on; every provider speaks the OpenAI chat-completions protocol
(OpenAI, OpenAI-compatible servers, or local Ollama).`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault", "", "Vault directory (default $CORTEX_VAULT_DIR or ~/.cortex)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Vault backend: dir or sqlite")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror logs to stderr")

	// Add commands
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(providerCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(chatCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		VaultDir: vaultDir,
		Backend:  backend,
		LogLevel: logLevel,
		Verbose:  verbose,
	}
}

// withApp builds the application (vault, providers, registries) before
// running a command and tears it down after.
func withApp(run func(ctx context.Context, app *cli.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := cli.NewApp(ctx, options())
		if err != nil {
			return err
		}
		defer app.Close()
		return run(ctx, app, args)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the vault directory layout",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.Init(ctx, app)
		}),
	}
}

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agent configurations",
	}

	cmd.AddCommand(agentCreateCmd())
	cmd.AddCommand(agentListCmd())
	cmd.AddCommand(agentShowCmd())
	cmd.AddCommand(agentDeleteCmd())
	cmd.AddCommand(agentCloneCmd())
	cmd.AddCommand(agentExportCmd())
	cmd.AddCommand(agentImportCmd())

	return cmd
}

func agentCreateCmd() *cobra.Command {
	var (
		name         string
		instructions string
		model        string
		providerID   string
		temperature  float64
		file         string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent",
		Long: `Create an agent from flags or from a JSON definition file.

With --file the definition is read as-is (use '-' for stdin) and the
other flags are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := cli.NewApp(ctx, options())
			if err != nil {
				return err
			}
			defer app.Close()

			if file != "" {
				return cli.AgentCreateFromFile(ctx, app, file)
			}

			input := agent.CreateInput{
				Name:         name,
				Instructions: instructions,
				Model: agent.ModelConfig{
					ProviderID: providerID,
					Model:      model,
				},
			}
			if cmd.Flags().Changed("temperature") {
				input.Model.Settings = &llm.Settings{Temperature: &temperature}
			}
			return cli.AgentCreate(ctx, app, input)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Agent display name")
	cmd.Flags().StringVar(&instructions, "instructions", "", "System prompt for the agent")
	cmd.Flags().StringVar(&model, "model", "", "Model name, e.g. gpt-4o")
	cmd.Flags().StringVar(&providerID, "provider", "", "Provider id the agent runs on")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature (0 to 2)")
	cmd.Flags().StringVar(&file, "file", "", "Read the agent definition from a JSON file ('-' for stdin)")

	return cmd
}

func agentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.AgentList(ctx, app)
		}),
	}
}

func agentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print an agent config as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.AgentShow(ctx, app, args[0])
		}),
	}
}

func agentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an agent and its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.AgentDelete(ctx, app, args[0])
		}),
	}
}

func agentCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone [id] [new-name]",
		Short: "Duplicate an agent under a new name",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.AgentClone(ctx, app, args[0], args[1])
		}),
	}
}

func agentExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export an agent as a portable JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.AgentExport(ctx, app, args[0], out)
		}),
	}

	cmd.Flags().StringVar(&out, "out", "", "Write to this file instead of stdout")

	return cmd
}

func agentImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import an exported agent document ('-' for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.AgentImport(ctx, app, args[0])
		}),
	}
}

func providerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage model providers",
	}

	cmd.AddCommand(providerAddCmd())
	cmd.AddCommand(providerListCmd())
	cmd.AddCommand(providerTestCmd())
	cmd.AddCommand(providerStatusCmd())
	cmd.AddCommand(providerRemoveCmd())

	return cmd
}

func providerAddCmd() *cobra.Command {
	var (
		providerType string
		id           string
		apiKey       string
		baseURL      string
		disabled     bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a provider and test the connection",
		Long: `Register a provider and store its config in the vault.

Supported types: openai, openai-compatible, ollama. API keys fall back
to the environment (OPENAI_API_KEY or OPENAI_COMPAT_API_KEY) when the
flag is omitted; Ollama needs none.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			cfg := llm.ProviderConfig{
				ID:      id,
				Kind:    llm.Kind(providerType),
				APIKey:  apiKey,
				BaseURL: baseURL,
				Enabled: !disabled,
			}
			return cli.ProviderAdd(ctx, app, cfg)
		}),
	}

	cmd.Flags().StringVar(&providerType, "type", "", "Provider type: openai, openai-compatible, or ollama")
	cmd.Flags().StringVar(&id, "id", "", "Registry id (defaults to the type)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (falls back to the environment)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for openai-compatible and ollama providers")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Store the config without connecting")

	return cmd
}

func providerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.ProviderList(ctx, app)
		}),
	}
}

func providerTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [id]",
		Short: "Probe a provider's connectivity",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.ProviderTest(ctx, app, args[0])
		}),
	}
}

func providerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [id]",
		Short: "Show a provider's connection state",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.ProviderStatus(ctx, app, args[0])
		}),
	}
}

func providerRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Disconnect and forget a provider",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.ProviderRemove(ctx, app, args[0])
		}),
	}
}

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage chat sessions",
	}

	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionShowCmd())
	cmd.AddCommand(sessionDeleteCmd())

	return cmd
}

func sessionListCmd() *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.SessionList(ctx, app, agentID)
		}),
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "Only sessions for this agent")

	return cmd
}

func sessionShowCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a session's recent history",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.SessionShow(ctx, app, args[0], limit)
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of recent items to show (default 50)")

	return cmd
}

func sessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.SessionDelete(ctx, app, args[0])
		}),
	}
}

func chatCmd() *cobra.Command {
	var (
		agentID   string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an agent interactively",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *cli.App, args []string) error {
			return cli.Chat(ctx, app, agentID, sessionID)
		}),
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "Agent id to chat with (required)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Resume an existing session")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}
