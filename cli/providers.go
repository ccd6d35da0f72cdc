// Provider commands: connect, inspect, and remove model providers.
//
// Information Hiding:
// - Persisted provider list format
// - API key fallback order (flag, then environment)

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cortexnotes/cortex/config"
	"github.com/cortexnotes/cortex/llm"
	"github.com/cortexnotes/cortex/vault"
)

func (a *App) loadProviderConfigs(ctx context.Context) ([]llm.ProviderConfig, error) {
	data, err := a.Store.Read(ctx, vault.ProvidersPath())
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read provider configs: %w", err)
	}
	var configs []llm.ProviderConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("corrupt provider config file: %w", err)
	}
	return configs, nil
}

func (a *App) saveProviderConfigs(ctx context.Context, configs []llm.ProviderConfig) error {
	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode provider configs: %w", err)
	}
	if err := a.Store.Write(ctx, vault.ProvidersPath(), data); err != nil {
		return fmt.Errorf("failed to persist provider configs: %w", err)
	}
	return nil
}

// ProviderAdd validates and connects a provider, then persists its
// config so later commands reconnect automatically. An empty API key
// falls back to the kind's environment variable.
func ProviderAdd(ctx context.Context, app *App, cfg llm.ProviderConfig) error {
	kind, err := llm.ParseKind(string(cfg.Kind))
	if err != nil {
		return err
	}
	cfg.Kind = kind

	if cfg.APIKey == "" {
		// Best effort: validation reports the missing key if the
		// environment has nothing either.
		if key, err := config.APIKeyFor(kind); err == nil {
			cfg.APIKey = key
		}
	}

	if err := app.Providers.Add(ctx, cfg); err != nil {
		return err
	}

	configs, err := app.loadProviderConfigs(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range configs {
		if existing.Key() == cfg.Key() {
			configs[i] = cfg
			replaced = true
			break
		}
	}
	if !replaced {
		configs = append(configs, cfg)
	}
	if err := app.saveProviderConfigs(ctx, configs); err != nil {
		return err
	}

	if !cfg.Enabled {
		fmt.Printf("Provider %s saved (disabled)\n", cfg.Key())
		return nil
	}
	fmt.Printf("Provider %s connected (%s)\n", cfg.Key(), cfg.Kind)
	return nil
}

// ProviderList prints every persisted provider with its live state.
func ProviderList(ctx context.Context, app *App) error {
	configs, err := app.loadProviderConfigs(ctx)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		fmt.Println("No providers configured. Add one with 'cortex provider add'.")
		return nil
	}

	fmt.Printf("%-24s %-20s %-32s %s\n", "ID", "TYPE", "BASE URL", "STATUS")
	for _, cfg := range configs {
		state := "disabled"
		if cfg.Enabled {
			state = string(app.Providers.Status(ctx, cfg.Key()).State)
		}
		base := cfg.BaseURL
		if base == "" {
			base = "-"
		}
		fmt.Printf("%-24s %-20s %-32s %s\n", cfg.Key(), cfg.Kind, base, state)
	}
	return nil
}

// ProviderTest probes one provider's connectivity.
func ProviderTest(ctx context.Context, app *App, id string) error {
	if app.Providers.Test(ctx, id) {
		fmt.Printf("Provider %s is reachable\n", id)
		return nil
	}
	status := app.Providers.Status(ctx, id)
	return fmt.Errorf("provider %s is not reachable: %s", id, status.Error)
}

// ProviderStatus prints one provider's probe result.
func ProviderStatus(ctx context.Context, app *App, id string) error {
	status := app.Providers.Status(ctx, id)
	fmt.Printf("%s: %s\n", id, status.State)
	if status.Error != "" {
		fmt.Printf("  %s\n", status.Error)
	}
	return nil
}

// ProviderRemove disconnects a provider and drops it from the
// persisted list.
func ProviderRemove(ctx context.Context, app *App, id string) error {
	app.Providers.Remove(id)

	configs, err := app.loadProviderConfigs(ctx)
	if err != nil {
		return err
	}
	kept := configs[:0]
	found := false
	for _, cfg := range configs {
		if cfg.Key() == id {
			found = true
			continue
		}
		kept = append(kept, cfg)
	}
	if !found {
		return fmt.Errorf("provider %q is not configured", id)
	}
	if err := app.saveProviderConfigs(ctx, kept); err != nil {
		return err
	}
	fmt.Printf("Provider %s removed\n", id)
	return nil
}
