// Interactive chat over a session.
//
// Information Hiding:
// - Session resume/create policy
// - Prompt loop and rendering

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cortexnotes/cortex/session"
)

// Chat runs an interactive loop against one agent. A session id
// resumes an existing thread; otherwise a fresh session is created.
func Chat(ctx context.Context, app *App, agentID, sessionID string) error {
	cfg, ok := app.Agents.Get(agentID)
	if !ok {
		return fmt.Errorf("agent not found: %s", agentID)
	}

	var sess *session.Session
	if sessionID != "" {
		existing, ok := app.Sessions.Session(sessionID)
		if !ok {
			return fmt.Errorf("session not found: %s", sessionID)
		}
		if existing.AgentID != agentID {
			return fmt.Errorf("session %s belongs to agent %s, not %s", sessionID, existing.AgentID, agentID)
		}
		sess = existing
	} else {
		created, err := app.Sessions.Create(ctx, agentID, "Chat "+time.Now().Format("2006-01-02 15:04"))
		if err != nil {
			return err
		}
		sess = created
	}

	if len(sess.History) > 0 {
		fmt.Printf("Resuming session '%s' (%d messages)\n\n", sess.Name, sess.Context.TotalMessages)
		items, err := app.Sessions.RecentItems(sess.ID, 10)
		if err == nil {
			for _, item := range items {
				printItem(item)
			}
			fmt.Println()
		}
	}

	fmt.Printf("Chat with %s. Type 'exit' to quit.\n\n", cfg.Name)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		reply, err := app.Sessions.SendMessage(ctx, sess.ID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", reply.Text())
	}

	return scanner.Err()
}
