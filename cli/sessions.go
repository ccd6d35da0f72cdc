// Session commands: list, inspect, and delete conversation threads.
package cli

import (
	"context"
	"fmt"

	"github.com/cortexnotes/cortex/session"
)

// SessionList prints sessions, most recent activity first, optionally
// filtered to one agent.
func SessionList(ctx context.Context, app *App, agentID string) error {
	var sessions []*session.Session
	if agentID != "" {
		sessions = app.Sessions.SessionsByAgent(agentID)
	} else {
		sessions = app.Sessions.AllSessions()
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	fmt.Printf("%-38s %-20s %-38s %8s %8s  %s\n", "ID", "NAME", "AGENT", "MSGS", "TOKENS", "LAST ACTIVITY")
	for _, sess := range sessions {
		fmt.Printf("%-38s %-20s %-38s %8d %8d  %s\n",
			sess.ID, sess.Name, sess.AgentID,
			sess.Context.TotalMessages, sess.Context.TotalTokens,
			formatTime(sess.Context.LastActivity))
	}
	return nil
}

// SessionShow prints a session's recent history.
func SessionShow(ctx context.Context, app *App, id string, limit int) error {
	sess, ok := app.Sessions.Session(id)
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	items, err := app.Sessions.RecentItems(id, limit)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s): %d messages, %d tokens\n\n", sess.Name, sess.ID, sess.Context.TotalMessages, sess.Context.TotalTokens)
	for _, item := range items {
		printItem(item)
	}
	return nil
}

// SessionDelete removes one session.
func SessionDelete(ctx context.Context, app *App, id string) error {
	if err := app.Sessions.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", id)
	return nil
}

func printItem(item session.Item) {
	switch item.Kind {
	case session.KindMessage:
		fmt.Printf("[%s] %s\n", item.Role, item.Text())
	case session.KindFunctionCall:
		fmt.Printf("[tool] %s(%s)\n", item.Name, item.Arguments)
	case session.KindFunctionCallResult:
		fmt.Printf("[tool] %s -> %s\n", item.Name, item.Output)
	case session.KindHandoff:
		fmt.Printf("[handoff] %s -> %s\n", item.FromAgent, item.ToAgent)
	}
}
