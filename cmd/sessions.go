package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loomchat/loom/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored conversations",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recent first",
	RunE: func(*cobra.Command, []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}

		conversations := a.sessions.List()
		if len(conversations) == 0 {
			fmt.Println("No stored conversations.")
			return nil
		}

		for _, c := range conversations {
			fmt.Printf("%s  %-36s  %d messages  updated %s\n", c.ID, c.Title, len(c.Messages), formatTime(c.UpdatedAt))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation id %q: %w", args[0], err)
		}

		conv, err := a.sessions.Get(id)
		if err != nil {
			return err
		}

		fmt.Printf("Title:    %s\n", conv.Title)
		fmt.Printf("Domain:   %s\n", conv.Domain)
		fmt.Printf("Created:  %s\n", formatTime(conv.CreatedAt))
		fmt.Printf("Messages: %d\n\n", len(conv.Messages))

		for _, msg := range conv.Messages {
			fmt.Printf("%s> %s\n\n", speakerLabel(msg), messageSummary(msg))
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := newStorageApp()
		if err != nil {
			return err
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation id %q: %w", args[0], err)
		}

		if err := a.sessions.Delete(id); err != nil {
			return err
		}
		fmt.Printf("Deleted conversation %s.\n", id)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func speakerLabel(msg session.Message) string {
	if msg.Role == session.RoleUser {
		return "You"
	}
	return "Loom"
}

// messageSummary renders a message for transcript output; media payloads
// show as labeled notes rather than raw bytes.
func messageSummary(msg session.Message) string {
	switch msg.Kind {
	case session.KindImage:
		return fmt.Sprintf("[image] %s", msg.Content)
	case session.KindVideo:
		return fmt.Sprintf("[video] %s", msg.Content)
	default:
		return msg.Content
	}
}
