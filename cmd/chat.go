package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loomchat/loom/internal/session"
	"github.com/loomchat/loom/internal/tui"
)

var (
	chatResumeID   string
	chatCodeDomain bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatResumeID, "resume", "", "conversation id to resume")
	chatCmd.Flags().BoolVar(&chatCodeDomain, "code", false, "start the conversation in the code domain")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	conv, err := selectConversation(a)
	if err != nil {
		return err
	}

	ui, err := tui.New(ctx, a.flow, conv)
	if err != nil {
		return fmt.Errorf("creating terminal interface: %w", err)
	}

	program := tea.NewProgram(ui, tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running terminal interface: %w", err)
	}
	return nil
}

// selectConversation resumes the requested conversation or starts a new one.
func selectConversation(a *app) (*session.Conversation, error) {
	if chatResumeID == "" {
		domain := session.DomainGeneral
		if chatCodeDomain {
			domain = session.DomainCode
		}
		return session.NewConversation(domain), nil
	}

	id, err := uuid.Parse(chatResumeID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id %q: %w", chatResumeID, err)
	}

	conv, err := a.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("resuming conversation: %w", err)
	}

	a.logger.Info("resuming conversation", "id", conv.ID, "title", conv.Title, "messages", len(conv.Messages))
	return conv, nil
}
