package chat

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/loomchat/loom/internal/session"
)

// buildContents maps the trailing window of conv's messages to model
// contents. Historical non-text messages and tool echoes become bracketed
// textual placeholders so raw media bytes never re-enter history; only the
// final message — the current user turn — carries its literal text plus any
// freshly attached files as inline parts.
func buildContents(conv *session.Conversation, files []Attachment, window int) []*genai.Content {
	msgs := conv.Messages
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}

	contents := make([]*genai.Content, 0, len(msgs))
	for i, msg := range msgs {
		if i == len(msgs)-1 {
			contents = append(contents, currentTurnContent(msg, files))
			continue
		}
		contents = append(contents, genai.NewContentFromText(historyText(msg), historyRole(msg.Role)))
	}
	return contents
}

// currentTurnContent builds the in-flight user turn: literal text plus
// attachment bytes.
func currentTurnContent(msg session.Message, files []Attachment) *genai.Content {
	parts := make([]*genai.Part, 0, len(files)+1)
	parts = append(parts, genai.NewPartFromText(msg.Content))
	for _, f := range files {
		parts = append(parts, genai.NewPartFromBytes(f.Data, f.MIMEType))
	}
	return &genai.Content{Role: string(genai.RoleUser), Parts: parts}
}

// historyText renders one past message as model-visible text.
func historyText(msg session.Message) string {
	if msg.ToolEcho {
		return fmt.Sprintf("[Tool use: %s]", msg.Content)
	}
	switch msg.Kind {
	case session.KindImage:
		return fmt.Sprintf("[Image generated: %s]", msg.Content)
	case session.KindVideo:
		return fmt.Sprintf("[Video generated: %s]", msg.Content)
	case session.KindAudio:
		return fmt.Sprintf("[Audio generated: %s]", msg.Content)
	default:
		return msg.Content
	}
}

func historyRole(role session.Role) genai.Role {
	if role == session.RoleUser {
		return genai.RoleUser
	}
	return genai.RoleModel
}
