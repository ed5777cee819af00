// Package session provides conversation types and their durable store.
//
// A Conversation is an ordered, append-only message log; the single
// exception is the in-place replacement of a transient tool-echo message
// with its final result during tool resolution. Message order is the sole
// source of truth for what the model saw: messages are never reordered.
//
// The [Store] owns all Conversation instances, keyed by id. Callers work
// on clones and write back through [Store.Put]; the store never hands out
// aliases to its internal state.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Kind identifies the payload type of a message.
type Kind string

// Message kinds.
const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Domain fixes a conversation's default model and system-instruction behavior.
type Domain string

// Conversation domains.
const (
	DomainGeneral Domain = "general"
	DomainCode    Domain = "code"
)

// DefaultTitle is the placeholder title of a conversation with no messages.
const DefaultTitle = "New Chat"

// titlePrefixRunes is how many leading runes of the first user message
// become the conversation title before the ellipsis is appended.
const titlePrefixRunes = 32

// Message is one turn-unit of a conversation.
type Message struct {
	ID      uuid.UUID `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Kind    Kind      `json:"kind"`

	// Media carries the inline payload for non-text kinds.
	Media *genai.Blob `json:"media,omitempty"`

	// Grounding carries citation sources attached to model text messages
	// produced with retrieval tools. Stored opaquely.
	Grounding *genai.GroundingMetadata `json:"grounding,omitempty"`

	// ToolEcho marks a transient "tool is running" placeholder. An echo is
	// always eventually replaced in place or left as a terminal error text.
	ToolEcho bool `json:"tool_echo,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a text-kind message with a fresh id and timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Kind:      KindText,
		CreatedAt: time.Now(),
	}
}

// NewMediaMessage creates a model message of the given media kind carrying
// payload and the originating prompt as content.
func NewMediaMessage(kind Kind, prompt string, payload *genai.Blob) Message {
	return Message{
		ID:        uuid.New(),
		Role:      RoleModel,
		Content:   prompt,
		Kind:      kind,
		Media:     payload,
		CreatedAt: time.Now(),
	}
}

// Conversation is an ordered message log with identity and metadata.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Domain    Domain    `json:"domain"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation for the given domain.
func NewConversation(domain Domain) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.New(),
		Title:     DefaultTitle,
		Domain:    domain,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message at the end of the log. The title derives from the
// first user message exactly once, when the conversation transitions from
// empty to non-empty; later turns never rewrite it.
func (c *Conversation) Append(msg Message) {
	if len(c.Messages) == 0 && msg.Role == RoleUser {
		c.Title = deriveTitle(msg.Content)
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// Replace swaps the message with the given id for msg at its existing index,
// preserving the position of every other message. Returns false if no
// message with that id exists; callers must then append instead so the
// replacement is never silently dropped.
func (c *Conversation) Replace(id uuid.UUID, msg Message) bool {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages[i] = msg
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the conversation. Message structs are copied;
// media byte payloads are shared because they are never mutated after
// creation.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}

// deriveTitle truncates the first user message to a fixed rune prefix.
func deriveTitle(text string) string {
	if text == "" {
		return DefaultTitle
	}
	runes := []rune(text)
	if len(runes) <= titlePrefixRunes {
		return text
	}
	return string(runes[:titlePrefixRunes]) + "..."
}
