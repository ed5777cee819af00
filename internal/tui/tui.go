// Package tui provides the Bubble Tea terminal interface for Loom.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/loomchat/loom/internal/chat"
	"github.com/loomchat/loom/internal/planner"
	"github.com/loomchat/loom/internal/session"
)

// State represents the TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput State = iota // awaiting user input
	StateBusy               // a turn is in flight; input is queued, not submitted
)

// maxHistory caps command history entries.
const maxHistory = 100

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // separator above and below input
	helpLines      = 1 // help bar height
	promptLines    = 1 // prompt prefix line
	minViewport    = 3 // minimum viewport height
)

// TUI is the Bubble Tea model for the Loom conversation surface.
type TUI struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	lastCtrlC time.Time

	// conversation is the working copy a turn mutates; display is the
	// latest snapshot clone and the only thing the view reads while a
	// turn is in flight.
	conversation *session.Conversation
	display      *session.Conversation

	// Per-turn controls.
	mode    planner.Mode
	toggles planner.Toggles
	pending []chat.Attachment // attachments for the next submission

	// notice is a transient system line shown under the messages.
	notice string

	spinner  spinner.Model
	viewBuf  strings.Builder
	viewport viewport.Model
	help     help.Model
	keys     keyMap

	// Turn management. A single union channel with discriminated events;
	// Bubble Tea's event loop provides the synchronization.
	turnCancel  context.CancelFunc
	turnEventCh <-chan turnEvent

	// Dependencies
	flow      *chat.Orchestrator
	ctx       context.Context
	ctxCancel context.CancelFunc

	width  int
	height int

	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// New creates a TUI over an existing conversation.
//
// ctx must be the same context passed to tea.WithContext so cancellation
// behaves consistently.
func New(ctx context.Context, flow *chat.Orchestrator, conv *session.Conversation) (*TUI, error) {
	if flow == nil {
		return nil, errors.New("tui.New: orchestrator is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}
	if conv == nil {
		return nil, errors.New("tui.New: conversation is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	// Enter submits, Shift+Enter adds a newline.
	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.SetHeight(1)
	ta.SetWidth(120)
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{Focused: cleanStyle, Blurred: cleanStyle})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Keys are routed explicitly in handleKey to avoid conflicts with the
	// textarea and history navigation.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	return &TUI{
		flow:         flow,
		conversation: conv,
		display:      conv.Clone(),
		mode:         planner.ModeDefault,
		ctx:          ctx,
		ctxCancel:    cancel,
		input:        ta,
		spinner:      sp,
		viewport:     vp,
		help:         help.New(),
		keys:         newKeyMap(),
		styles:       DefaultStyles(),
		history:      make([]string, 0, maxHistory),
		markdown:     newMarkdownRenderer(80),
		width:        80,
	}, nil
}

// Init implements tea.Model.
func (t *TUI) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		t.spinner.Tick,
		t.input.Focus(),
	)
}

// Update implements tea.Model.
func (t *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return t.handleKey(msg)

	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height

		inputHeight := t.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		t.viewport.SetWidth(msg.Width)
		t.viewport.SetHeight(vpHeight)
		t.input.SetWidth(msg.Width - 4)
		t.help.SetWidth(msg.Width)
		t.markdown.UpdateWidth(msg.Width)

		t.rebuildViewportContent()
		return t, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		if t.state == StateBusy {
			t.rebuildViewportContent()
		}
		return t, cmd

	case turnStartedMsg:
		t.turnCancel = msg.cancel
		t.turnEventCh = msg.eventCh
		return t, listenForTurn(msg.eventCh)

	case turnSnapshotMsg:
		t.display = msg.conversation
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, listenForTurn(t.turnEventCh)

	case turnDoneMsg:
		t.finishTurn()
		t.mode = msg.mode
		t.pending = nil
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, t.input.Focus()

	case turnErrorMsg:
		t.finishTurn()
		switch {
		case errors.Is(msg.err, context.Canceled):
			t.notice = "(Canceled)"
		case errors.Is(msg.err, context.DeadlineExceeded):
			t.notice = "Turn timed out. The conversation state up to the failure was kept."
		default:
			t.notice = "Error: " + msg.err.Error()
		}
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, t.input.Focus()
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

// finishTurn releases turn resources and returns control to the input state.
func (t *TUI) finishTurn() {
	t.state = StateInput
	if t.turnCancel != nil {
		t.turnCancel()
		t.turnCancel = nil
	}
	t.turnEventCh = nil
}

// View implements tea.Model.
func (t *TUI) View() tea.View {
	t.viewBuf.Reset()

	_, _ = t.viewBuf.WriteString(t.viewport.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	// The prompt always renders; submission is gated on state instead so
	// users can compose the next message while a turn runs.
	_, _ = t.viewBuf.WriteString(t.styles.Prompt.Render("> "))
	_, _ = t.viewBuf.WriteString(t.input.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderStatusBar())

	v := tea.NewView(t.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the viewport from the display
// snapshot and transient state.
func (t *TUI) rebuildViewportContent() {
	var b strings.Builder

	_, _ = b.WriteString(t.styles.RenderBanner())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(t.styles.RenderWelcomeTips())
	_, _ = b.WriteString("\n")

	for _, msg := range t.display.Messages {
		t.renderMessage(&b, msg)
		_, _ = b.WriteString("\n\n")
	}

	if t.notice != "" {
		_, _ = b.WriteString(t.styles.System.Render(t.notice))
		_, _ = b.WriteString("\n\n")
	}

	if t.state == StateBusy {
		_, _ = b.WriteString(t.spinner.View())
		_, _ = b.WriteString(" Working...\n\n")
	}

	t.viewport.SetContent(b.String())
}

// renderMessage writes one conversation message in display form. Media
// payloads render as a labeled note; the bytes live in the media library.
func (t *TUI) renderMessage(b *strings.Builder, msg session.Message) {
	if msg.Role == session.RoleUser {
		_, _ = b.WriteString(t.styles.User.Render("You> "))
		_, _ = b.WriteString(msg.Content)
		return
	}

	_, _ = b.WriteString(t.styles.Assistant.Render("Loom> "))
	switch {
	case msg.ToolEcho:
		_, _ = b.WriteString(t.styles.System.Render(msg.Content))
	case msg.Kind == session.KindImage:
		_, _ = b.WriteString(t.styles.Media.Render(fmt.Sprintf("[image saved to library] %s", msg.Content)))
	case msg.Kind == session.KindVideo:
		_, _ = b.WriteString(t.styles.Media.Render(fmt.Sprintf("[video saved to library] %s", msg.Content)))
	default:
		_, _ = b.WriteString(t.markdown.Render(msg.Content))
		if n := groundingSourceCount(msg); n > 0 {
			_, _ = b.WriteString("\n")
			_, _ = b.WriteString(t.styles.System.Render(fmt.Sprintf("(%d sources)", n)))
		}
	}
}

func groundingSourceCount(msg session.Message) int {
	if msg.Grounding == nil {
		return 0
	}
	return len(msg.Grounding.GroundingChunks)
}

// renderSeparator returns a horizontal line separator.
func (t *TUI) renderSeparator() string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	return t.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar shows the active mode/toggles plus keyboard shortcuts.
func (t *TUI) renderStatusBar() string {
	status := fmt.Sprintf("mode:%s", t.mode)
	if t.toggles.Search {
		status += "  search:on"
	}
	if t.toggles.Maps {
		status += "  maps:on"
	}
	if t.toggles.Thinking {
		status += "  think:on"
	}
	if n := len(t.pending); n > 0 {
		status += fmt.Sprintf("  files:%d", n)
	}

	var bindings []key.Binding
	switch t.state {
	case StateInput:
		bindings = []key.Binding{
			t.keys.Submit, t.keys.NewLine, t.keys.History,
			t.keys.Cancel, t.keys.Quit, t.keys.ScrollUp,
		}
	case StateBusy:
		bindings = []key.Binding{
			t.keys.Cancel, t.keys.ScrollUp, t.keys.ScrollDown,
		}
	}

	return t.styles.StatusBar.Render(status) + "  " + t.help.ShortHelpView(bindings)
}
