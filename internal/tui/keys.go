package tui

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/loomchat/loom/internal/chat"
	"github.com/loomchat/loom/internal/planner"
	"github.com/loomchat/loom/internal/session"
)

// Slash command constants.
const (
	cmdHelp   = "/help"
	cmdNew    = "/new"
	cmdMode   = "/mode"
	cmdSearch = "/search"
	cmdMaps   = "/maps"
	cmdThink  = "/think"
	cmdCode   = "/code"
	cmdAttach = "/attach"
	cmdExit   = "/exit"
	cmdQuit   = "/quit"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	History    key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:    key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("s+enter", "newline")),
		History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "clear")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	}
}

func (t *TUI) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return t.handleCtrlC()
		case 'd':
			return t, t.cleanup()
		}
	}

	switch k.Code {
	case tea.KeyEnter:
		// Enter submits only while idle; a running turn must reach its
		// terminal snapshot before the next submission is accepted.
		if t.state == StateInput && k.Mod&tea.ModShift == 0 {
			return t.handleSubmit()
		}

	case tea.KeyUp:
		if t.state == StateInput && t.input.Line() == 0 {
			return t.navigateHistory(-1)
		}

	case tea.KeyDown:
		if t.state == StateInput && t.input.Line() == t.input.LineCount()-1 {
			return t.navigateHistory(1)
		}

	case tea.KeyPgUp:
		t.viewport.PageUp()
		return t, nil

	case tea.KeyPgDown:
		t.viewport.PageDown()
		return t, nil
	}

	// Typing is always allowed, even while a turn runs.
	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

func (t *TUI) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit.
	if now.Sub(t.lastCtrlC) < time.Second {
		return t, t.cleanup()
	}
	t.lastCtrlC = now

	t.input.Reset()
	return t, nil
}

func (t *TUI) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(t.input.Value())
	if text == "" {
		return t, nil
	}

	if strings.HasPrefix(text, "/") {
		return t.handleSlashCommand(text)
	}

	t.history = append(t.history, text)
	if len(t.history) > maxHistory {
		t.history = t.history[len(t.history)-maxHistory:]
	}
	t.historyIdx = len(t.history)

	t.input.Reset()
	t.notice = ""
	t.state = StateBusy

	files := t.pending
	return t, tea.Batch(
		t.spinner.Tick,
		t.startTurn(text, files),
	)
}

func (t *TUI) handleSlashCommand(input string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case cmdHelp:
		t.notice = helpText()

	case cmdNew:
		domain := session.DomainGeneral
		if arg == "code" {
			domain = session.DomainCode
		}
		t.startConversation(domain)

	case cmdCode:
		t.startConversation(session.DomainCode)

	case cmdMode:
		mode, err := planner.ParseMode(arg)
		if err != nil {
			t.notice = err.Error() + " (default, research, shopping, study, image)"
			break
		}
		t.mode = mode
		t.notice = fmt.Sprintf("Mode set to %s.", mode)

	case cmdSearch:
		t.toggles.Search = !t.toggles.Search
		t.notice = toggleNotice("Web search", t.toggles.Search)

	case cmdMaps:
		t.toggles.Maps = !t.toggles.Maps
		t.notice = toggleNotice("Maps", t.toggles.Maps)

	case cmdThink:
		t.toggles.Thinking = !t.toggles.Thinking
		t.notice = toggleNotice("Extended thinking", t.toggles.Thinking)

	case cmdAttach:
		t.notice = t.attachFile(arg)

	case cmdExit, cmdQuit:
		return t, t.cleanup()

	default:
		t.notice = "Unknown command: " + name
	}

	t.input.Reset()
	t.rebuildViewportContent()
	t.viewport.GotoBottom()
	return t, nil
}

// startConversation swaps in a fresh conversation and resets turn controls.
// The domain is fixed at creation and never changes afterwards.
func (t *TUI) startConversation(domain session.Domain) {
	t.conversation = session.NewConversation(domain)
	t.display = t.conversation.Clone()
	t.mode = planner.ModeDefault
	t.toggles = planner.Toggles{}
	t.pending = nil
	t.notice = fmt.Sprintf("Started a new %s conversation.", domain)
}

// attachFile loads a file for the next submission and reports the outcome.
func (t *TUI) attachFile(path string) string {
	if path == "" {
		return "Usage: /attach <path>"
	}

	data, err := os.ReadFile(path) //nolint:gosec // user-chosen path by design of the command
	if err != nil {
		return "Could not read file: " + err.Error()
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	t.pending = append(t.pending, chat.Attachment{MIMEType: mimeType, Data: data})
	return fmt.Sprintf("Attached %s (%s, %d bytes).", filepath.Base(path), mimeType, len(data))
}

func toggleNotice(what string, on bool) string {
	if on {
		return what + " enabled for upcoming turns."
	}
	return what + " disabled."
}

func helpText() string {
	return strings.Join([]string{
		"Commands:",
		"  /new [code]      start a new conversation (optionally code domain)",
		"  /code            start a new code-domain conversation",
		"  /mode <name>     default, research, shopping, study, image",
		"  /search          toggle web-search retrieval",
		"  /maps            toggle maps retrieval (disables media tools)",
		"  /think           toggle extended reasoning",
		"  /attach <path>   attach a file to the next message",
		"  /exit            quit",
		"Shortcuts: Enter send · Shift+Enter newline · ↑/↓ history · PgUp/PgDn scroll · Ctrl+D exit",
	}, "\n")
}

func (t *TUI) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(t.history) == 0 {
		return t, nil
	}

	t.historyIdx += delta

	if t.historyIdx < 0 {
		t.historyIdx = 0
	}
	if t.historyIdx > len(t.history) {
		t.historyIdx = len(t.history)
	}

	if t.historyIdx == len(t.history) {
		t.input.SetValue("")
	} else {
		t.input.SetValue(t.history[t.historyIdx])
		t.input.CursorEnd()
	}

	return t, nil
}

// cleanup cancels any active turn and returns the quit command.
func (t *TUI) cleanup() tea.Cmd {
	if t.ctxCancel != nil {
		t.ctxCancel()
		t.ctxCancel = nil
	}
	if t.turnCancel != nil {
		t.turnCancel()
		t.turnCancel = nil
	}
	t.turnEventCh = nil

	return tea.Quit
}
