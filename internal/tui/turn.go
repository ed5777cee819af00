package tui

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/loomchat/loom/internal/chat"
	"github.com/loomchat/loom/internal/planner"
	"github.com/loomchat/loom/internal/session"
)

// turnBufferSize absorbs snapshot bursts (echo + replacement per tool call)
// while the UI is mid-render.
const turnBufferSize = 32

// turnTimeout is a hard ceiling on one whole turn, comfortably above the
// video executor's own four-minute poll ceiling.
const turnTimeout = 10 * time.Minute

// turnEvent is a discriminated union for all turn events. A single channel
// with a union type keeps the select logic flat.
type turnEvent struct {
	// Exactly one of these is set per event.
	snapshot *session.Conversation // intermediate conversation state
	mode     planner.Mode          // mode for the next turn (when done)
	err      error                 // panic or timeout escape hatch
	done     bool
}

// Turn message types for Bubble Tea.
type turnStartedMsg struct {
	eventCh <-chan turnEvent
	cancel  context.CancelFunc
}

type turnSnapshotMsg struct {
	conversation *session.Conversation
}

type turnDoneMsg struct {
	mode planner.Mode
}

type turnErrorMsg struct {
	err error
}

// startTurn creates a command that runs one full turn in the background.
//
// The goroutine owns t.conversation until the done event; the UI renders
// only the snapshot clones that arrive on the channel. Channel closure
// signals goroutine exit.
func (t *TUI) startTurn(text string, files []chat.Attachment) tea.Cmd {
	conv := t.conversation
	mode := t.mode
	toggles := t.toggles

	return func() tea.Msg {
		eventCh := make(chan turnEvent, turnBufferSize)
		ctx, cancel := context.WithTimeout(t.ctx, turnTimeout)

		go func() {
			defer cancel()
			defer close(eventCh)

			// Panic recovery to prevent UI lockup.
			defer func() {
				if r := recover(); r != nil {
					select {
					case eventCh <- turnEvent{err: fmt.Errorf("turn panic: %v", r)}:
					default:
					}
				}
			}()

			next := t.flow.SubmitTurn(ctx, conv, chat.TurnRequest{
				Text:    text,
				Files:   files,
				Mode:    mode,
				Toggles: toggles,
				OnSnapshot: func(snap *session.Conversation) {
					// Snapshots are ordered; block rather than drop.
					select {
					case eventCh <- turnEvent{snapshot: snap}:
					case <-ctx.Done():
					}
				},
			})

			select {
			case eventCh <- turnEvent{done: true, mode: next}:
			case <-ctx.Done():
			}
		}()

		return turnStartedMsg{eventCh: eventCh, cancel: cancel}
	}
}

// listenForTurn creates a command that waits for the next turn event.
func listenForTurn(eventCh <-chan turnEvent) tea.Cmd {
	return func() tea.Msg {
		if eventCh == nil {
			return nil
		}

		for {
			event, ok := <-eventCh
			if !ok {
				return turnErrorMsg{err: fmt.Errorf("turn ended without completion signal")}
			}

			switch {
			case event.err != nil:
				return turnErrorMsg{err: event.err}
			case event.done:
				return turnDoneMsg{mode: event.mode}
			case event.snapshot != nil:
				return turnSnapshotMsg{conversation: event.snapshot}
			default:
				continue
			}
		}
	}
}
