// Package chat runs conversation turns: it assembles bounded history,
// plans the turn, calls the model, resolves tool calls sequentially, and
// emits conversation snapshots after every state transition.
//
// One turn per conversation is in flight at a time; the surrounding surface
// disables input while a turn runs. Within a turn, tool calls execute
// strictly in the order the model requested them.
package chat

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/loomchat/loom/internal/log"
	"github.com/loomchat/loom/internal/planner"
	"github.com/loomchat/loom/internal/session"
)

// DefaultHistoryWindow is how many trailing messages (including the new
// user message) the model sees each turn.
const DefaultHistoryWindow = 15

// msgEmptyResponse stands in for a well-formed model response with no text.
const msgEmptyResponse = "I could not generate a response. Please try again."

// Generator is the single model call the orchestrator depends on.
type Generator interface {
	Generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ToolExecutor resolves one callable tool request into a terminal message.
// Implementations absorb their own failures; Generate never errors.
type ToolExecutor interface {
	Generate(ctx context.Context, prompt string) session.Message
}

// TurnPlanner computes the per-turn model and tool policy.
type TurnPlanner interface {
	Plan(ctx context.Context, req planner.Request) planner.Plan
}

// Saver persists conversation state. Failures are logged and the in-memory
// conversation stays authoritative.
type Saver interface {
	Put(c *session.Conversation) error
}

// Attachment is a file the user attached to the current turn. Attachments
// ride along as inline parts for this turn only; history never replays
// their bytes.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// TurnRequest is one user submission.
type TurnRequest struct {
	Text    string
	Files   []Attachment
	Mode    planner.Mode
	Toggles planner.Toggles

	// OnSnapshot receives a deep copy of the conversation after every
	// state transition, in order. May be nil.
	OnSnapshot func(*session.Conversation)
}

// Config contains parameters for the Orchestrator.
type Config struct {
	Generator Generator
	Planner   TurnPlanner
	Sessions  Saver

	// ImageExecutor and VideoExecutor resolve the two callable tools.
	ImageExecutor ToolExecutor
	VideoExecutor ToolExecutor

	// HistoryWindow bounds how many messages the model sees. Zero selects
	// DefaultHistoryWindow.
	HistoryWindow int

	// Limiter paces model calls. Nil disables pacing.
	Limiter *rate.Limiter

	Logger log.Logger
}

func (cfg Config) validate() error {
	if cfg.Generator == nil {
		return fmt.Errorf("generator is required")
	}
	if cfg.Planner == nil {
		return fmt.Errorf("planner is required")
	}
	if cfg.Sessions == nil {
		return fmt.Errorf("session saver is required")
	}
	if cfg.ImageExecutor == nil || cfg.VideoExecutor == nil {
		return fmt.Errorf("both tool executors are required")
	}
	return nil
}

// Orchestrator executes turns against a conversation.
type Orchestrator struct {
	generator Generator
	planner   TurnPlanner
	sessions  Saver
	image     ToolExecutor
	video     ToolExecutor
	window    int
	limiter   *rate.Limiter
	logger    log.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	window := cfg.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Orchestrator{
		generator: cfg.Generator,
		planner:   cfg.Planner,
		sessions:  cfg.Sessions,
		image:     cfg.ImageExecutor,
		video:     cfg.VideoExecutor,
		window:    window,
		limiter:   cfg.Limiter,
		logger:    logger,
	}, nil
}

// SubmitTurn runs one full turn against conv, mutating it in place and
// emitting snapshots along the way. It returns the mode for the next turn:
// image generation is one-shot, every other mode is sticky.
//
// The caller owns conv for the duration of the turn; no other turn may run
// against the same conversation concurrently.
func (o *Orchestrator) SubmitTurn(ctx context.Context, conv *session.Conversation, req TurnRequest) planner.Mode {
	// The user message lands before any network call so the submission is
	// visible even if everything after it fails.
	conv.Append(session.NewMessage(session.RoleUser, req.Text))
	o.commit(conv, req.OnSnapshot)

	contents := buildContents(conv, req.Files, o.window)

	plan := o.planner.Plan(ctx, planner.Request{
		Mode:          req.Mode,
		Toggles:       req.Toggles,
		FileMIMETypes: attachmentMIMETypes(req.Files),
		Domain:        conv.Domain,
	})

	resp, err := o.generate(ctx, plan, contents)
	if err != nil {
		// No automatic retry: surface the failure as a terminal message.
		o.logger.Error("model call failed", "error", err, "conversation", conv.ID)
		conv.Append(session.NewMessage(session.RoleModel, "Error: "+err.Error()))
		o.commit(conv, req.OnSnapshot)
		return nextMode(req.Mode)
	}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		text := resp.Text()
		if text == "" {
			text = msgEmptyResponse
		}
		msg := session.NewMessage(session.RoleModel, text)
		msg.Grounding = groundingMetadata(resp)
		conv.Append(msg)
		o.commit(conv, req.OnSnapshot)
		return nextMode(req.Mode)
	}

	o.resolveToolCalls(ctx, conv, calls, req.OnSnapshot)
	return nextMode(req.Mode)
}

// resolveToolCalls runs each requested tool strictly in order. A failed
// call still produces a terminal message and never cancels its siblings.
func (o *Orchestrator) resolveToolCalls(ctx context.Context, conv *session.Conversation, calls []*genai.FunctionCall, onSnapshot func(*session.Conversation)) {
	for _, call := range calls {
		var exec ToolExecutor
		var echoText string

		prompt := promptArgument(call.Args)
		switch call.Name {
		case planner.ToolGenerateImage:
			exec = o.image
			echoText = fmt.Sprintf("Generating image for: %q", prompt)
		case planner.ToolGenerateVideo:
			exec = o.video
			echoText = fmt.Sprintf("Generating video for: %q", prompt)
		default:
			// Planning inconsistency, not a turn failure.
			o.logger.Warn("ignoring unrecognized tool call", "tool", call.Name)
			continue
		}

		echo := session.NewMessage(session.RoleModel, echoText)
		echo.ToolEcho = true
		conv.Append(echo)
		o.commit(conv, onSnapshot)

		result := exec.Generate(ctx, prompt)
		if !conv.Replace(echo.ID, result) {
			// Should not happen while turns are serialized; append so the
			// result is never dropped.
			o.logger.Warn("tool echo vanished, appending result", "conversation", conv.ID)
			conv.Append(result)
		}
		o.commit(conv, onSnapshot)
	}
}

// generate paces and issues the single model call for this turn.
func (o *Orchestrator) generate(ctx context.Context, plan planner.Plan, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(plan.SystemInstruction, genai.RoleUser),
		Tools:             plan.Tools,
		ToolConfig:        plan.ToolConfig,
	}
	if plan.ThinkingBudget != nil {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: plan.ThinkingBudget}
	}

	return o.generator.Generate(ctx, plan.Model, contents, config)
}

// commit persists the conversation and emits a snapshot. Persistence
// failure is logged and swallowed; the in-memory state stays authoritative.
func (o *Orchestrator) commit(conv *session.Conversation, onSnapshot func(*session.Conversation)) {
	if err := o.sessions.Put(conv); err != nil {
		o.logger.Warn("persisting conversation", "error", err, "conversation", conv.ID)
	}
	if onSnapshot != nil {
		onSnapshot(conv.Clone())
	}
}

// nextMode resets one-shot modes after the turn.
func nextMode(mode planner.Mode) planner.Mode {
	if mode == planner.ModeImageGen {
		return planner.ModeDefault
	}
	return mode
}

func promptArgument(args map[string]any) string {
	prompt, _ := args["prompt"].(string)
	return prompt
}

func attachmentMIMETypes(files []Attachment) []string {
	if len(files) == 0 {
		return nil
	}
	types := make([]string, len(files))
	for i, f := range files {
		types[i] = f.MIMEType
	}
	return types
}

func groundingMetadata(resp *genai.GenerateContentResponse) *genai.GroundingMetadata {
	if len(resp.Candidates) == 0 {
		return nil
	}
	return resp.Candidates[0].GroundingMetadata
}
