// Package planner computes the per-turn tool and model policy.
//
// Plan is the single place where mode/toggle exclusivity rules live; call
// sites never combine tools themselves. Adding a mode means extending Plan,
// not scattering checks across the orchestrator or the UI.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/loomchat/loom/internal/log"
	"github.com/loomchat/loom/internal/session"
)

// Mode selects the assistant behavior for a turn.
type Mode string

// Assistant modes. ModeImageGen is one-shot: the orchestrator resets it to
// ModeDefault after the turn completes.
const (
	ModeDefault  Mode = "default"
	ModeResearch Mode = "research"
	ModeShopping Mode = "shopping"
	ModeStudy    Mode = "study"
	ModeImageGen Mode = "image_gen"
)

// ParseMode converts user input to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default", "":
		return ModeDefault, nil
	case "research":
		return ModeResearch, nil
	case "shopping":
		return ModeShopping, nil
	case "study":
		return ModeStudy, nil
	case "image", "image_gen":
		return ModeImageGen, nil
	default:
		return ModeDefault, fmt.Errorf("unknown mode %q", s)
	}
}

// Callable tool names the model may request.
const (
	ToolGenerateImage = "generate_image"
	ToolGenerateVideo = "generate_video"
)

// Toggles are the per-turn user switches.
type Toggles struct {
	Search   bool // web-search retrieval (default mode only)
	Maps     bool // maps retrieval; exclusive of callable tools
	Thinking bool // extended-reasoning variant selected
}

// Request is the input to one planning decision.
type Request struct {
	Mode          Mode
	Toggles       Toggles
	FileMIMETypes []string // MIME types of files attached to this turn
	Domain        session.Domain
}

// Plan is the ephemeral result of one planning decision. It is computed per
// turn and never persisted.
type Plan struct {
	Model             string
	SystemInstruction string
	Tools             []*genai.Tool
	ToolConfig        *genai.ToolConfig
	ThinkingBudget    *int32
}

// System instruction building blocks.
const (
	baseInstruction = "You are Loom, a helpful and friendly AI assistant. " +
		"Answer clearly and concisely, and use Markdown formatting when it improves readability."

	codeInstruction = "You are an expert software engineer. Respond with precise, technically " +
		"accurate answers in strict Markdown structure: a short explanation followed by complete, " +
		"runnable code blocks with language tags. Prefer idiomatic, production-quality code."

	researchDirective = " Research the question thoroughly and produce a comprehensive, " +
		"multi-source answer, citing sources where possible."

	shoppingDirective = " Act as a shopping assistant: compare prices, summarize trade-offs, " +
		"and list concrete options with links."

	studyDirective = " Act as a patient tutor: explain step by step, check understanding with " +
		"short follow-up questions, and avoid simply giving away answers."
)

// Locator resolves an approximate device location for maps routing bias.
type Locator interface {
	Locate(ctx context.Context) (*genai.LatLng, error)
}

// Models names the generation model variants the planner chooses between.
type Models struct {
	Flash string // fastest variant, the default
	Pro   string // highest-capability variant; the only one accepting video input
}

// Config contains parameters for the Planner.
type Config struct {
	Models Models

	// Locator may be nil, in which case maps turns carry no location bias.
	Locator Locator

	// GeoTimeout bounds the location lookup. Zero selects 5s.
	GeoTimeout time.Duration

	// ThinkingBudget is the token budget attached when the thinking
	// variant is selected. Zero selects 8192.
	ThinkingBudget int32

	Logger log.Logger
}

// Planner computes TurnPlans. The decision itself is deterministic; the only
// effect is the bounded, optional geolocation lookup for maps turns.
type Planner struct {
	models         Models
	locator        Locator
	geoTimeout     time.Duration
	thinkingBudget int32
	logger         log.Logger
}

// New creates a Planner.
func New(cfg Config) *Planner {
	geoTimeout := cfg.GeoTimeout
	if geoTimeout <= 0 {
		geoTimeout = 5 * time.Second
	}
	budget := cfg.ThinkingBudget
	if budget <= 0 {
		budget = 8192
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Planner{
		models:         cfg.Models,
		locator:        cfg.Locator,
		geoTimeout:     geoTimeout,
		thinkingBudget: budget,
		logger:         logger,
	}
}

// Plan computes the tool list, system instruction, model variant, and
// routing configuration for one turn.
func (p *Planner) Plan(ctx context.Context, req Request) Plan {
	model := p.models.Flash
	var modeDirective string
	var search, maps, image, video bool

	// Mode policy.
	switch req.Mode {
	case ModeResearch:
		model = p.models.Pro
		search = true
		modeDirective = researchDirective
	case ModeShopping:
		model = p.models.Flash
		search = true
		modeDirective = shoppingDirective
	case ModeStudy:
		modeDirective = studyDirective
	case ModeImageGen:
		// Only the image tool; retrieval and video are suppressed.
		image = true
	case ModeDefault:
		search = req.Toggles.Search
	}

	// Maps is exclusive of callable-function tools: it clears them and
	// keeps web search only if this turn already selected it.
	var toolConfig *genai.ToolConfig
	if req.Toggles.Maps {
		maps = true
		image, video = false, false
		toolConfig = p.locationBias(ctx)
	} else if req.Domain != session.DomainCode && req.Mode != ModeImageGen {
		// Both callable tools available by default so the model can
		// opportunistically generate media.
		image, video = true, true
	}

	// Only the pro variant accepts video input.
	for _, mime := range req.FileMIMETypes {
		if strings.HasPrefix(mime, "video/") {
			model = p.models.Pro
			break
		}
	}

	var budget *int32
	if req.Toggles.Thinking {
		budget = genai.Ptr(p.thinkingBudget)
	}

	// Code-domain conversations use the strict engineering instruction and
	// ignore mode directives entirely.
	instruction := baseInstruction + modeDirective
	if req.Domain == session.DomainCode {
		instruction = codeInstruction
	}

	return Plan{
		Model:             model,
		SystemInstruction: instruction,
		Tools:             assembleTools(search, maps, image, video),
		ToolConfig:        toolConfig,
		ThinkingBudget:    budget,
	}
}

// locationBias resolves device geolocation with a bounded wait. Failure or
// timeout is silent: the turn proceeds without bias.
func (p *Planner) locationBias(ctx context.Context) *genai.ToolConfig {
	if p.locator == nil {
		return nil
	}

	geoCtx, cancel := context.WithTimeout(ctx, p.geoTimeout)
	defer cancel()

	loc, err := p.locator.Locate(geoCtx)
	if err != nil {
		p.logger.Debug("geolocation unavailable, proceeding without bias", "error", err)
		return nil
	}
	return &genai.ToolConfig{
		RetrievalConfig: &genai.RetrievalConfig{LatLng: loc},
	}
}

// assembleTools materializes the selected tool flags into genai descriptors.
func assembleTools(search, maps, image, video bool) []*genai.Tool {
	var tools []*genai.Tool
	if search {
		tools = append(tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if maps {
		tools = append(tools, &genai.Tool{GoogleMaps: &genai.GoogleMaps{}})
	}

	var decls []*genai.FunctionDeclaration
	if image {
		decls = append(decls, imageDeclaration())
	}
	if video {
		decls = append(decls, videoDeclaration())
	}
	if len(decls) > 0 {
		tools = append(tools, &genai.Tool{FunctionDeclarations: decls})
	}
	return tools
}

func imageDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name: ToolGenerateImage,
		Description: "Generates an image from a text prompt. " +
			"Use when the user asks for a picture, drawing, or any visual.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"prompt": {
					Type:        genai.TypeString,
					Description: "A detailed description of the image to generate.",
				},
			},
			Required: []string{"prompt"},
		},
	}
}

func videoDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name: ToolGenerateVideo,
		Description: "Generates a short video from a text prompt. " +
			"Use when the user asks for a video, animation, or clip.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"prompt": {
					Type:        genai.TypeString,
					Description: "A detailed description of the video to generate.",
				},
			},
			Required: []string{"prompt"},
		},
	}
}
