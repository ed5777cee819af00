package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/loomchat/loom/internal/session"
)

// fakeLocator returns a fixed location or error, after an optional delay.
type fakeLocator struct {
	loc   *genai.LatLng
	err   error
	delay time.Duration
}

func (f *fakeLocator) Locate(ctx context.Context) (*genai.LatLng, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.loc, f.err
}

func testModels() Models {
	return Models{Flash: "flash-model", Pro: "pro-model"}
}

func newTestPlanner(locator Locator) *Planner {
	return New(Config{Models: testModels(), Locator: locator})
}

// toolShape summarizes a Plan's tool list for assertions.
func toolShape(p Plan) (search, maps bool, callables []string) {
	for _, tool := range p.Tools {
		if tool.GoogleSearch != nil {
			search = true
		}
		if tool.GoogleMaps != nil {
			maps = true
		}
		for _, decl := range tool.FunctionDeclarations {
			callables = append(callables, decl.Name)
		}
	}
	return search, maps, callables
}

func TestPlanModes(t *testing.T) {
	p := newTestPlanner(nil)
	ctx := context.Background()

	t.Run("research uses pro model with search", func(t *testing.T) {
		plan := p.Plan(ctx, Request{Mode: ModeResearch, Domain: session.DomainGeneral})

		if plan.Model != "pro-model" {
			t.Errorf("Model = %q, want pro", plan.Model)
		}
		search, _, callables := toolShape(plan)
		if !search {
			t.Error("research mode must enable web search")
		}
		if len(callables) != 2 {
			t.Errorf("callables = %v, want both media tools", callables)
		}
		if !strings.Contains(plan.SystemInstruction, "multi-source") {
			t.Error("research directive missing from system instruction")
		}
	})

	t.Run("shopping uses flash model with search", func(t *testing.T) {
		plan := p.Plan(ctx, Request{Mode: ModeShopping, Domain: session.DomainGeneral})

		if plan.Model != "flash-model" {
			t.Errorf("Model = %q, want flash", plan.Model)
		}
		if search, _, _ := toolShape(plan); !search {
			t.Error("shopping mode must enable web search")
		}
		if !strings.Contains(plan.SystemInstruction, "shopping assistant") {
			t.Error("shopping directive missing from system instruction")
		}
	})

	t.Run("study adds tutor directive without forcing tools", func(t *testing.T) {
		plan := p.Plan(ctx, Request{Mode: ModeStudy, Domain: session.DomainGeneral})

		if search, _, _ := toolShape(plan); search {
			t.Error("study mode must not force web search")
		}
		if !strings.Contains(plan.SystemInstruction, "tutor") {
			t.Error("study directive missing from system instruction")
		}
	})

	t.Run("image_gen forces only the image tool", func(t *testing.T) {
		plan := p.Plan(ctx, Request{
			Mode:    ModeImageGen,
			Toggles: Toggles{Search: true}, // suppressed by image_gen
			Domain:  session.DomainGeneral,
		})

		search, maps, callables := toolShape(plan)
		if search || maps {
			t.Error("image_gen must suppress retrieval tools")
		}
		if len(callables) != 1 || callables[0] != ToolGenerateImage {
			t.Errorf("callables = %v, want only %s", callables, ToolGenerateImage)
		}
	})

	t.Run("default honors the search toggle", func(t *testing.T) {
		plan := p.Plan(ctx, Request{
			Mode:    ModeDefault,
			Toggles: Toggles{Search: true},
			Domain:  session.DomainGeneral,
		})
		if search, _, _ := toolShape(plan); !search {
			t.Error("search toggle must enable web search in default mode")
		}

		plan = p.Plan(ctx, Request{Mode: ModeDefault, Domain: session.DomainGeneral})
		if search, _, _ := toolShape(plan); search {
			t.Error("web search must be off without the toggle")
		}
	})
}

func TestPlanMapsExclusivity(t *testing.T) {
	p := newTestPlanner(nil)
	ctx := context.Background()

	t.Run("maps with search keeps search and drops callables", func(t *testing.T) {
		plan := p.Plan(ctx, Request{
			Mode:    ModeDefault,
			Toggles: Toggles{Search: true, Maps: true},
			Domain:  session.DomainGeneral,
		})

		search, maps, callables := toolShape(plan)
		if !maps {
			t.Error("maps toggle must enable the maps tool")
		}
		if !search {
			t.Error("previously selected search must survive maps")
		}
		if len(callables) != 0 {
			t.Errorf("callables = %v, want none with maps enabled", callables)
		}
	})

	t.Run("maps without search yields only maps", func(t *testing.T) {
		plan := p.Plan(ctx, Request{
			Mode:    ModeDefault,
			Toggles: Toggles{Maps: true},
			Domain:  session.DomainGeneral,
		})

		search, maps, callables := toolShape(plan)
		if search || !maps || len(callables) != 0 {
			t.Errorf("got search=%v maps=%v callables=%v, want only maps", search, maps, callables)
		}
	})
}

func TestPlanGeolocation(t *testing.T) {
	ctx := context.Background()
	mapsReq := Request{Mode: ModeDefault, Toggles: Toggles{Maps: true}, Domain: session.DomainGeneral}

	t.Run("successful lookup attaches routing bias", func(t *testing.T) {
		p := newTestPlanner(&fakeLocator{loc: &genai.LatLng{Latitude: genai.Ptr(48.8566), Longitude: genai.Ptr(2.3522)}})

		plan := p.Plan(ctx, mapsReq)
		if plan.ToolConfig == nil || plan.ToolConfig.RetrievalConfig == nil || plan.ToolConfig.RetrievalConfig.LatLng == nil {
			t.Fatal("expected location bias in tool config")
		}
		if *plan.ToolConfig.RetrievalConfig.LatLng.Latitude != 48.8566 {
			t.Errorf("latitude = %v, want 48.8566", plan.ToolConfig.RetrievalConfig.LatLng.Latitude)
		}
	})

	t.Run("lookup failure is non-fatal", func(t *testing.T) {
		p := newTestPlanner(&fakeLocator{err: errors.New("denied")})

		plan := p.Plan(ctx, mapsReq)
		if plan.ToolConfig != nil {
			t.Error("failed lookup must yield no bias, not an error")
		}
		if _, maps, _ := toolShape(plan); !maps {
			t.Error("maps tool must still be enabled after lookup failure")
		}
	})

	t.Run("lookup wait is bounded", func(t *testing.T) {
		p := New(Config{
			Models:     testModels(),
			Locator:    &fakeLocator{loc: &genai.LatLng{}, delay: time.Second},
			GeoTimeout: 10 * time.Millisecond,
		})

		start := time.Now()
		plan := p.Plan(ctx, mapsReq)
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Errorf("Plan took %s, want bounded by geo timeout", elapsed)
		}
		if plan.ToolConfig != nil {
			t.Error("timed-out lookup must yield no bias")
		}
	})
}

func TestPlanVideoAttachmentForcesPro(t *testing.T) {
	p := newTestPlanner(nil)

	plan := p.Plan(context.Background(), Request{
		Mode:          ModeShopping, // would otherwise pick flash
		FileMIMETypes: []string{"image/png", "video/mp4"},
		Domain:        session.DomainGeneral,
	})

	if plan.Model != "pro-model" {
		t.Errorf("Model = %q, want pro when a video file is attached", plan.Model)
	}
}

func TestPlanThinkingBudget(t *testing.T) {
	p := New(Config{Models: testModels(), ThinkingBudget: 4096})

	plan := p.Plan(context.Background(), Request{
		Mode:    ModeStudy,
		Toggles: Toggles{Thinking: true},
		Domain:  session.DomainGeneral,
	})
	if plan.ThinkingBudget == nil || *plan.ThinkingBudget != 4096 {
		t.Errorf("ThinkingBudget = %v, want 4096", plan.ThinkingBudget)
	}

	plan = p.Plan(context.Background(), Request{Mode: ModeStudy, Domain: session.DomainGeneral})
	if plan.ThinkingBudget != nil {
		t.Error("ThinkingBudget must be absent without the toggle")
	}
}

func TestPlanCodeDomain(t *testing.T) {
	p := newTestPlanner(nil)

	plan := p.Plan(context.Background(), Request{Mode: ModeResearch, Domain: session.DomainCode})

	if !strings.Contains(plan.SystemInstruction, "expert software engineer") {
		t.Error("code domain must use the engineering instruction")
	}
	if strings.Contains(plan.SystemInstruction, "multi-source") {
		t.Error("code domain must ignore mode directives")
	}
	if _, _, callables := toolShape(plan); len(callables) != 0 {
		t.Errorf("callables = %v, want none in code domain", callables)
	}
	if search, _, _ := toolShape(plan); !search {
		t.Error("research mode search must still apply in code domain")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"default", ModeDefault, false},
		{"", ModeDefault, false},
		{"Research", ModeResearch, false},
		{"shopping", ModeShopping, false},
		{"study", ModeStudy, false},
		{"image", ModeImageGen, false},
		{"image_gen", ModeImageGen, false},
		{"bogus", ModeDefault, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
