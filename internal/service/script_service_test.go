package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/reelforge/api/internal/client"
	"github.com/reelforge/api/internal/model"
)

// capturingText records the prompts it receives
type capturingText struct {
	fakeText
	system string
	user   string
}

func (c *capturingText) ChatCompletion(ctx context.Context, system, user string, opts ...client.ChatOption) (string, error) {
	c.system, c.user = system, user
	return c.fakeText.ChatCompletion(ctx, system, user, opts...)
}

func TestSynthesize_MockScript(t *testing.T) {
	svc := NewScriptService(nil)

	script, err := svc.Synthesize(context.Background(), ScriptRequest{Idea: "  Solar lantern for campers ", SceneCount: 5})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if script.SubjectAnchor != "The product: Solar lantern for campers" {
		t.Errorf("unexpected anchor %q", script.SubjectAnchor)
	}
	if len(script.Scenes) != 5 {
		t.Fatalf("expected 5 scenes, got %d", len(script.Scenes))
	}
	roles := []model.NarrativeRole{model.RoleHook, model.RoleRise, model.RoleRise, model.RoleClimax, model.RoleResolution}
	for i, sc := range script.Scenes {
		if sc.Index != i || sc.Role != roles[i] {
			t.Errorf("scene %d: index %d role %s", i, sc.Index, sc.Role)
		}
		if !strings.HasPrefix(sc.Prompt, script.SubjectAnchor+". ") {
			t.Errorf("scene %d prompt lacks anchor: %q", i, sc.Prompt)
		}
	}
}

func TestSynthesize_ModelResponse(t *testing.T) {
	text := &capturingText{fakeText: fakeText{response: `Sure! {"subject_anchor": "A matte black steel water bottle",
		"scenes": [{"description": "A matte black steel water bottle on a mossy rock"}, {"description": "  "}, {"description": "in a gym bag"}]}`}}
	svc := NewScriptService(text)

	script, err := svc.Synthesize(context.Background(), ScriptRequest{
		Idea:        "Insulated bottle",
		SceneCount:  3,
		ToneHint:    "energetic",
		Constraints: "Never show a logo",
	})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	want := []string{
		"A matte black steel water bottle. on a mossy rock",
		"A matte black steel water bottle. in a gym bag",
		"A matte black steel water bottle. on a mossy rock",
	}
	for i, sc := range script.Scenes {
		if sc.Prompt != want[i] {
			t.Errorf("scene %d: got %q, want %q", i, sc.Prompt, want[i])
		}
	}

	if !strings.Contains(text.user, "exactly 3") || !strings.Contains(text.user, "Tone: energetic") {
		t.Errorf("prompt lacks scene count or tone:\n%s", text.user)
	}
	if !strings.Contains(text.user, "HARD CONSTRAINTS") || !strings.Contains(text.user, "Never show a logo") {
		t.Errorf("prompt lacks constraints:\n%s", text.user)
	}
	if !strings.Contains(text.user, "scene 1: hook") || !strings.Contains(text.user, "scene 3: resolution") {
		t.Errorf("prompt lacks narrative arc:\n%s", text.user)
	}
}

func TestSynthesize_TruncatesLongScripts(t *testing.T) {
	svc := NewScriptService(&fakeText{response: `{"subject_anchor": "A red kite",
		"scenes": [{"description": "one"}, {"description": "two"}, {"description": "three"}]}`})

	script, err := svc.Synthesize(context.Background(), ScriptRequest{Idea: "Kite", SceneCount: 2})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(script.Scenes) != 2 || script.Scenes[1].Prompt != "A red kite. two" {
		t.Errorf("unexpected scenes %+v", script.Scenes)
	}
	if script.Scenes[1].Role != model.RoleResolution {
		t.Errorf("last scene must resolve, got %s", script.Scenes[1].Role)
	}
}

func TestSynthesize_MissingAnchorUsesIdea(t *testing.T) {
	svc := NewScriptService(&fakeText{response: `{"scenes": [{"description": "on a desk"}]}`})

	script, err := svc.Synthesize(context.Background(), ScriptRequest{Idea: "Desk lamp", SceneCount: 2})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if script.SubjectAnchor != "The product: Desk lamp" {
		t.Errorf("unexpected anchor %q", script.SubjectAnchor)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	tests := []struct {
		name string
		text *fakeText
		want error
	}{
		{"empty scenes", &fakeText{response: `{"subject_anchor": "x", "scenes": []}`}, ErrEmptyScript},
		{"upstream error", &fakeText{err: errors.New("boom")}, nil},
		{"not json", &fakeText{response: "I cannot help with that"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScriptService(tt.text).Synthesize(context.Background(), ScriptRequest{Idea: "x", SceneCount: 2})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAnchorPrompt(t *testing.T) {
	tests := []struct {
		anchor, desc, want string
	}{
		{"A mug", "on a table", "A mug. on a table"},
		{"A mug", "A mug, on a table", "A mug. on a table"},
		{"A mug", "A mug", "A mug"},
		{"", " on a table ", "on a table"},
	}
	for _, tt := range tests {
		if got := anchorPrompt(tt.anchor, tt.desc); got != tt.want {
			t.Errorf("anchorPrompt(%q, %q) = %q, want %q", tt.anchor, tt.desc, got, tt.want)
		}
	}
}

func TestFallbackAnchorKeepsRunesWhole(t *testing.T) {
	// 119 ASCII bytes then a two-byte rune straddling the 120 byte cut
	idea := strings.Repeat("a", 119) + "é" + " handmade"
	anchor := fallbackAnchor(idea)
	if !utf8.ValidString(anchor) {
		t.Fatalf("anchor is not valid UTF-8: %q", anchor)
	}
	if anchor != "The product: "+strings.Repeat("a", 119) {
		t.Errorf("unexpected anchor %q", anchor)
	}

	if got := fallbackAnchor("Çay bardağı seti"); got != "The product: Çay bardağı seti" {
		t.Errorf("short idea changed: %q", got)
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abc", 2, "ab"},
		{"日本語", 4, "日"},
		{"日本語", 6, "日本"},
		{"日本語", 2, ""},
	}
	for _, tt := range tests {
		if got := truncateUTF8(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
