package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/reelforge/api/internal/model"
)

func TestMotion_TemplateWithoutTextGenerator(t *testing.T) {
	svc := NewMotionService(nil)

	for _, role := range []model.NarrativeRole{model.RoleHook, model.RoleRise, model.RoleClimax, model.RoleResolution} {
		got := svc.Synthesize(context.Background(), MotionRequest{SubjectAnchor: "A blue kettle", Role: role, ClipSeconds: 5})
		if !strings.HasPrefix(got, "A blue kettle. ") {
			t.Errorf("%s: missing anchor in %q", role, got)
		}
		if !strings.Contains(got, "5 seconds") {
			t.Errorf("%s: missing clip length in %q", role, got)
		}
	}
}

func TestMotion_FallsBackOnError(t *testing.T) {
	svc := NewMotionService(&fakeText{err: errors.New("rate limited")})
	req := MotionRequest{SubjectAnchor: "A blue kettle", Role: model.RoleClimax, ClipSeconds: 10}

	if got, want := svc.Synthesize(context.Background(), req), TemplateMotionPrompt(req); got != want {
		t.Errorf("got %q, want template %q", got, want)
	}
}

func TestMotion_FallsBackOnEmptyResponse(t *testing.T) {
	svc := NewMotionService(&fakeText{response: `  ""  `})
	req := MotionRequest{SubjectAnchor: "A blue kettle", Role: model.RoleHook, ClipSeconds: 5}

	if got := svc.Synthesize(context.Background(), req); got != TemplateMotionPrompt(req) {
		t.Errorf("expected template, got %q", got)
	}
}

func TestMotion_ModelResponse(t *testing.T) {
	svc := NewMotionService(&fakeText{response: `"Slow push-in as steam rises from the spout."`})

	got := svc.Synthesize(context.Background(), MotionRequest{SubjectAnchor: "A blue kettle", Role: model.RoleRise, ClipSeconds: 5})
	if got != "A blue kettle. Slow push-in as steam rises from the spout." {
		t.Errorf("unexpected prompt %q", got)
	}

	long := NewMotionService(&fakeText{response: strings.Repeat("pan ", 200)})
	got = long.Synthesize(context.Background(), MotionRequest{SubjectAnchor: "A", Role: model.RoleRise, ClipSeconds: 5})
	if len(got) > maxMotionPromptLen+len("A. ") {
		t.Errorf("motion prompt not truncated: %d chars", len(got))
	}
}

func TestMotion_TruncationKeepsRunesWhole(t *testing.T) {
	svc := NewMotionService(&fakeText{response: "x" + strings.Repeat("ü", 300)})

	got := svc.Synthesize(context.Background(), MotionRequest{SubjectAnchor: "A", Role: model.RoleRise, ClipSeconds: 5})
	if !utf8.ValidString(got) {
		t.Fatalf("motion prompt is not valid UTF-8")
	}
	if len(got) > maxMotionPromptLen+len("A. ") {
		t.Errorf("motion prompt not truncated: %d bytes", len(got))
	}
}
