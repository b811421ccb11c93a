package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/reelforge/api/internal/client"
	"github.com/reelforge/api/internal/model"
)

// ScriptRequest is the input of one script synthesis
type ScriptRequest struct {
	Idea        string
	SceneCount  int
	ToneHint    string
	Constraints string
}

// Script is a fixed-size ordered scene list sharing one subject anchor
type Script struct {
	SubjectAnchor string
	Scenes        []model.Scene
}

// ScriptService turns a merchant's idea into scene prompts using Groq
type ScriptService struct {
	text client.TextGenerator
}

func NewScriptService(text client.TextGenerator) *ScriptService {
	return &ScriptService{text: text}
}

// Synthesize returns exactly req.SceneCount scenes. Every scene prompt starts
// with the subject anchor so the stills depict the same product.
func (s *ScriptService) Synthesize(ctx context.Context, req ScriptRequest) (*Script, error) {
	if req.SceneCount < 1 {
		return nil, fmt.Errorf("scene count must be positive, got %d", req.SceneCount)
	}

	var (
		anchor       string
		descriptions []string
	)
	if s.text == nil || !s.text.IsConfigured() {
		anchor, descriptions = mockScript(req)
	} else {
		response, err := s.text.ChatCompletion(ctx, scriptSystemPrompt, buildScriptPrompt(req),
			client.WithJSONResponse(), client.WithMaxTokens(2048))
		if err != nil {
			return nil, fmt.Errorf("AI script generation failed: %w", err)
		}
		anchor, descriptions, err = parseScriptResponse(response)
		if err != nil {
			return nil, err
		}
	}

	if len(descriptions) == 0 {
		return nil, ErrEmptyScript
	}
	anchor = strings.TrimSpace(anchor)
	if anchor == "" {
		anchor = fallbackAnchor(req.Idea)
	}
	if len(descriptions) != req.SceneCount {
		log.Printf("[Script] model returned %d scenes, normalizing to %d", len(descriptions), req.SceneCount)
	}

	scenes := make([]model.Scene, req.SceneCount)
	for i := range scenes {
		// short answers are padded by cycling through what we got
		desc := descriptions[i%len(descriptions)]
		scenes[i] = model.Scene{
			Index:  i,
			Prompt: anchorPrompt(anchor, desc),
			Role:   model.RoleForPosition(i, req.SceneCount),
		}
	}

	return &Script{SubjectAnchor: anchor, Scenes: scenes}, nil
}

const scriptSystemPrompt = `You are a creative director writing vertical short-form product videos.
You write one scene per shot. Each scene is a single still-image description: subject, setting, lighting, camera angle.
You always define one "subject anchor": a short, concrete visual description of the product that stays identical in every shot.
Always output valid JSON in the exact format requested. Do not include any text outside the JSON structure.`

func buildScriptPrompt(req ScriptRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product idea: %s\n", req.Idea)
	fmt.Fprintf(&b, "Number of scenes: exactly %d\n", req.SceneCount)
	if req.ToneHint != "" {
		fmt.Fprintf(&b, "Tone: %s\n", req.ToneHint)
	}
	b.WriteString("\nNarrative arc by position:\n")
	for i := 0; i < req.SceneCount; i++ {
		fmt.Fprintf(&b, "- scene %d: %s\n", i+1, roleDirection(model.RoleForPosition(i, req.SceneCount)))
	}
	if c := strings.TrimSpace(req.Constraints); c != "" {
		b.WriteString("\nHARD CONSTRAINTS. These take absolute precedence over every creative choice above and must never be violated:\n")
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString(`
Do not repeat the subject anchor inside scene descriptions; it is prepended automatically.
Output as JSON: {"subject_anchor": "...", "scenes": [{"description": "..."}]}`)
	return b.String()
}

func roleDirection(role model.NarrativeRole) string {
	switch role {
	case model.RoleHook:
		return "hook, an arresting first image that stops the scroll"
	case model.RoleClimax:
		return "climax, the most dramatic and energetic shot"
	case model.RoleResolution:
		return "resolution, a calm hero shot that lands the message"
	default:
		return "rise, build interest and show the product in use"
	}
}

func parseScriptResponse(response string) (string, []string, error) {
	response = extractJSON(response)

	var result struct {
		SubjectAnchor string `json:"subject_anchor"`
		Scenes        []struct {
			Description string `json:"description"`
		} `json:"scenes"`
	}
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return "", nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	descriptions := make([]string, 0, len(result.Scenes))
	for _, sc := range result.Scenes {
		if d := strings.TrimSpace(sc.Description); d != "" {
			descriptions = append(descriptions, d)
		}
	}
	return result.SubjectAnchor, descriptions, nil
}

// anchorPrompt prefixes the description with the anchor verbatim, dropping a
// copy the model may have repeated anyway.
func anchorPrompt(anchor, description string) string {
	if anchor == "" {
		return strings.TrimSpace(description)
	}
	description = strings.TrimSpace(strings.TrimPrefix(description, anchor))
	description = strings.TrimLeft(description, ",.;: ")
	if description == "" {
		return anchor
	}
	return anchor + ". " + description
}

func fallbackAnchor(idea string) string {
	return "The product: " + truncateUTF8(strings.TrimSpace(idea), 120)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

// Mock implementation for development/testing
func mockScript(req ScriptRequest) (string, []string) {
	anchor := fallbackAnchor(req.Idea)
	templates := []string{
		"extreme close-up bursting into frame against a bold color backdrop, high contrast light",
		"held in a hand on a busy city street, natural daylight, shallow depth of field",
		"in use at a kitchen table, warm morning light, over-the-shoulder angle",
		"surrounded by happy customers, golden hour, wide angle",
		"spinning mid-air with dramatic rim lighting and sparks",
		"resting on a clean pedestal, soft studio light, centered hero shot",
	}
	out := make([]string, req.SceneCount)
	for i := range out {
		switch model.RoleForPosition(i, req.SceneCount) {
		case model.RoleHook:
			out[i] = templates[0]
		case model.RoleClimax:
			out[i] = templates[4]
		case model.RoleResolution:
			out[i] = templates[5]
		default:
			out[i] = templates[1+(i-1)%3]
		}
	}
	return anchor, out
}
