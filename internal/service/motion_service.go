package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/reelforge/api/internal/client"
	"github.com/reelforge/api/internal/model"
)

// MotionRequest describes one completed still to animate
type MotionRequest struct {
	ImageURL      string
	ScenePrompt   string
	SubjectAnchor string
	Role          model.NarrativeRole
	ClipSeconds   int
}

// MotionService writes camera and motion directions for image-to-video clips.
// It never fails: any upstream problem falls back to a per-role template.
type MotionService struct {
	text client.TextGenerator
}

func NewMotionService(text client.TextGenerator) *MotionService {
	return &MotionService{text: text}
}

const maxMotionPromptLen = 400

func (s *MotionService) Synthesize(ctx context.Context, req MotionRequest) string {
	if s.text == nil || !s.text.IsConfigured() {
		return TemplateMotionPrompt(req)
	}

	response, err := s.text.ChatCompletion(ctx, motionSystemPrompt, buildMotionPrompt(req),
		client.WithTemperature(0.6), client.WithMaxTokens(200))
	if err != nil {
		log.Printf("[Motion] falling back to %s template: %v", req.Role, err)
		return TemplateMotionPrompt(req)
	}

	motion := strings.TrimSpace(strings.Trim(strings.TrimSpace(response), `"`))
	if motion == "" {
		log.Printf("[Motion] empty response, falling back to %s template", req.Role)
		return TemplateMotionPrompt(req)
	}
	motion = truncateUTF8(motion, maxMotionPromptLen)
	return anchorPrompt(req.SubjectAnchor, motion)
}

const motionSystemPrompt = `You direct camera movement for short product clips generated from a still image.
Answer with one or two sentences describing camera motion and subject motion only. No preamble, no quotes.`

func buildMotionPrompt(req MotionRequest) string {
	return fmt.Sprintf(`Still image: %s
Scene: %s
Narrative role: %s (%s)
Clip length: %d seconds
Describe the motion.`, req.ImageURL, req.ScenePrompt, req.Role, roleEnergy(req.Role), req.ClipSeconds)
}

func roleEnergy(role model.NarrativeRole) string {
	switch role {
	case model.RoleHook:
		return "abrupt and attention-grabbing"
	case model.RoleClimax:
		return "peak intensity"
	case model.RoleResolution:
		return "settling and calm"
	default:
		return "building momentum"
	}
}

var motionTemplates = map[model.NarrativeRole]string{
	model.RoleHook:       "Sudden snap zoom toward the subject with a quick whip-pan reveal, punchy handheld energy for %d seconds",
	model.RoleRise:       "Steady dolly-in on the subject with gently building camera movement and growing momentum over %d seconds",
	model.RoleClimax:     "Fast orbit around the subject at peak intensity with dynamic light flares for %d seconds",
	model.RoleResolution: "Slow pull-back from the subject settling into a calm, balanced final frame over %d seconds",
}

// TemplateMotionPrompt is the deterministic fallback for a role
func TemplateMotionPrompt(req MotionRequest) string {
	tmpl, ok := motionTemplates[req.Role]
	if !ok {
		tmpl = motionTemplates[model.RoleRise]
	}
	return anchorPrompt(req.SubjectAnchor, fmt.Sprintf(tmpl, req.ClipSeconds))
}
