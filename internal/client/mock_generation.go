package client

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/api/internal/model"
)

// MockGenerationClient stands in for the generation provider when no API key is
// configured. It keeps no state: the submit time is encoded in the request id,
// so any replica can answer a poll and a completed request stays completed.
type MockGenerationClient struct {
	latency time.Duration
	now     func() time.Time
	cdnURL  string
}

// NewMockGenerationClient creates a mock that completes requests after latency
func NewMockGenerationClient(latency time.Duration) *MockGenerationClient {
	return &MockGenerationClient{
		latency: latency,
		now:     time.Now,
		cdnURL:  "https://cdn.reelforge.dev/mock",
	}
}

func (m *MockGenerationClient) Submit(ctx context.Context, capability model.Capability, payload *GenerationPayload) (*model.Handle, error) {
	if payload == nil {
		return nil, &SubmissionError{Capability: capability, Message: "empty payload"}
	}
	id := fmt.Sprintf("mock-%d-%s", m.now().UnixNano(), uuid.NewString()[:8])
	log.Printf("[Generation Mock] submitted %s %s", capability, id)
	return &model.Handle{Capability: capability, RequestID: id}, nil
}

func (m *MockGenerationClient) Poll(ctx context.Context, handle model.Handle) (*PollResult, error) {
	submitted, err := mockSubmitTime(handle.RequestID)
	if err != nil {
		return &PollResult{Status: PollFailed, Reason: err.Error()}, nil
	}
	if m.now().Sub(submitted) < m.latency {
		return &PollResult{Status: PollPending}, nil
	}
	return &PollResult{Status: PollCompleted, ResultRef: "mock://" + string(handle.Capability) + "/" + handle.RequestID}, nil
}

func (m *MockGenerationClient) FetchResult(ctx context.Context, handle model.Handle, resultRef string) (string, error) {
	ext := "mp4"
	if handle.Capability == model.CapabilityStillImage {
		ext = "png"
	}
	return fmt.Sprintf("%s/%s/%s.%s", m.cdnURL, handle.Capability, handle.RequestID, ext), nil
}

func (m *MockGenerationClient) IsConfigured() bool {
	return false
}

func mockSubmitTime(requestID string) (time.Time, error) {
	parts := strings.SplitN(requestID, "-", 3)
	if len(parts) != 3 || parts[0] != "mock" {
		return time.Time{}, fmt.Errorf("unknown mock request %q", requestID)
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown mock request %q", requestID)
	}
	return time.Unix(0, nanos), nil
}
