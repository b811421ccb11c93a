package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/reelforge/api/internal/client"
	"github.com/reelforge/api/internal/ledger"
	"github.com/reelforge/api/internal/model"
	"github.com/reelforge/api/internal/store"
)

// fakeGeneration is a scriptable provider. Requests stay pending until a test
// resolves them.
type fakeGeneration struct {
	mu       sync.Mutex
	seq      int
	payloads map[string]*client.GenerationPayload
	handles  []model.Handle
	results  map[string]*client.PollResult
	reject   func(capability model.Capability, payload *client.GenerationPayload) bool
	polls    atomic.Int64
}

func newFakeGeneration() *fakeGeneration {
	return &fakeGeneration{
		payloads: map[string]*client.GenerationPayload{},
		results:  map[string]*client.PollResult{},
	}
}

func (f *fakeGeneration) Submit(ctx context.Context, capability model.Capability, payload *client.GenerationPayload) (*model.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject != nil && f.reject(capability, payload) {
		return nil, &client.SubmissionError{Capability: capability, StatusCode: 422, Message: "rejected"}
	}
	f.seq++
	h := model.Handle{Capability: capability, RequestID: fmt.Sprintf("%s-%d", capability, f.seq)}
	f.payloads[h.RequestID] = payload
	f.handles = append(f.handles, h)
	return &h, nil
}

func (f *fakeGeneration) Poll(ctx context.Context, handle model.Handle) (*client.PollResult, error) {
	f.polls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.results[handle.RequestID]; ok {
		return r, nil
	}
	return &client.PollResult{Status: client.PollPending}, nil
}

func (f *fakeGeneration) FetchResult(ctx context.Context, handle model.Handle, resultRef string) (string, error) {
	return "https://assets.test/" + resultRef, nil
}

func (f *fakeGeneration) IsConfigured() bool { return true }

// handlesFor returns the handles submitted for a capability in submission order.
func (f *fakeGeneration) handlesFor(capability model.Capability) []model.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Handle
	for _, h := range f.handles {
		if h.Capability == capability {
			out = append(out, h)
		}
	}
	return out
}

func (f *fakeGeneration) payload(h model.Handle) *client.GenerationPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloads[h.RequestID]
}

func (f *fakeGeneration) complete(h model.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[h.RequestID] = &client.PollResult{Status: client.PollCompleted, ResultRef: h.RequestID}
}

func (f *fakeGeneration) fail(h model.Handle, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[h.RequestID] = &client.PollResult{Status: client.PollFailed, Reason: reason}
}

func (f *fakeGeneration) completeAll(capability model.Capability) {
	for _, h := range f.handlesFor(capability) {
		f.complete(h)
	}
}

type fakeText struct {
	response string
	err      error
}

func (f *fakeText) ChatCompletion(ctx context.Context, system, user string, opts ...client.ChatOption) (string, error) {
	return f.response, f.err
}

func (f *fakeText) IsConfigured() bool { return true }

// blockingText never answers; it returns once the caller gives up.
type blockingText struct{}

func (blockingText) ChatCompletion(ctx context.Context, system, user string, opts ...client.ChatOption) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingText) IsConfigured() bool { return true }

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []*model.VideoStatusResponse
}

func (n *recordingNotifier) Publish(status *model.VideoStatusResponse) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, status)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.statuses)
}

type recordingArchiver struct {
	mu   sync.Mutex
	jobs []string
}

func (a *recordingArchiver) ScheduleArchive(ctx context.Context, jobID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs = append(a.jobs, jobID)
	return nil
}

// flakyLedger fails refunds while broken is set, and fails the next
// failNext refunds regardless.
type flakyLedger struct {
	ledger.Ledger
	broken   atomic.Bool
	failNext atomic.Int64
	attempts atomic.Int64
	refunds  atomic.Int64
}

func (l *flakyLedger) Refund(ctx context.Context, userID string, amount int64, reference, description string) (bool, int64, error) {
	l.attempts.Add(1)
	if l.broken.Load() {
		return false, 0, errors.New("ledger unavailable")
	}
	if l.failNext.Add(-1) >= 0 {
		return false, 0, errors.New("ledger timeout")
	}
	refunded, bal, err := l.Ledger.Refund(ctx, userID, amount, reference, description)
	if refunded {
		l.refunds.Add(1)
	}
	return refunded, bal, err
}

type harness struct {
	svc      *VideoService
	gen      *fakeGeneration
	store    *store.RedisJobStore
	ledger   *flakyLedger
	notifier *recordingNotifier
	archiver *recordingArchiver
}

const testMerchant = "merchant-1"

func newHarness(t *testing.T, starterCredits int64, text client.TextGenerator) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	catalog, err := LoadMusicCatalog("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	h := &harness{
		gen:      newFakeGeneration(),
		store:    store.NewRedisJobStore(rdb, 0),
		ledger:   &flakyLedger{Ledger: ledger.NewRedisLedger(rdb)},
		notifier: &recordingNotifier{},
		archiver: &recordingArchiver{},
	}
	h.svc = NewVideoService(VideoServiceDeps{
		Store:      h.store,
		Ledger:     h.ledger,
		Generation: h.gen,
		Script:     NewScriptService(text),
		Motion:     NewMotionService(nil),
		Music:      NewMusicService(catalog, "", StaticURLResolver("https://music.test")),
		Notifier:   h.notifier,
		Archiver:   h.archiver,
	}, PipelineOptions{StarterCredits: starterCredits, LockTTL: 5 * time.Second})
	return h
}

func (h *harness) submit(t *testing.T, tier model.TierID, mood string) string {
	t.Helper()
	resp, err := h.svc.Submit(context.Background(), testMerchant, &model.VideoSubmitRequest{
		Idea:      "A handmade ceramic mug that keeps coffee warm",
		Tier:      tier,
		MusicMood: mood,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return resp.JobID
}

func (h *harness) advance(t *testing.T, jobID string) *model.VideoStatusResponse {
	t.Helper()
	status, err := h.svc.Advance(context.Background(), testMerchant, jobID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	return status
}

func (h *harness) job(t *testing.T, jobID string) *model.VideoJob {
	t.Helper()
	job, err := h.store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	return job
}

func (h *harness) balance(t *testing.T) int64 {
	t.Helper()
	bal, err := h.ledger.Balance(context.Background(), testMerchant)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}
