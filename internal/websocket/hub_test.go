package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/reelforge/api/internal/model"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHub_PublishReachesSubscribersOfJob(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	mine := &Client{JobID: "job-1", Send: make(chan []byte, 4)}
	other := &Client{JobID: "job-2", Send: make(chan []byte, 4)}
	hub.Register(mine)
	hub.Register(other)
	waitFor(t, func() bool { return hub.Subscribers("job-1") == 1 && hub.Subscribers("job-2") == 1 })

	url := "https://cdn/final.mp4"
	hub.Publish(&model.VideoStatusResponse{JobID: "job-1", Stage: model.StageCompleted, FinalArtifactURL: &url})

	select {
	case data := <-mine.Send:
		var msg model.WSStatusMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != model.WSMessageTypeComplete || msg.Status.FinalArtifactURL == nil {
			t.Errorf("unexpected message %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive update")
	}

	select {
	case <-other.Send:
		t.Fatal("subscriber of another job must not receive the update")
	default:
	}
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := &Client{JobID: "job-1", Send: make(chan []byte, 1)}
	hub.Register(c)
	hub.Unregister(c)
	waitFor(t, func() bool { return hub.Subscribers("job-1") == 0 })

	if _, ok := <-c.Send; ok {
		t.Fatal("expected send channel closed")
	}
}

func TestHub_PublishNeverBlocksWithoutRunLoop(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.Publish(&model.VideoStatusResponse{JobID: "job-1", Stage: model.StageImages})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}
