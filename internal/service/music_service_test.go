package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reelforge/api/internal/model"
)

func newTestMusic(t *testing.T) *MusicService {
	t.Helper()
	catalog, err := LoadMusicCatalog("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return NewMusicService(catalog, "", StaticURLResolver("https://music.test/"))
}

func TestMusicSelect_Deterministic(t *testing.T) {
	music := newTestMusic(t)

	first := music.Select("job-42", "Calm")
	if first.Mood != "calm" || !first.HasTrack() {
		t.Fatalf("unexpected selection %+v", first)
	}
	if !strings.HasPrefix(first.TrackURL, "https://music.test/") || strings.HasPrefix(first.TrackURL, "https://music.test//") {
		t.Errorf("unexpected url %s", first.TrackURL)
	}
	for i := 0; i < 5; i++ {
		if again := music.Select("job-42", "calm"); again.TrackURL != first.TrackURL {
			t.Fatalf("selection changed: %s vs %s", again.TrackURL, first.TrackURL)
		}
	}
}

func TestMusicSelect_NoneAndUnknown(t *testing.T) {
	music := newTestMusic(t)

	none := music.Select("job-1", "none")
	if none.HasTrack() || none.State != model.SubJobCompleted || none.Mood != model.MoodNone {
		t.Errorf("unexpected none selection %+v", none)
	}

	unknown := music.Select("job-1", "polka")
	if unknown.Mood != music.DefaultMood() || !unknown.HasTrack() {
		t.Errorf("unknown mood must use default, got %+v", unknown)
	}

	empty := music.Select("job-1", "")
	if empty.Mood != music.DefaultMood() {
		t.Errorf("empty mood must use default, got %+v", empty)
	}
}

func TestMusicMoods(t *testing.T) {
	music := newTestMusic(t)
	moods := music.Moods()
	if moods[len(moods)-1] != model.MoodNone {
		t.Errorf("none must be listed last, got %v", moods)
	}
	for i := 1; i < len(moods)-1; i++ {
		if moods[i-1] > moods[i] {
			t.Errorf("moods not sorted: %v", moods)
		}
	}
}

func TestLoadMusicCatalog_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	data := "default_mood: lofi\nmoods:\n  lofi:\n    - lofi/rain.mp3\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	catalog, err := LoadMusicCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	music := NewMusicService(catalog, "missing", StaticURLResolver("https://m.test"))
	if music.DefaultMood() != "lofi" {
		t.Errorf("unknown configured default must be ignored, got %s", music.DefaultMood())
	}
	if sel := music.Select("j", "jazz"); sel.TrackURL != "https://m.test/lofi/rain.mp3" {
		t.Errorf("unexpected track %s", sel.TrackURL)
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("default_mood: jazz\nmoods:\n  lofi: [a.mp3]\n"), 0o644)
	if _, err := LoadMusicCatalog(bad); err == nil {
		t.Error("expected error for default mood outside catalog")
	}
}
