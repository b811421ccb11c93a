package service

import (
	_ "embed"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reelforge/api/internal/model"
)

//go:embed music_catalog.yaml
var defaultMusicCatalog []byte

// MusicCatalog is the pre-rendered track library keyed by mood
type MusicCatalog struct {
	DefaultMood string              `yaml:"default_mood"`
	Moods       map[string][]string `yaml:"moods"`
}

// LoadMusicCatalog reads a catalog file, or the built-in one when path is empty.
func LoadMusicCatalog(path string) (*MusicCatalog, error) {
	data := defaultMusicCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read music catalog: %w", err)
		}
	}

	var catalog MusicCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse music catalog: %w", err)
	}
	if len(catalog.Moods) == 0 {
		return nil, fmt.Errorf("music catalog has no moods")
	}
	if _, ok := catalog.Moods[catalog.DefaultMood]; !ok {
		return nil, fmt.Errorf("default mood %q not in catalog", catalog.DefaultMood)
	}
	return &catalog, nil
}

// MusicService picks a background track for a job
type MusicService struct {
	catalog *MusicCatalog
	resolve func(key string) string
}

// NewMusicService creates a selector. resolve turns a catalog key into a public URL.
func NewMusicService(catalog *MusicCatalog, defaultMood string, resolve func(key string) string) *MusicService {
	if defaultMood != "" {
		if _, ok := catalog.Moods[defaultMood]; ok {
			catalog.DefaultMood = defaultMood
		}
	}
	return &MusicService{catalog: catalog, resolve: resolve}
}

// Select resolves a mood to a track. The pick is seeded by the job id so every
// replica and every retry chooses the same track. Mood "none" yields a resolved
// selection with no track; unknown moods use the default mood.
func (s *MusicService) Select(jobID, mood string) *model.MusicSelection {
	mood = strings.ToLower(strings.TrimSpace(mood))
	if mood == model.MoodNone {
		return &model.MusicSelection{Mood: model.MoodNone, State: model.SubJobCompleted}
	}

	tracks, ok := s.catalog.Moods[mood]
	if !ok || len(tracks) == 0 {
		mood = s.catalog.DefaultMood
		tracks = s.catalog.Moods[mood]
	}
	if len(tracks) == 0 {
		return &model.MusicSelection{Mood: mood, State: model.SubJobError}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(jobID))
	key := tracks[int(h.Sum32()%uint32(len(tracks)))]

	return &model.MusicSelection{
		Mood:     mood,
		TrackURL: s.resolve(key),
		State:    model.SubJobCompleted,
	}
}

// Moods lists the selectable moods, sorted
func (s *MusicService) Moods() []string {
	moods := make([]string, 0, len(s.catalog.Moods)+1)
	for m := range s.catalog.Moods {
		moods = append(moods, m)
	}
	sort.Strings(moods)
	return append(moods, model.MoodNone)
}

func (s *MusicService) DefaultMood() string {
	return s.catalog.DefaultMood
}

// StaticURLResolver joins catalog keys onto a base URL
func StaticURLResolver(baseURL string) func(string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(key string) string {
		return baseURL + "/" + key
	}
}
