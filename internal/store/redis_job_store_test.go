package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/reelforge/api/internal/model"
)

func setupStore(t *testing.T) (*RedisJobStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisJobStore(rdb, 0), mr
}

func newJob(id, userID string) *model.VideoJob {
	tier, _ := model.LookupTier(model.TierShort)
	return &model.VideoJob{
		ID:     id,
		UserID: userID,
		Stage:  model.StageImages,
		Tier:   tier,
		ImageJobs: []model.SubJob{
			model.NewPendingSubJob(0, model.Handle{Capability: model.CapabilityStillImage, RequestID: "a"}),
			model.NewPendingSubJob(1, model.Handle{Capability: model.CapabilityStillImage, RequestID: "b"}),
		},
		CreditsCharged: tier.CreditCost,
	}
}

func TestCreateAndGet(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, newJob("job-1", "user-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Stage != model.StageImages || len(got.ImageJobs) != 2 || got.Revision != 1 {
		t.Errorf("unexpected job %+v", got)
	}
	if ttl := mr.TTL(jobKey("job-1")); ttl != 0 {
		t.Errorf("expected no expiry for retained jobs, got %v", ttl)
	}
}

func TestCreate_DuplicateRejected(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_ = s.Create(ctx, newJob("job-1", "user-1"))
	if err := s.Create(ctx, newJob("job-1", "user-1")); !errors.Is(err, ErrJobExists) {
		t.Fatalf("expected ErrJobExists, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	s, _ := setupStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestUpdate_NoChangeSkipsWrite(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	_ = s.Create(ctx, newJob("job-1", "user-1"))

	got, err := s.Update(ctx, "job-1", func(j *model.VideoJob) (bool, error) { return false, nil })
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Revision != 1 {
		t.Errorf("expected revision unchanged, got %d", got.Revision)
	}
}

func TestUpdate_ConcurrentFieldScopedWritesAllLand(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	_ = s.Create(ctx, newJob("job-1", "user-1"))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "job-1", func(j *model.VideoJob) (bool, error) {
				return j.ImageJobs[i].Complete("https://cdn/img.png"), nil
			})
			if err != nil {
				t.Errorf("Update %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, "job-1")
	counts := model.CountSubJobs(got.ImageJobs)
	if counts.Completed != 2 {
		t.Fatalf("expected both writes to land, got %+v", counts)
	}
	if got.Revision != 3 {
		t.Errorf("expected revision 3, got %d", got.Revision)
	}
}

func TestUpdate_ResolvedElementsAreNotOverwritten(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	_ = s.Create(ctx, newJob("job-1", "user-1"))

	_, _ = s.Update(ctx, "job-1", func(j *model.VideoJob) (bool, error) {
		return j.ImageJobs[0].Fail("nsfw"), nil
	})
	got, _ := s.Update(ctx, "job-1", func(j *model.VideoJob) (bool, error) {
		return j.ImageJobs[0].Complete("https://late"), nil
	})

	if got.ImageJobs[0].State != model.SubJobError || got.ImageJobs[0].ResultURL != nil {
		t.Errorf("expected element to stay in error, got %+v", got.ImageJobs[0])
	}
}

func TestListByUser_NewestFirst(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		j := newJob(id, "user-1")
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_ = s.Create(ctx, j)
	}
	_ = s.Create(ctx, newJob("other", "user-2"))

	jobs, err := s.ListByUser(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "new" || jobs[2].ID != "old" {
		t.Errorf("unexpected order: %s, %s, %s", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}
}

func TestAdvanceLock_Exclusive(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	release, ok, err := s.AcquireAdvanceLock(ctx, "job-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}

	if _, ok, _ := s.AcquireAdvanceLock(ctx, "job-1", time.Minute); ok {
		t.Fatal("expected second acquire to fail while held")
	}

	release()
	if mr.Exists(lockKey("job-1")) {
		t.Fatal("expected lock key removed on release")
	}

	if _, ok, _ := s.AcquireAdvanceLock(ctx, "job-1", time.Minute); !ok {
		t.Fatal("expected acquire after release to succeed")
	}
}

func TestAdvanceLock_ReleaseKeepsForeignLock(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	release, _, _ := s.AcquireAdvanceLock(ctx, "job-1", time.Second)
	mr.FastForward(2 * time.Second)

	if _, ok, _ := s.AcquireAdvanceLock(ctx, "job-1", time.Minute); !ok {
		t.Fatal("expected expired lock to be acquirable")
	}

	release()
	if !mr.Exists(lockKey("job-1")) {
		t.Fatal("stale release must not drop the new holder's lock")
	}
}
