package ledger

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"testing/fstest"
	"time"
)

func TestListMigrationFiles(t *testing.T) {
	f := fstest.MapFS{
		"README.md":              {Data: []byte("ignore")},
		"0002_indexes.sql":       {Data: []byte("--")},
		"0001_credit_ledger.sql": {Data: []byte("--")},
		"old/0000_legacy.sql":    {Data: []byte("--")},
	}

	got, err := listMigrationFiles(f)
	if err != nil {
		t.Fatalf("listMigrationFiles returned error: %v", err)
	}
	want := []string{"0001_credit_ledger.sql", "0002_indexes.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected migration list: got=%v want=%v", got, want)
	}
}

func TestPostgresLedgerIntegration(t *testing.T) {
	dsn := os.Getenv("REELFORGE_POSTGRES_DSN_INTEGRATION")
	if dsn == "" {
		t.Skip("set REELFORGE_POSTGRES_DSN_INTEGRATION to run Postgres integration tests")
	}
	ctx := context.Background()
	l, err := NewPostgresLedger(ctx, dsn)
	if err != nil {
		t.Fatalf("new postgres ledger: %v", err)
	}
	defer l.Close()

	suffix := time.Now().UTC().Format("20060102150405.000000")
	user := "user-int-" + suffix
	job := "job-int-" + suffix

	if _, err := l.Grant(ctx, user, 30, "starter:"+user, "integration"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := l.Charge(ctx, user, 50, job+"-big", "too big"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	remaining, err := l.Charge(ctx, user, 20, job, "short")
	if err != nil || remaining != 10 {
		t.Fatalf("charge: remaining=%d err=%v", remaining, err)
	}
	ok, bal, err := l.Refund(ctx, user, 20, job, "failed")
	if err != nil || !ok || bal != 30 {
		t.Fatalf("refund: ok=%v bal=%d err=%v", ok, bal, err)
	}
	ok, bal, err = l.Refund(ctx, user, 20, job, "failed again")
	if err != nil || ok || bal != 30 {
		t.Fatalf("second refund must be a no-op: ok=%v bal=%d err=%v", ok, bal, err)
	}
}
