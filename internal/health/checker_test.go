package health

import (
	"context"
	"testing"

	"github.com/reloop-eco/reloop/internal/app/catalog"
	"github.com/reloop-eco/reloop/internal/infra/sqlite"
)

func TestChecker_AllHealthy(t *testing.T) {
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	c := NewChecker(db, dir, catalog.Default())
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("len = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %s unhealthy: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() = false, want true")
	}
}

func TestChecker_MissingDataDir(t *testing.T) {
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	c := NewChecker(db, dir+"/nope", catalog.Default())
	c.runAll(context.Background())

	if c.IsHealthy() {
		t.Error("IsHealthy() = true with missing data dir")
	}
}
