package postgres

import (
	"testing"

	"github.com/xraph/mapsection/cache"
)

func TestKeyArgs(t *testing.T) {
	a := newKeyArgs(2)
	a.add(cache.Key{SubdivisionID: "subdiv_a", BlockX: 1, BlockY: -2, TargetIterations: 400})
	a.add(cache.Key{SubdivisionID: "subdiv_b", BlockX: 3, BlockY: 4, TargetIterations: 800})

	if len(a.subdivisions) != 2 || len(a.xs) != 2 || len(a.ys) != 2 || len(a.iterations) != 2 {
		t.Fatalf("arrays not parallel: %+v", a)
	}
	if a.subdivisions[1] != "subdiv_b" || a.xs[1] != 3 || a.ys[0] != -2 || a.iterations[1] != 800 {
		t.Errorf("unexpected contents: %+v", a)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_create_sections.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if len(data) == 0 {
		t.Error("migration file is empty")
	}
}
