package storage

import (
	"strings"
	"testing"

	"github.com/ryanbastic/go-placebot/internal/user"
)

func TestMigrations_AreIdempotent(t *testing.T) {
	for name, set := range map[string][]string{"postgres": postgresMigrations, "sqlite": sqliteMigrations} {
		for i, ddl := range set {
			if !strings.Contains(ddl, "IF NOT EXISTS") {
				t.Errorf("%s migration %d is not idempotent", name, i)
			}
		}
	}
}

func TestMigrations_SameTables(t *testing.T) {
	if len(postgresMigrations) != len(sqliteMigrations) {
		t.Fatalf("postgres has %d migrations, sqlite %d", len(postgresMigrations), len(sqliteMigrations))
	}
	for _, table := range []string{"users", "canvases", "santa_cohorts", "santa_retrievals"} {
		for name, set := range map[string][]string{"postgres": postgresMigrations, "sqlite": sqliteMigrations} {
			found := false
			for _, ddl := range set {
				if strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table+" ") {
					found = true
				}
			}
			if !found {
				t.Errorf("%s migrations do not create %s", name, table)
			}
		}
	}
}

func TestCounterColumn(t *testing.T) {
	for _, c := range []string{"tiles_count", "points", "gems"} {
		if _, err := counterColumn(user.Counter(c)); err != nil {
			t.Errorf("counterColumn(%q): %v", c, err)
		}
	}
	if _, err := counterColumn(user.Counter("gems; DROP TABLE users")); err == nil {
		t.Error("expected error for unknown counter")
	}
}
