package migrate

import (
	"testing"

	"cleanflow/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := Migrate(conn); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var version int
	if err := conn.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	ms, err := load()
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) == 0 {
		t.Fatal("no embedded migrations")
	}
	if want := ms[len(ms)-1].version; version != want {
		t.Fatalf("version = %d, want %d", version, want)
	}
}

func TestParseVersion(t *testing.T) {
	cases := []struct {
		name    string
		version int
		ok      bool
	}{
		{"0001_init.sql", 1, true},
		{"0012_add_index.sql", 12, true},
		{"init.sql", 0, false},
		{"x_init.sql", 0, false},
		{"0000_zero.sql", 0, false},
	}
	for _, tc := range cases {
		v, err := parseVersion(tc.name)
		if tc.ok != (err == nil) {
			t.Fatalf("%s: err = %v", tc.name, err)
		}
		if tc.ok && v != tc.version {
			t.Fatalf("%s: version = %d, want %d", tc.name, v, tc.version)
		}
	}
}
