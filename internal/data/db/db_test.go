package db

import (
	"testing"

	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

func TestDialectorSelection(t *testing.T) {
	cases := []struct {
		name   string
		cfg    Config
		driver string
	}{
		{"url wins", Config{URL: "postgres://u:p@db:5432/cv", SQLitePath: "x.db"}, DriverPostgres},
		{"sqlite url", Config{URL: "sqlite://file::memory:"}, DriverSQLite},
		{"discrete postgres", Config{Host: "db", User: "u", Name: "cv"}, DriverPostgres},
		{"sqlite fallback", Config{}, DriverSQLite},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := dialectorFor(tc.cfg)
			if got != tc.driver {
				t.Fatalf("driver: got %s want %s", got, tc.driver)
			}
		})
	}
}

func TestPostgresDSNDefaults(t *testing.T) {
	got := PostgresDSN(Config{Host: "db", User: "u", Password: "p", Name: "cv"})
	want := "postgres://u:p@db:5432/cv?sslmode=disable"
	if got != want {
		t.Fatalf("dsn: got %q want %q", got, want)
	}
}

func TestSQLiteServiceMigrates(t *testing.T) {
	svc, err := New(Config{URL: "sqlite://file:dbtest?mode=memory&cache=shared"}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()
	if svc.Driver() != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %s", svc.Driver())
	}
	if err := svc.AutoMigrateAll(); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	if !svc.DB().Migrator().HasTable("interviews_session") {
		t.Fatalf("expected interviews_session table")
	}
}
