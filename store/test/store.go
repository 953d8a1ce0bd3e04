package test

import (
	"context"
	"os"
	"testing"

	"github.com/hrygo/familycal/internal/profile"
	"github.com/hrygo/familycal/store"
	"github.com/hrygo/familycal/store/db"
)

// NewTestingStore opens a migrated store for the driver selected by DRIVER.
// SQLite runs against a temp directory; PostgreSQL requires POSTGRES_TEST_DSN.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	profile := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	t.Cleanup(func() {
		dbDriver.Close()
	})

	s := store.New(dbDriver, profile)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	if getDriverFromEnv() == "postgres" {
		resetPostgres(ctx, t, s)
	}
	return s
}

func getTestingProfile(t *testing.T) *profile.Profile {
	t.Helper()
	mode := "dev"
	driver := getDriverFromEnv()
	dir := t.TempDir()

	p := &profile.Profile{
		Mode:     mode,
		Data:     dir,
		Driver:   driver,
		Timezone: "UTC",
	}
	if driver == "postgres" {
		dsn := os.Getenv("POSTGRES_TEST_DSN")
		if dsn == "" {
			t.Skip("POSTGRES_TEST_DSN not set")
		}
		p.DSN = dsn
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid testing profile: %v", err)
	}
	return p
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}

// resetPostgres empties the shared database so each test starts clean.
func resetPostgres(ctx context.Context, t *testing.T, s *store.Store) {
	t.Helper()
	if _, err := s.GetDriver().GetDB().ExecContext(ctx,
		"TRUNCATE conversation_message, conversation, event RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("failed to reset postgres: %v", err)
	}
}
