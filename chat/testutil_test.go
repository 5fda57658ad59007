package chat

import (
	"log/slog"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"chatfm/config"
	"chatfm/db"
	"chatfm/realtime"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		RoutePrefix:     "/chat-fm",
		OpenAccess:      true,
		Versioning:      true,
		MessageVersions: 5,
	}
}

func newTestAPI(t *testing.T, cfg *config.Config) *API {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}

	database, err := db.InitDB(filepath.Join(t.TempDir(), "chatfm-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.CloseDB(database) })

	logger := slog.Default()
	return New(
		cfg,
		db.NewChannelRepo(database, logger),
		db.NewMessageRepo(database, logger),
		db.NewUserRepo(database, logger),
		realtime.NewHub(logger),
		logger,
	)
}
