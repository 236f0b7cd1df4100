package backend

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestDB opens a fresh database with an AgentEntry table.
func createTestDB(t *testing.T) (*SQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.db.Exec(`
		CREATE TABLE AgentEntry (AgentId INTEGER, Prototype TEXT, EnterTime INTEGER);
		INSERT INTO AgentEntry VALUES (10, 'Reactor', 0);
		INSERT INTO AgentEntry VALUES (11, 'Sink', 3);
		INSERT INTO AgentEntry VALUES (12, 'Reactor', 5);
	`)
	require.NoError(t, err)
	return s, path
}
