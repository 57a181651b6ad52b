package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard/config"
)

func TestRunWebServerFailsWithoutSecrets(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TASKBOARD_CONFIG", "")
	t.Setenv("TASKBOARD_LOG_FOLDER", dir)
	t.Setenv("TASKBOARD_DB_TYPE", "sqlite")
	t.Setenv("TASKBOARD_DB_PATH", filepath.Join(dir, "taskboard.db"))
	for _, key := range []string{"ACCESS_TOKEN_SECRET", "REFRESH_TOKEN_SECRET", "COOKIE_SECRET", "PORT", "ALLOWED_ORIGIN"} {
		t.Setenv("TASKBOARD_"+key, "")
	}

	err := runWebServer()
	require.ErrorIs(t, err, config.ErrMissingConfig)
}
