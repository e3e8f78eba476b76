package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 12000, cfg.Pipeline.MaxSourceBytes)
	assert.Equal(t, 8000, cfg.Pipeline.MaxChunkBytes)
	assert.Equal(t, time.Second, cfg.Pipeline.ChunkDelay)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.StageTimeout)
	assert.Equal(t, 1, cfg.Pipeline.BatchWorkers)
	assert.Equal(t, "bleve", cfg.Search.Backend)
	assert.Equal(t, 3, cfg.Search.TopN)
	assert.Equal(t, 10, cfg.YouTube.MaxPlaylistVideos)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
pipeline:
  chunk_delay: 250ms
  batch_workers: 4
storage:
  type: s3
  bucket: transcripts
`))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.ChunkDelay)
	assert.Equal(t, 4, cfg.Pipeline.BatchWorkers)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "transcripts", cfg.Storage.Bucket)
}

func TestLoadSecretFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, "search:\n  backend: elastic\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.backend")
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{"sqlite path", DatabaseConfig{Driver: "sqlite", Path: "./x.db"}, "./x.db"},
		{"postgres url", DatabaseConfig{Driver: "postgres", URL: "postgres://u@h/db"}, "postgres://u@h/db"},
		{
			"postgres fields",
			DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "c"},
			"host=db port=5432 user=u password=p dbname=c sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
