package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/thunder/internal/config"
	"github.com/aretw0/thunder/internal/logging"
	"github.com/aretw0/thunder/pkg/adapters/memory"
	"github.com/aretw0/thunder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reply = `<boltArtifact id="a" title="App">
<boltAction type="file" filePath="src/server.js">console.log("up")</boltAction>
</boltArtifact>`

func TestApp_GenerateWritesFiles(t *testing.T) {
	cfg := config.Default()
	cfg.Sandbox.Dir = t.TempDir()
	cfg.Sandbox.CommandsFile = filepath.Join(t.TempDir(), "missing.yaml")

	app, err := NewApp(cfg, logging.NewNop(), WithGenerator(memory.NewGenerator("node", reply)))
	require.NoError(t, err)
	defer app.Close()

	s, err := app.Generate(context.Background(), "", "a tiny server")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionIdle, s.Status)

	data, err := os.ReadFile(filepath.Join(cfg.Sandbox.Dir, s.ID, "src", "server.js"))
	require.NoError(t, err)
	assert.Equal(t, `console.log("up")`, string(data))

	_, err = os.Stat(filepath.Join(cfg.Sandbox.Dir, s.ID, "package.json"))
	assert.NoError(t, err)
}

func TestApp_MaterializeWithoutSandbox(t *testing.T) {
	app, err := NewApp(config.Default(), logging.NewNop(), WithGenerator(memory.NewGenerator("node", reply)))
	require.NoError(t, err)
	defer app.Close()

	s, err := app.Generate(context.Background(), "", "a tiny server")
	require.NoError(t, err)
	assert.ErrorIs(t, app.Materialize(context.Background(), s.ID), ErrNoWorkspace)
}

func TestApp_HandlerServesMetrics(t *testing.T) {
	app, err := NewApp(config.Default(), logging.NewNop(), WithGenerator(memory.NewGenerator("node", reply)))
	require.NoError(t, err)
	defer app.Close()

	h, err := app.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(`{"prompt":"node app"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "thunder_steps_applied_total")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	key := strings.Repeat("ab", 32)

	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"memory", config.StoreConfig{Kind: config.StoreMemory}},
		{"file", config.StoreConfig{Kind: config.StoreFile, Dir: t.TempDir()}},
		{"sqlite", config.StoreConfig{Kind: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "s.db")}},
		{"encrypted file", config.StoreConfig{Kind: config.StoreFile, Dir: t.TempDir(), EncryptionKey: key, Redact: []string{"hunter2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, locker, closer, err := OpenStore(tt.cfg)
			require.NoError(t, err)
			defer closer.Close()
			assert.Nil(t, locker)

			s := domain.NewSession("x")
			s.Prompt = "password hunter2"
			require.NoError(t, store.Save(ctx, s))
			loaded, err := store.Load(ctx, "x")
			require.NoError(t, err)
			if len(tt.cfg.Redact) > 0 {
				assert.Equal(t, "password ***", loaded.Prompt)
			} else {
				assert.Equal(t, s.Prompt, loaded.Prompt)
			}
		})
	}

	_, _, _, err := OpenStore(config.StoreConfig{Kind: "etcd"})
	assert.Error(t, err)
}

func TestParseText(t *testing.T) {
	res := ParseText(context.Background(), reply+`<boltAction type="file">no path</boltAction>`, false)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, domain.StepCompleted, res.Steps[0].Status)
	assert.True(t, res.Mount["src"].IsDir())

	var buf bytes.Buffer
	require.NoError(t, res.WriteJSON(&buf, FormatSteps))
	var steps []domain.Step
	require.NoError(t, json.Unmarshal(buf.Bytes(), &steps))
	assert.Len(t, steps, 1)

	assert.Error(t, res.WriteJSON(&buf, "xml"))
}
