package thunder_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/thunder"
	"github.com/aretw0/thunder/pkg/adapters/memory"
	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/filetree"
	"github.com/aretw0/thunder/pkg/mount"
	"github.com/aretw0/thunder/pkg/parser"
	"github.com/aretw0/thunder/pkg/ports"
	"github.com/aretw0/thunder/pkg/prompts"
	"github.com/aretw0/thunder/pkg/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appReply = `Here is your app.
<boltArtifact id="todo" title="Todo App">
<boltAction type="file" filePath="src/App.tsx">export default function App() { return null }</boltAction>
<boltAction type="file" filePath="src/Todo.tsx">export function Todo() {}</boltAction>
<boltAction type="shell">npm run dev</boltAction>
</boltArtifact>`

type captureOutbox struct {
	mu   sync.Mutex
	cmds []sandbox.MountCommand
}

func (o *captureOutbox) Submit(cmd sandbox.MountCommand) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cmds = append(o.cmds, cmd)
	return true
}

func TestBuilder_Start(t *testing.T) {
	gen := memory.NewGenerator("React.", appReply)
	ob := &captureOutbox{}
	b, err := thunder.New(thunder.WithGenerator(gen), thunder.WithOutbox(ob))
	require.NoError(t, err)

	s, err := b.Start(context.Background(), "a todo app")
	require.NoError(t, err)

	starter := len(parser.Parse(prompts.ReactStarter))
	assert.Equal(t, domain.StackReact, s.Stack)
	assert.Equal(t, domain.SessionIdle, s.Status)
	require.Len(t, s.Steps, starter+3)
	for i, step := range s.Steps {
		assert.Equal(t, i+1, step.ID)
		assert.Equal(t, domain.StepCompleted, step.Status, step.Title)
	}
	assert.Equal(t, "Todo App", s.Steps[starter].Description)

	_, ok := filetree.Find(s.Tree, "src/Todo.tsx")
	assert.True(t, ok)
	_, ok = filetree.Find(s.Tree, "package.json")
	assert.True(t, ok, "starter files are part of the tree")

	// Template prompts, user prompt, assistant reply.
	require.Len(t, s.Messages, 4)
	assert.Equal(t, prompts.Base, s.Messages[0].Content)
	assert.Equal(t, "a todo app", s.Messages[2].Content)
	assert.Equal(t, domain.RoleAssistant, s.Messages[3].Role)

	calls := gen.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, prompts.Classify, calls[0].SystemPrompt)
	assert.Equal(t, prompts.System(), calls[1].SystemPrompt)
	assert.Len(t, calls[1].History, 3)

	assert.Len(t, ob.cmds, 2, "one mount for the starter, one for the reply")

	stored, err := b.Session(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Steps, stored.Steps)
}

func TestBuilder_TemplateNotFound(t *testing.T) {
	b, err := thunder.New(thunder.WithGenerator(memory.NewGenerator("angular")))
	require.NoError(t, err)

	_, err = b.Start(context.Background(), "an angular app")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	ids, err := b.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids, "no session without a template")
}

func TestBuilder_NoGenerator(t *testing.T) {
	b, err := thunder.New()
	require.NoError(t, err)

	_, err = b.Start(context.Background(), "x")
	assert.ErrorIs(t, err, thunder.ErrNoGenerator)
	_, err = b.Chat(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "x"}})
	assert.ErrorIs(t, err, thunder.ErrNoGenerator)
}

func TestBuilder_ModelFailureMarksSession(t *testing.T) {
	// Only the classification reply is scripted.
	b, err := thunder.New(thunder.WithGenerator(memory.NewGenerator("node")))
	require.NoError(t, err)

	s, err := b.Start(context.Background(), "an api")
	assert.ErrorIs(t, err, memory.ErrScriptExhausted)
	require.NotNil(t, s)
	assert.Equal(t, domain.SessionFailed, s.Status)
	assert.NotEmpty(t, s.LastError)
	assert.NotEmpty(t, s.Tree, "starter files were reconciled before the call")
}

func TestBuilder_Continue(t *testing.T) {
	gen := memory.NewGenerator("node",
		`<boltArtifact id="a" title="A"><boltAction type="file" filePath="index.js">v1</boltAction></boltArtifact>`,
		`<boltArtifact id="b" title="B"><boltAction type="file" filePath="index.js">v2</boltAction><boltAction type="file" filePath="lib.js">lib</boltAction></boltArtifact>`,
	)
	b, err := thunder.New(thunder.WithGenerator(gen))
	require.NoError(t, err)
	ctx := context.Background()

	s, err := b.Start(ctx, "an api")
	require.NoError(t, err)
	before := len(s.Steps)

	s, err = b.Continue(ctx, s.ID, "add a lib")
	require.NoError(t, err)

	require.Len(t, s.Steps, before+2)
	assert.Equal(t, before+1, s.Steps[before].ID)
	node, ok := filetree.Find(s.Tree, "index.js")
	require.True(t, ok)
	assert.Equal(t, "v2", node.Content)

	last := gen.Calls()[2]
	assert.Equal(t, "add a lib", last.History[len(last.History)-1].Content)

	_, err = b.Continue(ctx, "missing", "x")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestBuilder_RejectsConcurrentGeneration(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var first sync.Once

	gen := ports.GeneratorFunc(func(ctx context.Context, system string, _ []domain.Message) (string, error) {
		if system == prompts.Classify {
			return "node", nil
		}
		first.Do(func() { started <- struct{}{} })
		select {
		case <-release:
			return "", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	b, err := thunder.New(thunder.WithGenerator(gen))
	require.NoError(t, err)
	ctx := context.Background()

	s, err := b.Ingest(ctx, mustCreate(t, b), "")
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := b.Continue(ctx, s.ID, "first")
		errs <- err
	}()
	<-started

	_, err = b.Continue(ctx, s.ID, "second")
	assert.ErrorIs(t, err, domain.ErrGenerationInProgress)

	assert.True(t, b.Cancel(s.ID))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancel did not abort the call")
	}
	assert.False(t, b.Cancel(s.ID))

	stored, err := b.Session(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFailed, stored.Status)
	close(release)
}

func TestBuilder_CancelledCallKeepsSessionReserved(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls int
	var mu sync.Mutex

	// The first call ignores cancellation until released, so it unwinds late.
	gen := ports.GeneratorFunc(func(ctx context.Context, _ string, _ []domain.Message) (string, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			started <- struct{}{}
			<-release
			return "", ctx.Err()
		}
		return appReply, nil
	})
	b, err := thunder.New(thunder.WithGenerator(gen))
	require.NoError(t, err)
	ctx := context.Background()
	id := mustCreate(t, b)

	errs := make(chan error, 1)
	go func() {
		_, err := b.Continue(ctx, id, "first")
		errs <- err
	}()
	<-started

	require.True(t, b.Cancel(id))
	_, err = b.Continue(ctx, id, "second")
	assert.ErrorIs(t, err, domain.ErrGenerationInProgress, "cancelled call still owns the session")

	close(release)
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("first call did not return")
	}

	s, err := b.Continue(ctx, id, "second")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionIdle, s.Status)

	stored, err := b.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionIdle, stored.Status)
	assert.Empty(t, stored.LastError)
	assert.Len(t, stored.Steps, 3)
}

// mustCreate stores an empty session and returns its id.
func mustCreate(t *testing.T, b *thunder.Builder) string {
	t.Helper()
	s, err := b.Sessions().LoadOrCreate(context.Background(), "s-"+strings.ReplaceAll(t.Name(), "/", "-"))
	require.NoError(t, err)
	return s.ID
}

func TestBuilder_IngestAndQueries(t *testing.T) {
	ob := &captureOutbox{}
	b, err := thunder.New(thunder.WithOutbox(ob), thunder.WithMountOptions(mount.WithDefaultPackageJSON()))
	require.NoError(t, err)
	ctx := context.Background()
	id := mustCreate(t, b)

	s, err := b.Ingest(ctx, id, appReply)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 3)
	assert.Empty(t, s.Messages)

	files, err := b.Files(ctx, id, "todo")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "/src/Todo.tsx", files[0].Path)

	d, err := b.Mount(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, d["package.json"].File, "default manifest injected")

	require.NoError(t, b.Remount(ctx, id))
	assert.Len(t, ob.cmds, 2)

	require.NoError(t, b.Delete(ctx, id))
	_, err = b.Session(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type echoSpawner struct{ got []string }

func (e *echoSpawner) Spawn(_ context.Context, command string, args ...string) (*sandbox.Process, error) {
	e.got = append([]string{command}, args...)
	return sandbox.NewProcess(strings.NewReader("ok\n"), func() (int, error) { return 0, nil }), nil
}

func TestBuilder_Exec(t *testing.T) {
	sp := &echoSpawner{}
	b, err := thunder.New(thunder.WithSpawner(func(string) (sandbox.Spawner, error) { return sp, nil }))
	require.NoError(t, err)
	ctx := context.Background()
	id := mustCreate(t, b)

	var out bytes.Buffer
	code, err := b.Exec(ctx, id, "npm install", &out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"npm", "install"}, sp.got)
	assert.Equal(t, "ok\n", out.String())

	s, err := b.Session(ctx, id)
	require.NoError(t, err)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, "Terminal command: npm install", s.Messages[0].Content)

	_, err = b.RecordCommand(ctx, id, "  ")
	assert.Error(t, err)
}

func TestBuilder_ExecWithoutSpawnerLeavesHistory(t *testing.T) {
	boom := errors.New("sandbox gone")
	b, err := thunder.New(thunder.WithSpawner(func(string) (sandbox.Spawner, error) { return nil, boom }))
	require.NoError(t, err)
	ctx := context.Background()
	id := mustCreate(t, b)

	_, err = b.Exec(ctx, id, "npm install", nil)
	assert.ErrorIs(t, err, boom)

	s, err := b.Session(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, s.Messages)
}

func TestBuilder_Chat(t *testing.T) {
	gen := memory.NewGenerator("hello")
	b, err := thunder.New(thunder.WithGenerator(gen))
	require.NoError(t, err)

	reply, err := b.Chat(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
	assert.Equal(t, prompts.System(), gen.Calls()[0].SystemPrompt)

	_, err = b.Chat(context.Background(), nil)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, thunder.ErrNoGenerator))
}
