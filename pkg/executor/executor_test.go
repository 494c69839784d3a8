package executor

import (
	gocontext "context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"nereus/pkg/api"
	"nereus/pkg/broker"
	"nereus/pkg/events"
	"nereus/pkg/store"
	"nereus/pkg/util/context"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []broker.EventType
}

func (r *recorder) Publish(ctx context.Context, evt broker.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt.Type)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []broker.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broker.EventType{}, r.events...)
}

type fixture struct {
	store  store.Store
	job    store.Job
	conf   Config
	broker *recorder
}

func newFixture(t *testing.T, script string, mode os.FileMode) fixture {
	dir := t.TempDir()
	s, err := store.NewFSStore(filepath.Join(dir, "work"))
	require.NoError(t, err)
	job, err := s.CreateJob(context.Background())
	require.NoError(t, err)

	p := filepath.Join(dir, "run_pipeline.sh")
	if script != "" {
		require.NoError(t, os.WriteFile(p, []byte(script), mode))
	}
	return fixture{
		store: s,
		job:   job,
		conf: Config{
			Script:            p,
			Shell:             "sh",
			Dir:               dir,
			HeartbeatInterval: time.Minute,
			OnDisconnect:      PolicyContinue,
		},
		broker: &recorder{},
	}
}

func (f fixture) executor(t *testing.T) Executor {
	e, err := New(f.conf, f.store, f.broker)
	require.NoError(t, err)
	return e
}

func (f fixture) status(t *testing.T) api.Status {
	s, err := f.store.GetStatus(context.Background(), f.job.ID)
	require.NoError(t, err)
	return s
}

func collect(ch <-chan events.Event) []events.Event {
	var res []events.Event
	for e := range ch {
		res = append(res, e)
	}
	return res
}

func texts(evts []events.Event) []string {
	var res []string
	for _, e := range evts {
		res = append(res, e.Text)
	}
	return res
}

func count(evts []events.Event, kind events.Kind) int {
	n := 0
	for _, e := range evts {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestRunSuccess(t *testing.T) {
	f := newFixture(t, `echo "Feature extraction"
echo "warning on stderr" >&2

echo mesh > "$2/model.obj"
`, 0755)

	evts := collect(f.executor(t).Run(context.Background(), f.job))
	txt := texts(evts)

	require.True(t, len(evts) >= 6, txt)
	assert.True(t, strings.HasPrefix(txt[0], "Starting pipeline: "))
	assert.True(t, strings.HasPrefix(txt[1], "Process started with PID: "))
	assert.Contains(t, txt, "Feature extraction")
	assert.Contains(t, txt, "warning on stderr")
	assert.Contains(t, txt, "Process completed successfully")

	// FILETREE, JOB_COMPLETE then the sentinel, exactly once each
	n := len(evts)
	assert.Equal(t, 1, count(evts, events.KindFileTree))
	assert.Equal(t, 1, count(evts, events.KindComplete))
	assert.Equal(t, 1, count(evts, events.KindFinished))
	assert.Equal(t, events.KindFileTree, evts[n-3].Kind)
	assert.Equal(t, events.JobComplete(f.job.ID), evts[n-2])
	assert.Equal(t, events.Finished(), evts[n-1])

	tree, err := evts[n-3].Tree()
	require.NoError(t, err)
	var names []string
	tree.Walk(func(n api.FileNode) { names = append(names, n.Path) })
	assert.Contains(t, names, "model.obj")

	assert.Equal(t, api.StatusCompleted, f.status(t))
	assert.Equal(t, []broker.EventType{broker.TypeStarted, broker.TypeCompleted}, f.broker.types())
}

func TestRunReservedOutput(t *testing.T) {
	f := newFixture(t, `echo "PIPELINE:FINISHED"
echo "FILETREE:{}"
echo "JOB_COMPLETE:other"
`, 0755)

	evts := collect(f.executor(t).Run(context.Background(), f.job))
	txt := texts(evts)

	assert.Contains(t, txt, "OUTPUT: PIPELINE:FINISHED")
	assert.Contains(t, txt, "OUTPUT: FILETREE:{}")
	assert.Contains(t, txt, "OUTPUT: JOB_COMPLETE:other")

	// what a caller parses off the wire
	var parsed []events.Event
	for _, s := range txt {
		parsed = append(parsed, events.Parse(s))
	}
	assert.Equal(t, 1, count(parsed, events.KindFinished))
	assert.Equal(t, 1, count(parsed, events.KindFileTree))
	assert.Equal(t, 1, count(parsed, events.KindComplete))
	assert.Equal(t, events.Finished(), parsed[len(parsed)-1])
	assert.Equal(t, events.JobComplete(f.job.ID), parsed[len(parsed)-2])
}

func TestRunFailure(t *testing.T) {
	f := newFixture(t, `echo "partial result" > "$2/partial.txt"
echo boom
exit 3
`, 0755)

	evts := collect(f.executor(t).Run(context.Background(), f.job))
	txt := texts(evts)

	assert.Contains(t, txt, "boom")
	assert.Contains(t, txt, "Process failed with return code: 3")
	assert.Equal(t, 0, count(evts, events.KindFileTree))
	assert.Equal(t, 0, count(evts, events.KindComplete))
	assert.Equal(t, events.Finished(), evts[len(evts)-1])

	assert.DirExists(t, f.job.OutputDir)
	assert.FileExists(t, filepath.Join(f.job.OutputDir, "partial.txt"))
	assert.FileExists(t, filepath.Join(f.job.OutputDir, store.MarkerFailed))
	assert.Equal(t, api.StatusFailed, f.status(t))
	assert.Equal(t, []broker.EventType{broker.TypeStarted, broker.TypeFailed}, f.broker.types())
}

func TestRunScriptMissing(t *testing.T) {
	f := newFixture(t, "", 0)

	evts := collect(f.executor(t).Run(context.Background(), f.job))
	require.Len(t, evts, 2)
	assert.Equal(t, events.KindError, evts[0].Kind)
	assert.Equal(t, "ERROR: Script not found at "+f.conf.Script, evts[0].Text)
	assert.Equal(t, events.Finished(), evts[1])

	// started first, then failed
	assert.FileExists(t, filepath.Join(f.job.OutputDir, store.MarkerStarted))
	assert.Equal(t, api.StatusFailed, f.status(t))
}

func TestRunScriptNotExecutable(t *testing.T) {
	f := newFixture(t, "echo hello\n", 0644)

	evts := collect(f.executor(t).Run(context.Background(), f.job))
	require.Len(t, evts, 2)
	assert.Equal(t, "ERROR: Script is not executable: "+f.conf.Script, evts[0].Text)
	assert.Equal(t, api.StatusFailed, f.status(t))
}

func TestRunSpawnError(t *testing.T) {
	f := newFixture(t, "echo hello\n", 0755)
	f.conf.Shell = filepath.Join(t.TempDir(), "no-such-shell")

	evts := collect(f.executor(t).Run(context.Background(), f.job))
	var errs []events.Event
	for _, e := range evts {
		if e.Kind == events.KindError {
			errs = append(errs, e)
		}
	}
	require.Len(t, errs, 1)
	assert.True(t, strings.HasPrefix(errs[0].Text, "EXECUTION ERROR: "))
	assert.Equal(t, events.Finished(), evts[len(evts)-1])
	assert.Equal(t, api.StatusFailed, f.status(t))
}

func TestRunHeartbeat(t *testing.T) {
	f := newFixture(t, "sleep 1\necho done\n", 0755)
	f.conf.HeartbeatInterval = 100 * time.Millisecond

	evts := collect(f.executor(t).Run(context.Background(), f.job))
	assert.True(t, count(evts, events.KindHeartbeat) >= 1, texts(evts))
	assert.Contains(t, texts(evts), events.HeartbeatText)
	assert.Contains(t, texts(evts), "done")
	assert.Equal(t, api.StatusCompleted, f.status(t))
}

// startAndDisconnect reads events until the process is started then cancels the caller context.
// It returns once the run is over.
func startAndDisconnect(t *testing.T, e Executor, job store.Job) {
	gctx, cancel := gocontext.WithCancel(gocontext.Background())
	defer cancel()
	ch := e.Run(context.FromContext(gctx), job)
	for evt := range ch {
		if strings.HasPrefix(evt.Text, "Process started with PID") {
			cancel()
			break
		}
	}
	// the run goes on without the caller until the channel is closed
	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestDisconnectPolicy(t *testing.T) {
	script := `sleep 1
echo late > "$2/result.txt"
`

	t.Run("continue", func(t *testing.T) {
		f := newFixture(t, script, 0755)
		startAndDisconnect(t, f.executor(t), f.job)

		assert.Equal(t, api.StatusCompleted, f.status(t))
		assert.FileExists(t, filepath.Join(f.job.OutputDir, "result.txt"))
	})

	t.Run("kill", func(t *testing.T) {
		f := newFixture(t, script, 0755)
		f.conf.OnDisconnect = PolicyKill
		startAndDisconnect(t, f.executor(t), f.job)

		assert.Equal(t, api.StatusFailed, f.status(t))
		assert.NoFileExists(t, filepath.Join(f.job.OutputDir, "result.txt"))
		rec, err := f.store.GetRecord(context.Background(), f.job.ID)
		require.NoError(t, err)
		assert.Equal(t, "Process cancelled: caller disconnected", rec.Message)
	})

	t.Run("kill stops child processes", func(t *testing.T) {
		f := newFixture(t, `sh -c 'sleep 1; echo late > "$1/orphan.txt"' _ "$2"
echo done
`, 0755)
		f.conf.OnDisconnect = PolicyKill
		startAndDisconnect(t, f.executor(t), f.job)
		assert.Equal(t, api.StatusFailed, f.status(t))

		// the child would have written by now
		time.Sleep(2 * time.Second)
		assert.NoFileExists(t, filepath.Join(f.job.OutputDir, "orphan.txt"))
	})
}

func TestScript(t *testing.T) {
	f := newFixture(t, "echo hello\n", 0755)
	st := f.executor(t).Script()
	assert.True(t, st.Exists)
	assert.True(t, st.Executable)

	f.conf.Script = filepath.Join(t.TempDir(), "missing.sh")
	st = f.executor(t).Script()
	assert.False(t, st.Exists)
	assert.False(t, st.Executable)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.OnDisconnect = "detach"
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Script = ""
	assert.Error(t, c.Validate())
}
