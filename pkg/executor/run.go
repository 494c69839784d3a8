package executor

import (
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"time"

	"nereus/pkg/api"
	"nereus/pkg/events"
	"nereus/pkg/filetree"
	"nereus/pkg/store"
	"nereus/pkg/util/context"
	"nereus/pkg/util/linereader"

	"github.com/pkg/errors"
)

// waitDelay bounds the wait for the output pipe to close once the process was killed
const waitDelay = 5 * time.Second

func (e *exec) Run(ctx context.Context, job store.Job) <-chan events.Event {
	out := make(chan events.Event)
	ctx = context.WithJobID(ctx, job.ID)
	go e.run(ctx, job, out)
	return out
}

func (e *exec) run(ctx context.Context, job store.Job, out chan<- events.Event) {
	em := &emitter{ctx: ctx, out: out}
	defer close(out)
	defer em.emit(events.Finished())

	procCtx := ctx
	if e.conf.OnDisconnect == PolicyContinue {
		procCtx = context.Detach(ctx)
	}

	if err := e.transition(ctx, job, api.StatusStarted, ""); err != nil {
		ctx.Logger().Error(err)
		em.emit(events.Errorf("EXECUTION ERROR:", "%s", err))
		return
	}

	st := e.Script()
	if !st.Exists {
		msg := fmt.Sprintf("Script not found at %s", st.Path)
		e.fail(ctx, job, msg)
		em.emit(events.Errorf("ERROR:", "%s", msg))
		return
	}
	if !st.Executable {
		msg := fmt.Sprintf("Script is not executable: %s", st.Path)
		e.fail(ctx, job, msg)
		em.emit(events.Errorf("ERROR:", "%s", msg))
		return
	}

	em.emit(events.Log("Starting pipeline: %s %s %s", e.conf.Script, job.InputDir, job.OutputDir))
	code, err := e.execute(procCtx, job, em)
	switch {
	case err != nil && procCtx.Err() != nil:
		e.fail(ctx, job, "Process cancelled: caller disconnected")
	case err != nil:
		e.fail(ctx, job, fmt.Sprintf("Pipeline execution error: %s", err))
		em.emit(events.Errorf("EXECUTION ERROR:", "%s", err))
	case code != 0:
		msg := fmt.Sprintf("Process failed with return code: %d", code)
		e.fail(ctx, job, msg)
		em.emit(events.Log("%s", msg))
	default:
		em.emit(events.Log("Process completed successfully"))
		if err := e.complete(ctx, job, em); err != nil {
			e.fail(ctx, job, fmt.Sprintf("Pipeline execution error: %s", err))
			em.emit(events.Errorf("EXECUTION ERROR:", "%s", err))
		}
	}
}

// complete marks the job as completed and sends the result file tree
func (e *exec) complete(ctx context.Context, job store.Job, em *emitter) error {
	if err := e.transition(ctx, job, api.StatusCompleted, ""); err != nil {
		return err
	}
	ctx.Logger().Info("pipeline completed")
	tree, err := events.FileTree(filetree.Build(job.OutputDir))
	if err != nil {
		ctx.Logger().Errorf("cannot encode file tree: %s", err)
	} else {
		em.emit(tree)
	}
	em.emit(events.JobComplete(job.ID))
	return nil
}

// execute runs the pipeline process and streams its merged output.
// It returns the exit code of the process, or an error if it could not be run to its end.
func (e *exec) execute(ctx context.Context, job store.Job, em *emitter) (int, error) {
	cmd := osexec.CommandContext(ctx, e.conf.Shell, e.conf.Script, job.InputDir, job.OutputDir)
	cmd.Env = os.Environ()
	if e.conf.Dir != "" {
		cmd.Dir = e.conf.Dir
	}
	killGroup(cmd)
	// children that kept the output pipe open must not hold Wait forever
	cmd.WaitDelay = waitDelay
	ctx.Logger().Infof("starting command '%s'", cmd.String())

	// stdout and stderr share one pipe so lines keep their order
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, errors.Wrap(err, "cannot read stdout")
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return -1, errors.Wrap(err, "cannot start command")
	}
	ctx.Logger().Infof("started process with PID %d", cmd.Process.Pid)
	em.emit(events.Log("Process started with PID: %d", cmd.Process.Pid))

	readErr := e.stream(ctx, stdout, em)

	// cmd.Wait() should be called only after we finish reading from stdout
	werr := cmd.Wait()
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	if readErr != nil {
		return -1, errors.Wrap(readErr, "cannot capture process output")
	}
	if werr != nil {
		var exitErr *osexec.ExitError
		if errors.As(werr, &exitErr) {
			ctx.Logger().Infof("process completed with return code %d", exitErr.ExitCode())
			return exitErr.ExitCode(), nil
		}
		return -1, errors.Wrap(werr, "command failed")
	}
	ctx.Logger().Info("process completed with return code 0")
	return 0, nil
}

// stream emits each non-empty line of r, and a heartbeat whenever r stays silent for the heartbeat interval.
func (e *exec) stream(ctx context.Context, r io.Reader, em *emitter) error {
	lr := linereader.New(r)
	defer lr.Close()

	count := 0
	for {
		line, err := lr.Next(ctx, e.conf.HeartbeatInterval)
		switch {
		case err == linereader.ErrTimeout:
			ctx.Logger().Warnf("no output for %s, but process still running", e.conf.HeartbeatInterval)
			em.emit(events.Heartbeat())
			continue
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		count++
		ctx.Logger().Infof("pipeline output [%d]: %s", count, line)
		em.emit(events.Output(line))
	}
}
