package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/simctl/internal/action"
	"github.com/roach88/simctl/internal/backend"
	"github.com/roach88/simctl/internal/executor"
	"github.com/roach88/simctl/internal/message"
	"github.com/roach88/simctl/internal/session"
)

// maxRequestBytes bounds one request line on stdin.
const maxRequestBytes = 4 << 20

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Workers  int
}

// request is one line of input.
type request struct {
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve action requests from stdin",
		Long: `Run one session and dispatch action requests read from stdin.

Each input line is a request {"action": "<name>", "args": {...}}. Requests
are dispatched concurrently in arrival order; every envelope the session
sends is written to stdout as one JSON line. Request errors are reported on
stderr and do not stop the session.

At end of input a parked pause is released and in-flight actions are
awaited before the session closes.

Example:
  echo '{"action":"echo","args":{"s":"hi"}}' | simctl run
  simctl run --db ./sim.db --workers 8 < requests.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database backing table data and table names")
	cmd.Flags().IntVar(&opts.Workers, "workers", executor.DefaultWorkers, "worker pool size for table queries")

	return cmd
}

func runSession(opts *RunOptions, cmd *cobra.Command) error {
	if opts.Workers < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --workers %d: must be at least 1", opts.Workers))
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
	}

	cfg := session.Config{Workers: opts.Workers, Logger: logger}
	if opts.Database != "" {
		src, files, err := openBackends(opts.Database, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer closeBackend(src, logger)
		defer closeBackend(files, logger)
		cfg.Source = src
		cfg.Files = files
	}

	d, err := action.NewDefault(action.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load actions", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	s := session.New(cfg)
	s.Start(ctx)
	logger.Debug("session started", "workers", opts.Workers, "db", opts.Database)

	writeDone := make(chan error, 1)
	go func() { writeDone <- writeEnvelopes(s.Queue, cmd.OutOrStdout()) }()

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	report := func(line int, code, msg string) {
		failed.Add(1)
		_ = formatter.Error(code, msg, map[string]int{"line": line})
	}

	lines, scanErr := scanRequests(ctx, cmd.InOrStdin())
read:
	for {
		var in inputLine
		select {
		case next, ok := <-lines:
			if !ok {
				break read
			}
			in = next
		case <-ctx.Done():
			break read
		}

		var req request
		if err := json.Unmarshal(in.text, &req); err != nil {
			report(in.line, CodeBadRequest, fmt.Sprintf("invalid request: %v", err))
			continue
		}
		if req.Action == "" {
			report(in.line, CodeBadRequest, "invalid request: action is required")
			continue
		}

		unit, err := d.Invoke(ctx, s, req.Action, req.Args)
		if err != nil {
			report(in.line, errorCode(err), err.Error())
			continue
		}

		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			if _, err := unit.Wait(ctx); err != nil && ctx.Err() == nil {
				report(line, errorCode(err), fmt.Sprintf("%s: %v", unit.Name(), err))
			}
		}(in.line)
	}

	// Release a parked pause so the wait below terminates
	_ = s.ReleaseTasks(ctx)
	wg.Wait()

	closeErr := s.Close()
	writeErr := <-writeDone

	// The reader may still be blocked on stdin after a signal
	select {
	case err := <-scanErr:
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read requests", err)
		}
	default:
	}
	if closeErr != nil {
		return WrapExitError(ExitFailure, "session error", closeErr)
	}
	if writeErr != nil {
		return WrapExitError(ExitFailure, "failed to write envelopes", writeErr)
	}
	if n := failed.Load(); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d request(s) failed", n))
	}

	logger.Debug("session stopped")
	return nil
}

// inputLine is one non-blank request line.
type inputLine struct {
	line int
	text []byte
}

// scanRequests reads r line by line until EOF or ctx ends. scanErr receives
// the read error, if any, before lines is closed.
func scanRequests(ctx context.Context, r io.Reader) (<-chan inputLine, <-chan error) {
	lines := make(chan inputLine)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxRequestBytes)
		n := 0
		for scanner.Scan() {
			n++
			text := bytes.TrimSpace(scanner.Bytes())
			if len(text) == 0 {
				continue
			}
			select {
			case lines <- inputLine{line: n, text: bytes.Clone(text)}:
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	return lines, scanErr
}

// writeEnvelopes copies queued envelopes to w, one per line, until the
// queue is closed and drained.
func writeEnvelopes(q *message.Queue, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for {
		msg, err := q.Get(context.Background())
		if errors.Is(err, message.ErrQueueClosed) {
			return bw.Flush()
		}
		if err != nil {
			return err
		}
		if _, err := bw.Write(msg); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		// Flush per envelope so a reader sees replies as they happen
		if err := bw.Flush(); err != nil {
			return err
		}
	}
}

// openBackends opens the database twice: once for data queries and once
// read-only for table listing.
func openBackends(path string, logger *slog.Logger) (*backend.SQLite, *backend.SQLite, error) {
	src, err := backend.Open(path)
	if err != nil {
		return nil, nil, err
	}
	files, err := backend.Open(path, backend.ReadOnly())
	if err != nil {
		closeBackend(src, logger)
		return nil, nil, err
	}
	logger.Debug("database ready", "path", path)
	return src, files, nil
}

func closeBackend(db *backend.SQLite, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}
