// Package provider runs the external commands that feed and act on spells.
//
// Provider commands are shell command lines executed with "sh -c" in the
// resources directory; their standard output is a stream of
// KIND\tLABEL\tDATA lines. Action commands are already tokenized and run as
// plain argv without a shell.
package provider

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"quickspell/internal/domain"
)

// DefaultInterval is the minimum time between two streaming flushes
const DefaultInterval = 500 * time.Millisecond

const (
	defaultShell  = "sh"
	maxLineLength = 1 << 20
	stderrTail    = 2048
)

// ExitError reports a command that ran but exited unsuccessfully
type ExitError struct {
	Command string
	Code    int
	Stderr  string
	Err     error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%q exited with status %d", e.Command, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Config configures a Runner
type Config struct {
	// Dir is the working directory of every command
	Dir string
	// Shell interprets provider command lines, "sh" when empty
	Shell string
	// Interval throttles streaming flushes, DefaultInterval when zero
	Interval time.Duration
	Logger   logrus.FieldLogger
}

// Runner executes provider and action commands
type Runner struct {
	dir      string
	shell    string
	interval time.Duration
	log      logrus.FieldLogger
}

// NewRunner creates a runner from cfg, filling defaults
func NewRunner(cfg Config) *Runner {
	r := &Runner{
		dir:      cfg.Dir,
		shell:    cfg.Shell,
		interval: cfg.Interval,
		log:      cfg.Logger,
	}
	if r.shell == "" {
		r.shell = defaultShell
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	return r
}

// Dir returns the working directory commands run in
func (r *Runner) Dir() string { return r.dir }

func (r *Runner) shellCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	cmd.Dir = r.dir
	return cmd
}

// Batch runs a provider to completion and parses its output
func (r *Runner) Batch(ctx context.Context, spellID, command string) ([]domain.Item, error) {
	cmd := r.shellCommand(ctx, command)
	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return nil, r.commandError(spellID, command, err, stderr)
	}

	var items []domain.Item
	scanner := newScanner(&stdout)
	for scanner.Scan() {
		if item, ok := r.parseLine(spellID, scanner.Text()); ok {
			items = append(items, item)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read provider output for %s: %w", spellID, err)
	}
	return items, nil
}

// Stream runs a provider and hands parsed items to flush in batches, at
// most once per interval plus a final flush at end of output. When flush
// returns false the stream is stale: buffered items are dropped and the
// remaining output is drained unparsed. The child is always waited on.
// A non-zero exit is logged rather than returned.
func (r *Runner) Stream(ctx context.Context, spellID, command string, flush func([]domain.Item) bool) error {
	cmd := r.shellCommand(ctx, command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("no stdout handle for provider %s: %w", spellID, err)
	}
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn provider for %s: %w", spellID, err)
	}

	logger := r.log.WithField("spell", spellID)
	throttle := rate.Sometimes{Interval: r.interval}
	var batch []domain.Item
	stale := false

	scanner := newScanner(stdout)
	for scanner.Scan() {
		if stale {
			continue
		}
		if item, ok := r.parseLine(spellID, scanner.Text()); ok {
			batch = append(batch, item)
		}
		throttle.Do(func() {
			if len(batch) == 0 {
				return
			}
			if !flush(batch) {
				stale = true
				logger.Debug("stream went stale, draining provider output")
			}
			batch = nil
		})
	}
	readErr := scanner.Err()
	if readErr != nil {
		// keep the pipe empty so the child can exit
		_, _ = io.Copy(io.Discard, stdout)
	}

	if !stale && len(batch) > 0 {
		flush(batch)
	}

	if err := cmd.Wait(); err != nil {
		logger.WithError(r.commandError(spellID, command, err, stderr)).Warn("streaming provider exited unsuccessfully")
	}
	if readErr != nil {
		return fmt.Errorf("failed to read provider output for %s: %w", spellID, readErr)
	}
	return nil
}

// Output runs a shell command line and returns its standard output
func (r *Runner) Output(ctx context.Context, command string) (string, error) {
	cmd := r.shellCommand(ctx, command)
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stderr = stderr
	out, err := cmd.Output()
	if err != nil {
		return "", r.commandError("", command, err, stderr)
	}
	return string(out), nil
}

// Exec runs argv directly, without a shell, and waits for it to finish
func (r *Runner) Exec(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.dir
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stderr = stderr

	r.log.WithField("argv", argv).Debug("running action command")
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{
				Command: strings.Join(argv, " "),
				Code:    exitErr.ExitCode(),
				Stderr:  stderr.String(),
				Err:     err,
			}
		}
		return fmt.Errorf("failed to run action command %q: %w", argv[0], err)
	}
	return nil
}

func (r *Runner) commandError(spellID, command string, err error, stderr *tailBuffer) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Command: command,
			Code:    exitErr.ExitCode(),
			Stderr:  stderr.String(),
			Err:     err,
		}
	}
	if spellID == "" {
		return fmt.Errorf("failed to launch %q: %w", command, err)
	}
	return fmt.Errorf("failed to launch provider for %s: %w", spellID, err)
}

// parseLine turns one output line into an item. Blank lines are skipped
// silently, malformed ones with a warning.
func (r *Runner) parseLine(spellID, line string) (domain.Item, bool) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return domain.Item{}, false
	}
	item, err := domain.ParseItem(line)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"spell": spellID,
			"line":  line,
		}).Warn("skipping malformed item")
		return domain.Item{}, false
	}
	return item, true
}

func newScanner(rd io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	return scanner
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
