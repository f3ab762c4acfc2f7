package claude

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/user/forkd/internal/types"
)

var _ types.Launcher = (*CLILauncher)(nil)

// CLILauncher starts claude CLI workers as detached processes. The worker
// outlives the launching process; only the output pipe ties them together.
type CLILauncher struct {
	Bin string
	Log *slog.Logger
}

// NewLauncher returns a launcher invoking bin (default "claude").
func NewLauncher(bin string, log *slog.Logger) *CLILauncher {
	if bin == "" {
		bin = "claude"
	}
	if log == nil {
		log = slog.Default()
	}
	return &CLILauncher{Bin: bin, Log: log}
}

// Launch starts a worker and begins streaming its events. The context
// covers setup only; cancelling it after Launch returns does not kill the
// worker.
func (l *CLILauncher) Launch(ctx context.Context, spec types.LaunchSpec) (types.Handle, error) {
	if spec.Message == "" {
		return nil, fmt.Errorf("launch message is required")
	}

	args := []string{
		"--dangerously-skip-permissions",
		"--output-format", "stream-json",
		"--verbose",
	}
	if spec.SessionID != "" {
		args = append(args, "--session-id", string(spec.SessionID))
	}
	if spec.ResumeSessionID != "" {
		args = append(args, "-r", string(spec.ResumeSessionID))
		if spec.ForkSession {
			args = append(args, "--fork-session")
		}
	}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if spec.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(spec.MaxTurns))
	}
	if spec.AllowedTools != "" {
		args = append(args, "--allowedTools", spec.AllowedTools)
	}
	if spec.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", spec.AppendSystemPrompt)
	}
	args = append(args, "-p", spec.Message)

	cmd := exec.Command(l.Bin, args...)
	if spec.WorkingDir != "" {
		cmd.Dir = spec.WorkingDir
	}
	// Own process group: the worker survives the parent's terminal and
	// signals.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdin = nil
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	l.Log.Info("launched worker", "pid", cmd.Process.Pid, "bin", l.Bin)

	handle := &cliHandle{
		cmd:    cmd,
		events: make(chan types.Event, 64),
	}
	go handle.stream(stdout, l.Log)
	return handle, nil
}

type cliHandle struct {
	cmd    *exec.Cmd
	events chan types.Event
}

func (h *cliHandle) stream(r io.Reader, log *slog.Logger) {
	defer close(h.events)
	scanner := bufio.NewScanner(r)
	// Assistant turns with large tool results can run long.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		event, err := ParseEvent(line)
		if err != nil {
			log.Warn("skipping unparseable worker line", "error", err)
			continue
		}
		h.events <- *event
	}
	if err := scanner.Err(); err != nil {
		log.Warn("worker stream ended with error", "error", err)
	}
}

func (h *cliHandle) Events() <-chan types.Event {
	return h.events
}

func (h *cliHandle) Wait() error {
	return h.cmd.Wait()
}

func (h *cliHandle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}
