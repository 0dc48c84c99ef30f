package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrCommandTimeout = errors.New("command timed out")

// CommandResult captures a finished external command
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CommandRunner runs setup tools such as steamcmd with a hard timeout
type CommandRunner struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewCommandRunner creates a runner; a zero timeout means 30 seconds
func NewCommandRunner(timeout time.Duration, logger *zap.Logger) *CommandRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandRunner{Timeout: timeout, Logger: logger}
}

// Run executes name in dir. A non-zero exit is an error carrying the last
// line of stderr; the result is returned either way.
func (r *CommandRunner) Run(ctx context.Context, dir, name string, args ...string) (*CommandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	r.Logger.Debug("Command finished",
		zap.String("command", name),
		zap.String("dir", dir),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
	)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%w after %s: %s", ErrCommandTimeout, r.Timeout, name)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if line := lastLine(result.Stderr); line != "" {
				return result, fmt.Errorf("%s exited with status %d: %s", name, result.ExitCode, line)
			}
			return result, fmt.Errorf("%s exited with status %d", name, result.ExitCode)
		}
		return result, fmt.Errorf("run %s: %w", name, err)
	}
	return result, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
