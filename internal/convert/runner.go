package convert

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes exactly one external command per call and returns
// its standard output. Implementations must terminate the process once the
// timeout elapses instead of leaving it running.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, timeout time.Duration) (string, error)
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct{}

// Run executes argv under a deadline derived from ctx. Every failure is
// reported as *SystemCallError so callers can tell timeouts, non-zero exits
// and spawn errors apart without string matching.
func (ExecRunner) Run(ctx context.Context, argv []string, timeout time.Duration) (string, error) {
	if len(argv) == 0 {
		return "", &SystemCallError{Kind: FailExec, Err: errors.New("empty command")}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", &SystemCallError{Kind: FailTimeout, Command: argv, Timeout: timeout, Err: err}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = strings.TrimSpace(stdout.String())
		}
		return "", &SystemCallError{Kind: FailExit, Command: argv, ExitCode: exitErr.ExitCode(), Output: output, Err: err}
	}

	return "", &SystemCallError{Kind: FailExec, Command: argv, Err: err}
}
