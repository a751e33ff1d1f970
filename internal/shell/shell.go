// Package shell runs the external commands a benchmark depends on: service
// setup, database seeding, deploy updates and the load executor itself.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ExternalCommandError reports a command that could not start or exited
// non-zero. ExitCode is -1 when the command never ran to completion.
type ExternalCommandError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *ExternalCommandError) Error() string {
	return fmt.Sprintf("command failed (%d): %s", e.ExitCode, e.Command)
}

func (e *ExternalCommandError) Unwrap() error { return e.Err }

// Command is one process invocation. Env entries are appended to the
// current process environment.
type Command struct {
	Args []string
	Env  []string
}

// Script wraps a shell snippet in a login bash invocation, so configured
// commands may use pipes, variables and profile-provided tools.
func Script(script string, env ...string) Command {
	return Command{Args: []string{"bash", "-lc", script}, Env: env}
}

func (c Command) String() string {
	if len(c.Args) == 3 && c.Args[0] == "bash" && c.Args[1] == "-lc" {
		return c.Args[2]
	}
	return strings.Join(c.Args, " ")
}

// Runner executes commands to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as child processes, streaming their output.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Log    *logrus.Entry
}

// NewExecRunner streams child output to the process's own stdout and stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr, Log: logrus.NewEntry(logrus.StandardLogger())}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	if len(c.Args) == 0 {
		return errors.New("empty command")
	}
	r.Log.WithField("command", c.String()).Debug("running external command")
	fmt.Fprintf(r.Stdout, "\n$ %s\n", c.String())

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Env = append(os.Environ(), c.Env...)

	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExternalCommandError{Command: c.String(), ExitCode: code, Err: err}
	}
	return nil
}
