package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"github.com/docker/docker/api/types/container"
)

// ProcessSpec describes a long-lived child process AgentSupervisor wants
// started against a destination — either a pipe-driven app-server session
// or a TTY-backed interactive terminal.
type ProcessSpec struct {
	Cmd     []string
	Env     []string
	WorkDir string
	TTY     bool
}

// Process is a running child, regardless of which destination launched it.
// AgentSupervisor drives app-server sessions and PTY terminals through this
// single interface so its session state machine doesn't need to know which
// destination it is talking to.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	// Resize is only meaningful for a TTY process; non-TTY processes
	// return an error if called.
	Resize(cols, rows uint16) error
	Wait() error
	Kill() error
}

// Launcher is implemented by destinations that can start a long-lived
// Process (as opposed to Executor's one-shot Run). Both LocalExec and
// DockerExec implement it.
type Launcher interface {
	StartProcess(ctx context.Context, spec ProcessSpec) (Process, error)
}

// localProcess wraps an os/exec.Cmd, optionally behind a pty.
type localProcess struct {
	cmd   *exec.Cmd
	ptmx  *os.File // non-nil when TTY
	stdin io.WriteCloser
	out   io.Reader
}

// StartProcess launches cmd on the host, via creack/pty when spec.TTY.
func (e *LocalExec) StartProcess(_ context.Context, spec ProcessSpec) (Process, error) {
	if len(spec.Cmd) == 0 {
		return nil, fmt.Errorf("command cannot be empty")
	}
	cmd := exec.Command(spec.Cmd[0], spec.Cmd[1:]...) //nolint:gosec // spec built by this process's own callers
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	if spec.TTY {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return nil, fmt.Errorf("start pty: %w", err)
		}
		return &localProcess{cmd: cmd, ptmx: ptmx, stdin: ptmx, out: ptmx}, nil
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}
	return &localProcess{cmd: cmd, stdin: stdin, out: stdout}, nil
}

func (p *localProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *localProcess) Stdout() io.Reader     { return p.out }

func (p *localProcess) Resize(cols, rows uint16) error {
	if p.ptmx == nil {
		return fmt.Errorf("process has no tty to resize")
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

func (p *localProcess) Wait() error {
	err := p.cmd.Wait()
	if p.ptmx != nil {
		_ = p.ptmx.Close()
	}
	return err
}

func (p *localProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// dockerProcess wraps a hijacked exec attach stream inside the managed
// container.
type dockerProcess struct {
	cli    *DockerExec
	execID string
	conn   io.ReadWriteCloser
	tty    bool
}

// StartProcess execs spec.Cmd inside the managed container, attaching a
// bidirectional stream (TTY or plain pipes per spec.TTY).
func (d *DockerExec) StartProcess(ctx context.Context, spec ProcessSpec) (Process, error) {
	if len(spec.Cmd) == 0 {
		return nil, fmt.Errorf("command cannot be empty")
	}
	if err := d.EnsureContainerRunning(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	containerID := d.containerID
	d.mu.Unlock()

	execCfg := container.ExecOptions{
		Cmd:          spec.Cmd,
		Env:          spec.Env,
		WorkingDir:   spec.WorkDir,
		Tty:          spec.TTY,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: !spec.TTY,
	}
	execID, err := d.cli.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return nil, fmt.Errorf("create exec in container %s: %w", d.spec.Name, err)
	}

	attach, err := d.cli.ContainerExecAttach(ctx, execID.ID, container.ExecAttachOptions{Tty: spec.TTY})
	if err != nil {
		return nil, fmt.Errorf("attach exec in container %s: %w", d.spec.Name, err)
	}

	return &dockerProcess{cli: d, execID: execID.ID, conn: attach.Conn, tty: spec.TTY}, nil
}

func (p *dockerProcess) Stdin() io.WriteCloser { return p.conn }
func (p *dockerProcess) Stdout() io.Reader     { return p.conn }

func (p *dockerProcess) Resize(cols, rows uint16) error {
	if !p.tty {
		return fmt.Errorf("exec was not started with a tty")
	}
	return p.cli.cli.ContainerExecResize(context.Background(), p.execID, container.ResizeOptions{
		Height: uint(rows),
		Width:  uint(cols),
	})
}

// Wait polls exec status until the process has exited. The hijacked stream
// itself has no clean "process exited" signal separate from the connection
// closing, so this follows the same inspect-based polling the Docker CLI's
// own exec-wait helpers use.
func (p *dockerProcess) Wait() error {
	const pollInterval = 200 * time.Millisecond
	for {
		inspect, err := p.cli.cli.ContainerExecInspect(context.Background(), p.execID)
		if err != nil {
			return fmt.Errorf("inspect exec %s: %w", p.execID, err)
		}
		if !inspect.Running {
			return nil
		}
		time.Sleep(pollInterval)
	}
}

func (p *dockerProcess) Kill() error {
	return p.conn.Close()
}
