package destination

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/tlsconfig"

	"autorunner/pkg/herrors"
	"autorunner/pkg/logx"
)

// ContainerSpec describes the long-lived container a DockerExec manages for
// one repo's destination.
type ContainerSpec struct {
	Name    string
	Image   string
	WorkDir string
	Mounts  []MountSpec
	Env     []string
}

// MountSpec is one bind mount into the managed container.
type MountSpec struct {
	Source   string
	Target   string
	ReadOnly bool
}

// DockerExec runs commands inside a managed long-lived container via the
// Docker Engine API (not by shelling out to the docker CLI).
type DockerExec struct {
	logger *logx.Logger
	cli    *client.Client

	mu          sync.Mutex
	containerID string
	spec        ContainerSpec
}

// NewDockerExec constructs a DockerExec bound to spec, honoring the same
// DOCKER_HOST/DOCKER_TLS_VERIFY/DOCKER_CERT_PATH environment variables the
// docker CLI does — including TLS client auth for a remote daemon, which
// client.FromEnv alone does not wire up.
func NewDockerExec(spec ContainerSpec) (*DockerExec, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if httpClient, err := tlsHTTPClientFromEnv(); err != nil {
		return nil, err
	} else if httpClient != nil {
		opts = append(opts, client.WithHTTPClient(httpClient))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerExec{
		logger: logx.NewLogger("destination-docker"),
		cli:    cli,
		spec:   spec,
	}, nil
}

// tlsHTTPClientFromEnv builds an *http.Client with client-cert TLS when
// DOCKER_CERT_PATH is set, mirroring the docker CLI's own TLS bootstrap.
// Returns a nil client (not an error) when no cert path is configured.
func tlsHTTPClientFromEnv() (*http.Client, error) {
	certPath := os.Getenv("DOCKER_CERT_PATH")
	if certPath == "" {
		return nil, nil
	}
	verify := os.Getenv("DOCKER_TLS_VERIFY") != ""
	options := tlsconfig.Options{
		CAFile:             certPath + "/ca.pem",
		CertFile:           certPath + "/cert.pem",
		KeyFile:            certPath + "/key.pem",
		InsecureSkipVerify: !verify,
	}
	cfg, err := tlsconfig.Client(options)
	if err != nil {
		return nil, fmt.Errorf("build docker TLS config from %s: %w", certPath, err)
	}
	return &http.Client{Transport: &http.Transport{TLSClientConfig: cfg}}, nil
}

func (d *DockerExec) Name() string { return "docker" }

// Available reports whether the daemon is reachable right now.
func (d *DockerExec) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := d.cli.Ping(ctx)
	if err != nil {
		d.logger.Debug("docker daemon not available: %v", err)
	}
	return err == nil
}

// EnsureContainerRunning starts (or reuses) the managed container for this
// destination, returning DestinationUnavailable on any preflight or
// connection failure (spec §4.F: "preflight failures ... do not silently
// fall back to local").
func (d *DockerExec) EnsureContainerRunning(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.containerID != "" {
		inspect, err := d.cli.ContainerInspect(ctx, d.containerID)
		if err == nil && inspect.State != nil && inspect.State.Running {
			return nil
		}
	}

	if !d.Available() {
		return herrors.New(herrors.DestinationUnavailable, "", "docker daemon unreachable for container %s", d.spec.Name)
	}

	existing, err := d.cli.ContainerInspect(ctx, d.spec.Name)
	if err == nil {
		if existing.State != nil && existing.State.Running {
			d.containerID = existing.ID
			return nil
		}
		if startErr := d.cli.ContainerStart(ctx, existing.ID, container.StartOptions{}); startErr != nil {
			return herrors.Wrap(herrors.DestinationUnavailable, startErr, "", "start existing container %s", d.spec.Name)
		}
		d.containerID = existing.ID
		return nil
	}

	if err := d.ensureImage(ctx); err != nil {
		return err
	}

	mounts := make([]string, 0, len(d.spec.Mounts))
	for _, m := range d.spec.Mounts {
		mode := "rw"
		if m.ReadOnly {
			mode = "ro"
		}
		mounts = append(mounts, fmt.Sprintf("%s:%s:%s", m.Source, m.Target, mode))
	}

	resp, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      d.spec.Image,
			Env:        d.spec.Env,
			WorkingDir: d.spec.WorkDir,
			Tty:        false,
			Cmd:        []string{"sleep", "infinity"},
		},
		&container.HostConfig{
			Binds: mounts,
		},
		nil, nil, d.spec.Name,
	)
	if err != nil {
		return herrors.Wrap(herrors.DestinationUnavailable, err, "", "create container %s", d.spec.Name)
	}
	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return herrors.Wrap(herrors.DestinationUnavailable, err, "", "start container %s", d.spec.Name)
	}
	d.containerID = resp.ID
	return nil
}

// ensureImage makes sure d.spec.Image is present locally, pulling it from
// the registry when it is not. Auth and not-found failures are reported as
// DestinationUnavailable with the underlying reason; neither is retried
// (spec §4.F: preflight failures must not silently fall back to local).
func (d *DockerExec) ensureImage(ctx context.Context) error {
	if _, _, err := d.cli.ImageInspectWithRaw(ctx, d.spec.Image); err == nil {
		return nil
	}

	d.logger.Info("pulling image %s for container %s", d.spec.Image, d.spec.Name)
	reader, err := d.cli.ImagePull(ctx, d.spec.Image, image.PullOptions{})
	switch {
	case err == nil:
		defer reader.Close()
		if _, copyErr := io.Copy(io.Discard, reader); copyErr != nil {
			return herrors.Wrap(herrors.DestinationUnavailable, copyErr, "", "read pull progress for image %s", d.spec.Image)
		}
		return nil
	case errdefs.IsUnauthorized(err) || errdefs.IsForbidden(err):
		return herrors.Wrap(herrors.DestinationUnavailable, err, "", "image %s requires registry credentials", d.spec.Image)
	case errdefs.IsNotFound(err):
		return herrors.Wrap(herrors.DestinationUnavailable, err, "", "image %s not found in registry", d.spec.Image)
	default:
		return herrors.Wrap(herrors.DestinationUnavailable, err, "", "pull image %s", d.spec.Image)
	}
}

// Run execs cmd inside the managed container, ensuring it is running first.
func (d *DockerExec) Run(ctx context.Context, cmd []string, opts Opts) (Result, error) {
	if len(cmd) == 0 {
		return Result{}, fmt.Errorf("command cannot be empty")
	}
	if err := d.EnsureContainerRunning(ctx); err != nil {
		return Result{}, err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	d.mu.Lock()
	containerID := d.containerID
	d.mu.Unlock()

	execCfg := container.ExecOptions{
		Cmd:          cmd,
		Env:          opts.Env,
		WorkingDir:   opts.WorkDir,
		AttachStdout: true,
		AttachStderr: true,
	}
	execID, err := d.cli.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return Result{}, herrors.Wrap(herrors.DestinationUnavailable, err, "", "create exec in container %s", d.spec.Name)
	}

	attach, err := d.cli.ContainerExecAttach(ctx, execID.ID, container.ExecAttachOptions{})
	if err != nil {
		return Result{}, herrors.Wrap(herrors.DestinationUnavailable, err, "", "attach exec in container %s", d.spec.Name)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil && err != io.EOF {
		return Result{}, fmt.Errorf("read exec output: %w", err)
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return Result{}, fmt.Errorf("inspect exec result: %w", err)
	}

	return Result{
		Stdout:       stdout.String(),
		Stderr:       stderr.String(),
		ExitCode:     inspect.ExitCode,
		Duration:     time.Since(start),
		ExecutorUsed: d.Name(),
	}, nil
}

// Shutdown stops the managed container, if one was started.
func (d *DockerExec) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.containerID == "" {
		return nil
	}
	timeout := 10
	if err := d.cli.ContainerStop(ctx, d.containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("stop container %s: %w", d.spec.Name, err)
	}
	return nil
}
