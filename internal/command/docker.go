package command

import (
	"bytes"
	"context"
	"deployd/internal/apperrors"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerExecutor runs commands inside existing containers through the Docker API.
type DockerExecutor struct {
	client *client.Client
}

// NewDockerExecutor connects to the Docker daemon from the environment.
func NewDockerExecutor() (*DockerExecutor, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerExecutor{client: dockerClient}, nil
}

// Exec runs argv inside containerName and waits for it to finish or for the
// timeout. The attached stream does not observe ctx once hijacked, so it is
// closed explicitly when ctx ends.
func (d *DockerExecutor) Exec(ctx context.Context, containerName string, argv []string, timeout time.Duration) *Output {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	failure := func(err error, lines []string) *Output {
		out := &Output{ExitCode: -1, Lines: lines}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.TimedOut = true
			out.Err = apperrors.ExecutionFailure("docker.exec", fmt.Sprintf("timed out after %s", timeout))
		} else {
			out.Err = apperrors.ExecutionFailure("docker.exec", err.Error())
		}
		return out
	}

	created, err := d.client.ContainerExecCreate(ctx, containerName, container.ExecOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return failure(err, nil)
	}

	attached, err := d.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return failure(err, nil)
	}
	defer attached.Close()

	var buf bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&buf, &buf, attached.Reader)
		copied <- err
	}()

	select {
	case err = <-copied:
	case <-ctx.Done():
		attached.Close()
		<-copied
		return failure(ctx.Err(), SplitLines(buf.String()))
	}
	if err != nil {
		return failure(err, SplitLines(buf.String()))
	}

	inspect, err := d.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return failure(err, SplitLines(buf.String()))
	}

	out := &Output{ExitCode: inspect.ExitCode, Lines: SplitLines(buf.String())}
	if inspect.ExitCode != 0 {
		out.Err = apperrors.ExecutionFailure("docker.exec", fmt.Sprintf("exit status %d", inspect.ExitCode))
	}
	return out
}

// Ready checks the Docker daemon is reachable.
func (d *DockerExecutor) Ready(ctx context.Context) error {
	if _, err := d.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon not reachable: %w", err)
	}
	return nil
}

// Close releases the Docker client.
func (d *DockerExecutor) Close() error {
	return d.client.Close()
}
