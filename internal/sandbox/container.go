package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
)

type containerOpts struct {
	Image   string
	Command []string
	WorkDir string
	Env     []string
	Timeout time.Duration
}

type containerResult struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
	Output   string
}

// runContainer executes a one-shot command in a disposable container
// with the workspace bind-mounted read-only and no network. The timeout
// is a hard kill, not a flag.
func runContainer(ctx context.Context, opts *containerOpts) (*containerResult, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   opts.WorkDir,
				Target:   "/workspace",
				ReadOnly: true,
			},
		},
		Init:        &initTrue,
		NetworkMode: "none",
	}

	containerCfg := &container.Config{
		Image:      opts.Image,
		Cmd:        opts.Command,
		Env:        opts.Env,
		WorkingDir: "/workspace",
		Labels:     map[string]string{"benchwatch": "true"},
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	waitResult := cli.ContainerWait(timeoutCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err != nil {
				cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
				timedOut, waitErr := classifyWaitFailure(timeoutCtx.Err(), err)
				if waitErr != nil {
					return nil, waitErr
				}
				return &containerResult{
					ExitCode: 124,
					TimedOut: timedOut,
					Duration: time.Since(start),
					Output:   readLogs(cli, containerID),
				}, nil
			}
			// nil error means no error on this channel; wait for result
		case status := <-waitResult.Result:
			return &containerResult{
				ExitCode: int(status.StatusCode),
				TimedOut: false,
				Duration: time.Since(start),
				Output:   readLogs(cli, containerID),
			}, nil
		}
	}
}

// classifyWaitFailure separates the hard-kill deadline from a wait that
// failed for daemon reasons. Only the deadline is a timeout; anything
// else is a harness fault the caller must not charge to the agent.
func classifyWaitFailure(ctxErr, waitErr error) (timedOut bool, err error) {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return true, nil
	}
	return false, fmt.Errorf("waiting for container: %w", waitErr)
}

func readLogs(cli *client.Client, containerID string) string {
	logReader, err := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return ""
	}
	defer logReader.Close()
	data, _ := io.ReadAll(logReader)
	return string(data)
}
