// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// Launcher spawns a dev-server process for a project directory and port.
// It is pluggable so tests can substitute a fake.
type Launcher interface {
	Launch(ctx context.Context, dir string, port int) (*exec.Cmd, error)
}

// ExecLauncher launches the configured dev-server command with exec.
// Occurrences of {port} in arguments are replaced with the allocated port,
// which is also exported as PORT in the environment.
type ExecLauncher struct {
	Command []string
	Args    []string
	Env     map[string]string
}

// Launch builds the dev-server command for the given directory and port.
// The returned command is not yet started.
func (l *ExecLauncher) Launch(ctx context.Context, dir string, port int) (*exec.Cmd, error) {
	if len(l.Command) == 0 {
		return nil, fmt.Errorf("devserver: empty command")
	}

	argv := make([]string, 0, len(l.Command)+len(l.Args))
	argv = append(argv, l.Command...)
	argv = append(argv, l.Args...)
	for i, arg := range argv {
		argv[i] = strings.ReplaceAll(arg, "{port}", strconv.Itoa(port))
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	// New process group so Stop can kill child processes too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Env = append(os.Environ(), "PORT="+strconv.Itoa(port))
	for k, v := range l.Env {
		cmd.Env = append(cmd.Env, k+"="+strings.ReplaceAll(v, "{port}", strconv.Itoa(port)))
	}

	return cmd, nil
}
