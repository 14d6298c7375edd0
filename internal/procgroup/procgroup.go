// SPDX-License-Identifier: MIT

// Package procgroup spawns and reaps external processes as whole process
// groups, so a killed ffmpeg cannot leave forked children behind.
package procgroup

import (
	"errors"
	"os/exec"
	"time"
)

var ErrKillFailed = errors.New("kill operation failed")

// Set configures the command to start in a new process group.
// Mandatory for KillGroup to function as a group reaper.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// KillGroup terminates an entire process group: SIGTERM, grace period,
// then SIGKILL. The process must have been spawned with Set.
func KillGroup(pid int, grace, timeout time.Duration) error {
	return killGroup(pid, grace, timeout)
}
