//go:build !unix

package sandbox

import "os/exec"

// Process groups are not available; CommandContext kills the direct child only.
func setProcessGroup(*exec.Cmd) {}
