package runner

import "os/exec"

// CommandExists reports whether name resolves to an executable on $PATH.
func CommandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
