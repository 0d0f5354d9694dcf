// Package privilege tells whether the process may change the system.
package privilege

import (
	"golang.org/x/sys/unix"

	"github.com/sysupdater/sysupdater/internal/model"
)

// IsPrivileged reports whether the effective user is root.
func IsPrivileged() bool {
	return unix.Geteuid() == 0
}

// Require returns a NotPrivileged error unless IsPrivileged.
func Require() error {
	if !IsPrivileged() {
		return model.NotPrivileged()
	}
	return nil
}
