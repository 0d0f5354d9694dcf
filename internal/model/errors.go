package model

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorKind discriminates the UpdateError union.
type ErrorKind int

const (
	KindNotPrivileged ErrorKind = iota + 1
	KindNoNetwork
	KindCommandNotFound
	KindCommandFailed
	KindCancelled
	KindConfig
	KindIO
)

var kindNames = map[ErrorKind]string{
	KindNotPrivileged:   "not_privileged",
	KindNoNetwork:       "no_network",
	KindCommandNotFound: "command_not_found",
	KindCommandFailed:   "command_failed",
	KindCancelled:       "cancelled",
	KindConfig:          "config",
	KindIO:              "io",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// UpdateError is the single error type of the update engine. Which payload
// fields are meaningful depends on Kind:
//
//   - KindCommandNotFound: Tool
//   - KindCommandFailed: Command, Code, Output
//   - KindNoNetwork, KindConfig, KindIO: Err (the cause)
type UpdateError struct {
	Kind    ErrorKind
	Tool    string
	Command string
	Code    int
	Output  string
	Err     error
}

// Sentinels for errors.Is, matched by Kind only.
var (
	ErrNotPrivileged   = &UpdateError{Kind: KindNotPrivileged}
	ErrNoNetwork       = &UpdateError{Kind: KindNoNetwork}
	ErrCommandNotFound = &UpdateError{Kind: KindCommandNotFound}
	ErrCommandFailed   = &UpdateError{Kind: KindCommandFailed}
	ErrCancelled       = &UpdateError{Kind: KindCancelled}
	ErrConfig          = &UpdateError{Kind: KindConfig}
	ErrIO              = &UpdateError{Kind: KindIO}
)

func (e *UpdateError) Error() string {
	return describe(e)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

func (e *UpdateError) Is(target error) bool {
	t, ok := target.(*UpdateError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NotPrivileged() error {
	return &UpdateError{Kind: KindNotPrivileged}
}

func NoNetwork(cause error) error {
	return &UpdateError{Kind: KindNoNetwork, Err: cause}
}

func CommandNotFound(tool string) error {
	return &UpdateError{Kind: KindCommandNotFound, Tool: tool}
}

func CommandFailed(command string, code int, output string) error {
	return &UpdateError{Kind: KindCommandFailed, Command: command, Code: code, Output: output}
}

func Cancelled() error {
	return &UpdateError{Kind: KindCancelled}
}

func ConfigError(cause error) error {
	return &UpdateError{Kind: KindConfig, Err: cause}
}

func IOError(cause error) error {
	return &UpdateError{Kind: KindIO, Err: cause}
}

// KindOf returns the kind of the first UpdateError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var uerr *UpdateError
	if errors.As(err, &uerr) {
		return uerr.Kind
	}
	return 0
}

// ExitCode maps a run outcome to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrCancelled):
		return 130
	default:
		return 1
	}
}

func describe(e *UpdateError) string {
	switch e.Kind {
	case KindNotPrivileged:
		return "must run as root, use: sudo sysupdater"
	case KindNoNetwork:
		return withCause("no network connectivity", e.Err)
	case KindCommandNotFound:
		return "command not found: " + e.Tool
	case KindCommandFailed:
		return fmt.Sprintf("command failed: %s\n  exit code: %d\n  details: %s", e.Command, e.Code, e.Output)
	case KindCancelled:
		return "operation cancelled by user"
	case KindConfig:
		return withCause("configuration error", e.Err)
	case KindIO:
		return withCause("io error", e.Err)
	default:
		return withCause(e.Kind.String(), e.Err)
	}
}

func withCause(msg string, cause error) string {
	if cause == nil {
		return msg
	}
	return msg + ": " + cause.Error()
}
