// Package radioerr defines the abstract error taxonomy used across the coordinator:
// config errors, transport I/O errors, protocol violations, radio-rejected commands,
// invalid arguments, and dead RPC peers. Callers distinguish kinds with errors.Is/As
// rather than string matching.
package radioerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel kinds, used with errors.Is against wrapped errors returned below.
var (
	ErrConfig            = errors.New("config error")
	ErrIO                = errors.New("io error")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrRemoteDisconnect  = errors.New("remote disconnected")
)

// Config wraps an error encountered reading static or runtime configuration.
func Config(cause error) error {
	return wrap(ErrConfig, cause)
}

// IO wraps an OS-level error from an SPI, GPIO, or socket syscall.
func IO(cause error) error {
	return wrap(ErrIO, cause)
}

// ProtocolViolation wraps a wire-format or version mismatch error.
func ProtocolViolation(cause error) error {
	return wrap(ErrProtocolViolation, cause)
}

// InvalidArgument wraps a programming-error-shaped input validation failure.
func InvalidArgument(cause error) error {
	return wrap(ErrInvalidArgument, cause)
}

// RemoteDisconnect wraps an RPC peer EOF or unrecoverable read error.
func RemoteDisconnect(cause error) error {
	return wrap(ErrRemoteDisconnect, cause)
}

func wrap(kind, cause error) error {
	return fmt.Errorf("%w: %s", kind, cause)
}

// RadioCommandFailed indicates that GetStatus.cmdSuccess was clear after issuing the
// named command. It is the single signal that the radio rejected a request.
type RadioCommandFailed struct {
	Command string
}

func (e *RadioCommandFailed) Error() string {
	return fmt.Sprintf("command failed: %s", e.Command)
}

// NewRadioCommandFailed constructs a RadioCommandFailed for the given command name.
func NewRadioCommandFailed(command string) error {
	return &RadioCommandFailed{Command: command}
}

// IsRadioCommandFailed reports whether err is (or wraps) a RadioCommandFailed.
func IsRadioCommandFailed(err error) bool {
	var target *RadioCommandFailed
	return errors.As(err, &target)
}
