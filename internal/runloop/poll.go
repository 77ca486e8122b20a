package runloop

import "golang.org/x/sys/unix"

type pollFd struct {
	fd     int
	events int16
}

const pollIn = unix.POLLIN

// poll is a thin wrapper over unix.Poll, used by FDWatcher to block (with a timeout,
// so Stop is observed promptly) until fd is readable.
func poll(fds []pollFd, timeoutMs int) (int, error) {
	raw := make([]unix.PollFd, len(fds))
	for i, f := range fds {
		raw[i] = unix.PollFd{Fd: int32(f.fd), Events: f.events}
	}
	n, err := unix.Poll(raw, timeoutMs)
	return n, err
}
