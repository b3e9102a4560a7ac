package session

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// KeepaliveConfig tunes the TCP keepalive probe timing applied to a
// session's connection (spec.md section 5: "TCP keep-alive (idle
// seconds, probe count, probe interval) is an exposed configuration").
type KeepaliveConfig struct {
	Idle     time.Duration
	Interval time.Duration
	Count    int
}

// ApplyKeepalive sets TCP_KEEPIDLE, TCP_KEEPINTVL and TCP_KEEPCNT on conn
// independently, which the stdlib net package alone cannot do pre-Go
// 1.23. Grounded on the teacher's use of golang.org/x/sys/unix for raw
// socket/kernel-interface tuning (internal/queue/runner.go's
// unix.SchedSetaffinity), repurposed here to a different syscall family.
func ApplyKeepalive(conn *net.TCPConn, cfg KeepaliveConfig) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}

	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		if cfg.Idle > 0 {
			if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, int(cfg.Idle.Seconds())); e != nil {
				sockErr = e
				return
			}
		}
		if cfg.Interval > 0 {
			if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(cfg.Interval.Seconds())); e != nil {
				sockErr = e
				return
			}
		}
		if cfg.Count > 0 {
			if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, cfg.Count); e != nil {
				sockErr = e
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// PinToCPUs restricts the calling OS thread's scheduling affinity to
// cpus, for callers running a high-rate session that wants deterministic
// core placement. It does not lock the goroutine to its thread: the
// caller must already have called runtime.LockOSThread (as sendLoop and
// recvLoop do, right after they start) and is responsible for the
// matching runtime.UnlockOSThread.
func PinToCPUs(cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(0, &set)
}
