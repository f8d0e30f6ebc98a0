// Package nettune applies socket-level tuning to a connection once it has
// been accepted, before it is ever handed to conduit.New. This is strictly
// an acceptance-time concern: the protocol engine itself never touches a
// socket option.
package nettune

import (
	"net"
	"syscall"
)

// Config describes which socket options to set. The zero Config turns on
// none of the options below, though Apply still sets the platform's
// unconditional options (TCP_USER_TIMEOUT on Linux, SO_NOSIGPIPE on
// Darwin); use one of the presets below as a starting point.
type Config struct {
	NoDelay     bool // TCP_NODELAY
	RecvBuffer  int  // SO_RCVBUF, bytes; 0 = system default
	SendBuffer  int  // SO_SNDBUF, bytes; 0 = system default
	QuickAck    bool // TCP_QUICKACK (linux only)
	DeferAccept bool // TCP_DEFER_ACCEPT (linux only)
	FastOpen    bool // TCP_FASTOPEN (linux/darwin)
	KeepAlive   bool // SO_KEEPALIVE
}

// DefaultConfig is a reasonable baseline for a request/response server.
func DefaultConfig() *Config {
	return &Config{
		NoDelay:     true,
		RecvBuffer:  256 * 1024,
		SendBuffer:  256 * 1024,
		QuickAck:    true,
		DeferAccept: true,
		FastOpen:    true,
		KeepAlive:   true,
	}
}

// LowLatencyConfig favors latency over throughput: smaller buffers,
// immediate ACKs, no deferred accept.
func LowLatencyConfig() *Config {
	return &Config{
		NoDelay:    true,
		RecvBuffer: 128 * 1024,
		SendBuffer: 128 * 1024,
		QuickAck:   true,
		FastOpen:   true,
		KeepAlive:  true,
	}
}

// Apply sets cfg's options on conn. Only *net.TCPConn is tunable; anything
// else is a silent no-op. TCP_NODELAY failures are returned; every other
// option is best-effort (a kernel without TCP_FASTOPEN compiled in, for
// instance, is not a reason to refuse the connection).
func Apply(conn net.Conn, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var nodelayErr error
	err = rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if e := syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); e != nil {
				nodelayErr = e
				return
			}
		}
		if cfg.RecvBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, cfg.RecvBuffer)
		}
		if cfg.SendBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, cfg.SendBuffer)
		}
		if cfg.KeepAlive {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
		}
		applyPlatformOptions(int(fd), cfg)
	})
	if err != nil {
		return err
	}
	return nodelayErr
}

// ApplyListener sets listener-level options (TCP_DEFER_ACCEPT,
// TCP_FASTOPEN) that must be configured before Accept is ever called.
func ApplyListener(listener net.Listener, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return nil
	}
	file, err := tcpListener.File()
	if err != nil {
		return err
	}
	defer file.Close()
	return applyListenerOptions(int(file.Fd()), cfg)
}
