//go:build darwin

package nettune

import "syscall"

const (
	tcpFastOpen   = 0x105
	tcpKeepAlive  = 0x10
	soNoSigPipe   = 0x1022
)

func applyPlatformOptions(fd int, cfg *Config) {
	_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, soNoSigPipe, 1)
	if cfg.KeepAlive {
		_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpKeepAlive, 60)
	}
}

func applyListenerOptions(fd int, cfg *Config) error {
	if cfg.FastOpen {
		return syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpFastOpen, 256)
	}
	return nil
}

// SetQuickAck is a no-op on Darwin: there is no TCP_QUICKACK equivalent.
func SetQuickAck(fd int) error { return nil }
