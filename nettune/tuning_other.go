//go:build !linux && !darwin

package nettune

func applyPlatformOptions(fd int, cfg *Config) {}

func applyListenerOptions(fd int, cfg *Config) error { return nil }

// SetQuickAck is a no-op on platforms without TCP_QUICKACK.
func SetQuickAck(fd int) error { return nil }
