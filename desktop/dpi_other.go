//go:build !windows

package desktop

func enableDPIAwareness() error { return nil }
