//go:build !unix && !windows

package client

func setSocketOptions(uintptr) error { return nil }

func isPlatformNetworkUnreachable(error) bool { return false }
