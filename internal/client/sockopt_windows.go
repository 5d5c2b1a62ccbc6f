//go:build windows

package client

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

func setSocketOptions(fd uintptr) error {
	h := windows.Handle(fd)
	if err := windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("set SO_REUSEADDR: %w", err)
	}
	if err := windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_BROADCAST, 1); err != nil {
		return fmt.Errorf("set SO_BROADCAST: %w", err)
	}
	return nil
}

func isPlatformNetworkUnreachable(err error) bool {
	return errors.Is(err, windows.WSAENETUNREACH)
}
