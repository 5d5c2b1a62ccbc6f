//go:build !linux && !darwin

package bridge

import (
	"context"

	"github.com/kpelzel/kinet/internal/config"
)

func Connect(map[string]config.LightConfig) (map[string]Light, error) {
	return nil, ErrUnsupportedPlatform
}

func Scan(context.Context, func(ScanResult)) error {
	return ErrUnsupportedPlatform
}
