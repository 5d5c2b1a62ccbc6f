//go:build linux || darwin

package bridge

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/kpelzel/kinet/internal/config"
)

var adapter = bluetooth.DefaultAdapter

type bleLight struct {
	dev  *bluetooth.Device
	char *bluetooth.DeviceCharacteristic
}

func (l *bleLight) On() error {
	return l.write([]byte{0xCC, 0x23, 0x33})
}

func (l *bleLight) Off() error {
	return l.write([]byte{0xCC, 0x24, 0x33})
}

func (l *bleLight) SetColor(red, green, blue byte) error {
	return l.write([]byte{0x56, red, green, blue, 0x00, 0xF0, 0xAA})
}

func (l *bleLight) write(b []byte) error {
	_, err := l.char.WriteWithoutResponse(b)
	return err
}

func (l *bleLight) Disconnect() error {
	l.dev.Disconnect()
	return nil
}

// Connect enables the BLE stack and connects to every configured light.
func Connect(lights map[string]config.LightConfig) (map[string]Light, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable ble stack: %w", err)
	}

	devs, err := connectToLights(lights)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lights: %w", err)
	}

	chars, err := getCharacteristics(devs)
	if err != nil {
		disconnectAll(devs)
		return nil, fmt.Errorf("failed to get characteristics: %w", err)
	}

	out := make(map[string]Light, len(devs))
	for ln, d := range devs {
		out[ln] = &bleLight{dev: d, char: chars[ln]}
	}
	return out, nil
}

func getCharacteristics(devs map[string]*bluetooth.Device) (map[string]*bluetooth.DeviceCharacteristic, error) {
	finalCharacteristics := make(map[string]*bluetooth.DeviceCharacteristic)
	serWID := bluetooth.New16BitUUID(0xFFD5)
	charWID := bluetooth.New16BitUUID(0xFFD9)
	serRID := bluetooth.New16BitUUID(0xFFD0)

	for dn, dev := range devs {
		log.Debugf("looking for services: %v %v", serWID, serRID)
		ser, err := dev.DiscoverServices([]bluetooth.UUID{serWID, serRID})
		if err != nil {
			return nil, fmt.Errorf("failed to discover services for light[%v]: %w", dn, err)
		}
		if len(ser) < 2 {
			return nil, fmt.Errorf("failed to discover enough services for light[%v]: %v", dn, len(ser))
		}

		wChars, err := ser[0].DiscoverCharacteristics([]bluetooth.UUID{charWID})
		if err != nil {
			return nil, fmt.Errorf("failed to discover write characteristic for light[%v]: %w", dn, err)
		}
		if len(wChars) < 1 {
			return nil, fmt.Errorf("failed to discover enough characteristics for light[%v]: %v", dn, len(wChars))
		}

		finalCharacteristics[dn] = &wChars[0]
	}

	return finalCharacteristics, nil
}

// Scan reports advertising BLE devices until ctx is done.
func Scan(ctx context.Context, found func(ScanResult)) error {
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable ble stack: %w", err)
	}
	if ctx.Err() != nil {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		adapter.StopScan()
	})
	defer stop()

	log.Info("scanning...")
	err := adapter.Scan(func(_ *bluetooth.Adapter, device bluetooth.ScanResult) {
		found(ScanResult{
			Address: device.Address.String(),
			RSSI:    int(device.RSSI),
			Name:    device.LocalName(),
		})
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to scan for ble devices: %w", err)
	}
	return nil
}

func disconnectAll(devs map[string]*bluetooth.Device) {
	for _, d := range devs {
		d.Disconnect()
	}
}
