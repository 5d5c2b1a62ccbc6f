package bridge

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/kpelzel/kinet/internal/config"
)

const findTimeout = 5 * time.Second

// connectToLights addresses lights by CoreBluetooth UUID. A light has to be
// seen in a scan before it can be connected.
func connectToLights(lights map[string]config.LightConfig) (map[string]*bluetooth.Device, error) {
	finalDevs := make(map[string]*bluetooth.Device)

	for ln, l := range lights {
		uuid, err := bluetooth.ParseUUID(l.UUID)
		if err != nil {
			disconnectAll(finalDevs)
			return nil, fmt.Errorf("failed to parse uuid address[%v]: %w", l.UUID, err)
		}

		address := bluetooth.Address{
			UUID: uuid,
		}

		scanChan := make(chan error, 1)
		go func() {
			log.Infof("scanning for light[%v] at %v...", ln, uuid.String())
			err := adapter.Scan(func(adapter *bluetooth.Adapter, device bluetooth.ScanResult) {
				if device.Address.String() == uuid.String() {
					select {
					case scanChan <- nil:
					default:
					}
				}
			})
			if err != nil {
				scanChan <- fmt.Errorf("failed to scan for ble devices: %w", err)
			}
		}()

		select {
		case scanRes := <-scanChan:
			if scanRes != nil {
				disconnectAll(finalDevs)
				return nil, fmt.Errorf("error while scanning for light[%v] at %v: %w", ln, l.UUID, scanRes)
			}
			log.Infof("found light[%v] at %v", ln, l.UUID)
			adapter.StopScan()
		case <-time.After(findTimeout):
			adapter.StopScan()
			disconnectAll(finalDevs)
			return nil, fmt.Errorf("failed to find light[%v] at %v. Is it in range?", ln, l.UUID)
		}

		log.Infof("connecting to light[%v] at %v...", ln, l.UUID)
		dev, err := adapter.Connect(address, bluetooth.ConnectionParams{})
		if err != nil {
			disconnectAll(finalDevs)
			return nil, fmt.Errorf("failed to connect to light[%v]: %w", ln, err)
		}
		log.Infof("successfully connected to light[%v] at %v", ln, l.UUID)

		finalDevs[ln] = dev
	}

	return finalDevs, nil
}
