package bridge

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/kpelzel/kinet/internal/config"
)

func connectToLights(lights map[string]config.LightConfig) (map[string]*bluetooth.Device, error) {
	finalDevs := make(map[string]*bluetooth.Device)

	for ln, l := range lights {
		mac, err := bluetooth.ParseMAC(l.MAC)
		if err != nil {
			disconnectAll(finalDevs)
			return nil, fmt.Errorf("failed to parse mac address[%v]: %w", l.MAC, err)
		}

		address := bluetooth.Address{
			MACAddress: bluetooth.MACAddress{
				MAC: mac,
			},
		}

		log.Infof("connecting to light[%v] at %v...", ln, l.MAC)
		dev, err := adapter.Connect(address, bluetooth.ConnectionParams{})
		if err != nil {
			disconnectAll(finalDevs)
			return nil, fmt.Errorf("failed to connect to light[%v]: %w", ln, err)
		}
		log.Infof("successfully connected to light[%v] at %v", ln, l.MAC)

		finalDevs[ln] = dev
	}

	return finalDevs, nil
}
