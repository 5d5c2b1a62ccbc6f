package cmd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kpelzel/kinet/internal/bridge"
)

var (
	scanDuration time.Duration

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Scan for available BLE Devices",
		Long:  "Scan for available BLE Devices, to find the addresses of bridge lights",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), scanDuration)
			defer cancel()

			return bridge.Scan(ctx, func(r bridge.ScanResult) {
				log.Infof("found device: %v %v %v", r.Address, r.RSSI, r.Name)
			})
		},
	}
)

func init() {
	scanCmd.Flags().DurationVar(&scanDuration, "duration", 10*time.Second, "how long to scan")
	RootCmd.AddCommand(scanCmd)
}
