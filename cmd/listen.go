package cmd

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Log KiNet packets seen on the network",
	Long:  "Log every decoded KiNet packet with the time since the previous one",
	RunE:  runListen,
}

func init() {
	RootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	packets, cancel := c.Subscribe(256)
	defer cancel()

	log.Infof("listening on port %d for KiNet packets", c.Port())
	var prev time.Duration
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case rp, ok := <-packets:
			if !ok {
				return c.Err()
			}
			log.WithFields(log.Fields{
				"src":   rp.Source,
				"dst":   rp.Destination,
				"seq":   rp.Packet.Seq(),
				"delta": rp.Timestamp - prev,
			}).Infof("%T", rp.Packet)
			log.Debugf("%+v", rp.Packet)
			prev = rp.Timestamp
		}
	}
}
