package cmd

import (
	"fmt"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kpelzel/kinet/internal/client"
	"github.com/kpelzel/kinet/internal/packet"
)

var (
	sendTo        string
	sendRate      float64
	sendCount     int
	sendUniverse  uint8
	sendVersion   uint16
	sendStartCode uint8
	sendChannels  int
	sendLevel     uint8
	sendChase     bool
	sendSync      bool

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "Stream DMX frames to supplies",
		Long:  "Send DMX frames at a fixed rate, as DmxOut (protocol v1) or PortOut (protocol v2)",
		RunE:  runSend,
	}
)

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "supply address, broadcast when empty")
	sendCmd.Flags().Float64Var(&sendRate, "rate", 40, "frames per second")
	sendCmd.Flags().IntVarP(&sendCount, "count", "n", 0, "stop after this many frames, 0 runs until interrupted")
	sendCmd.Flags().Uint8VarP(&sendUniverse, "universe", "u", 1, "port number for protocol v2")
	sendCmd.Flags().Uint16Var(&sendVersion, "protocol", packet.V1, "protocol version, 1 or 2")
	sendCmd.Flags().Uint8Var(&sendStartCode, "start-code", 0, "DMX start code for protocol v2")
	sendCmd.Flags().IntVar(&sendChannels, "channels", 512, "channels per frame")
	sendCmd.Flags().Uint8Var(&sendLevel, "level", 255, "channel level")
	sendCmd.Flags().BoolVar(&sendChase, "chase", false, "light one channel at a time")
	sendCmd.Flags().BoolVar(&sendSync, "sync", false, "follow every frame with a sync packet")
	RootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendRate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", sendRate)
	}
	if sendChannels < 1 || sendChannels > 512 {
		return fmt.Errorf("channels must be 1-512, got %d", sendChannels)
	}
	var dst netip.Addr
	if sendTo != "" {
		a, err := netip.ParseAddr(sendTo)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		dst = a
	}

	ctx := cmd.Context()
	c, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	stopMetrics, err := startMetrics(ctx, c)
	if err != nil {
		return err
	}
	defer stopMetrics()

	opts := client.DmxOptions{ProtocolVersion: sendVersion, StartCode: sendStartCode}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / sendRate))
	defer ticker.Stop()

	log.Infof("sending %d channels at %v fps to %v", sendChannels, sendRate, destinationName(dst, c))
	for i := 0; sendCount == 0 || i < sendCount; i++ {
		if err := c.SendDmxData(dst, sendUniverse, frame(i, sendChannels, sendLevel, sendChase), opts); err != nil {
			return err
		}
		if sendSync {
			if err := c.SendSync(dst); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return c.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func frame(i, channels int, level uint8, chase bool) []byte {
	data := make([]byte, channels)
	if chase {
		data[i%channels] = level
		return data
	}
	for ch := range data {
		data[ch] = level
	}
	return data
}

func destinationName(dst netip.Addr, c *client.Client) string {
	if !dst.IsValid() {
		return c.BroadcastAddress().String() + " (broadcast)"
	}
	return dst.String()
}
