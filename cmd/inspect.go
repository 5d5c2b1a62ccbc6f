package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kpelzel/kinet/internal/capture"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.pcap>",
	Short: "Decode KiNet traffic from a capture file",
	Long:  "Read a pcap file and decode every UDP datagram on the KiNet port",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	RootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	sum, err := capture.Read(f, uint16(cfg.Network.Port), func(r capture.Record) error {
		_, err := fmt.Fprintln(out, describe(r))
		return err
	})
	if err != nil {
		return err
	}

	log.Infof("%d frames, %d KiNet datagrams: %d decoded, %d unknown, %d errors",
		sum.Frames, sum.Datagrams, sum.Decoded, sum.Unknown, sum.Errors)
	return nil
}

func describe(r capture.Record) string {
	head := fmt.Sprintf("%5d %s %v -> %v", r.Index, r.Timestamp.Format("15:04:05.000000"), r.Source, r.Destination)
	switch {
	case r.Err != nil:
		return head + " error: " + r.Err.Error()
	case r.Packet == nil:
		return head + " unknown"
	default:
		return fmt.Sprintf("%s %T %+v", head, r.Packet, r.Packet)
	}
}
