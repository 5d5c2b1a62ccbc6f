package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kpelzel/kinet/internal/bridge"
	"github.com/kpelzel/kinet/internal/supply"
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Pretend to be a KiNet supply",
	Long:  "Answer discovery as the configured supply and, with bridge lights configured, drive BLE lights from the DMX it receives",
	RunE:  runEmulate,
}

func init() {
	RootCmd.AddCommand(emulateCmd)
}

func runEmulate(cmd *cobra.Command, args []string) error {
	id, err := supply.IdentityFromConfig(cfg.Supply)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

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

	g, gctx := errgroup.WithContext(ctx)

	var sink supply.FrameSink = supply.FrameSinkFunc(func(f supply.Frame) {
		log.Debugf("frame from %v port %d: %d channels", f.Source, f.Port, len(f.Data))
	})
	if len(cfg.Bridge.Lights) > 0 {
		lights, err := bridge.Connect(cfg.Bridge.Lights)
		if err != nil {
			return err
		}
		defer bridge.Disconnect(lights)

		b := bridge.New(cfg.Bridge, lights, nil)
		g.Go(func() error { return b.Run(gctx) })
		sink = b
	}

	em := supply.New(c, id, sink, nil)
	g.Go(func() error {
		defer cancel()
		return em.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return c.Err()
}
