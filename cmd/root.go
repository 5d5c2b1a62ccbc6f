package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kpelzel/kinet/internal/config"
	"github.com/kpelzel/kinet/internal/logging"
)

var (
	debug      bool
	configPath string

	cfg       *config.Config
	logCloser io.Closer

	RootCmd = &cobra.Command{
		Use:   "kinet",
		Short: "talk to KiNet lighting supplies",
		Long:  "Discover, drive, emulate and inspect KiNet power supplies on the local network",

		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
	}
)

var flagKeys = map[string]string{
	"interface":    "network.interface",
	"address":      "network.address",
	"netmask":      "network.netmask",
	"port":         "network.port",
	"metrics-addr": "metrics.addr",
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Errorf("failed to execute command: %v", err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debugging")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file location")
	RootCmd.PersistentFlags().String("interface", "", "network interface to use")
	RootCmd.PersistentFlags().String("address", "", "local IPv4 address, overrides --interface")
	RootCmd.PersistentFlags().String("netmask", "", "subnet mask of --address")
	RootCmd.PersistentFlags().Int("port", 6038, "KiNet UDP port")
	RootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	flags := make(map[string]*pflag.Flag, len(flagKeys))
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			flags[key] = f
		}
	}

	c, err := config.Load(config.Options{
		Path:     configPath,
		Required: cmd.Flags().Changed("config"),
		Flags:    flags,
	})
	if err != nil {
		return err
	}

	closer, err := logging.Setup(log.StandardLogger(), c.Log, debug)
	if err != nil {
		return err
	}

	cfg = c
	logCloser = closer
	log.Debugf("config: %+v", cfg)
	return nil
}
