package cmd

import (
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kpelzel/kinet/internal/client"
	"github.com/kpelzel/kinet/internal/packet"
)

// QuickPlay Pro sends this many DiscoverSupplies2Requests before it asks
// supplies to identify themselves.
const quickPlayRequests = 10

var (
	discoverTimeout   time.Duration
	discoverQuickPlay bool
	discoverOutput    string

	discoverCmd = &cobra.Command{
		Use:   "discover",
		Short: "Find KiNet supplies on the network",
		Long:  "Broadcast a discovery request, collect the answers and list the supplies and their ports",
		RunE:  runDiscover,
	}
)

func init() {
	discoverCmd.Flags().DurationVarP(&discoverTimeout, "timeout", "t", 3*time.Second, "how long to wait for answers")
	discoverCmd.Flags().BoolVar(&discoverQuickPlay, "quickplay", false, "discover the way QuickPlay Pro does")
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", "table", "output format: table or yaml")
	RootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if discoverOutput != "table" && discoverOutput != "yaml" {
		return fmt.Errorf("unknown output format %q", discoverOutput)
	}

	c, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	packets, cancel := c.Subscribe(64)
	defer cancel()

	if discoverQuickPlay {
		for range quickPlayRequests {
			if err := c.SendPacket(packet.NewDiscoverSupplies2Request(), netip.Addr{}); err != nil {
				return err
			}
		}
	}
	if err := c.SendPacket(packet.NewDiscoverSuppliesRequest(c.LocalAddress()), netip.Addr{}); err != nil {
		return err
	}
	log.Infof("waiting %v for supplies on %v...", discoverTimeout, c.BroadcastAddress())

	inv := newInventory()
	timeout := time.After(discoverTimeout)
loop:
	for {
		select {
		case <-cmd.Context().Done():
			break loop
		case <-timeout:
			break loop
		case rp, ok := <-packets:
			if !ok {
				break loop
			}
			if inv.add(rp) {
				if err := c.SendPacket(&packet.DiscoverPortsRequest{}, rp.Source.Addr()); err != nil {
					log.Warnf("failed to ask %v for its ports: %v", rp.Source.Addr(), err)
				}
			}
		}
	}
	if err := c.Err(); err != nil {
		return err
	}

	log.Infof("found %d supplies", len(inv.order))
	if discoverOutput == "yaml" {
		return inv.writeYAML(cmd.OutOrStdout())
	}
	return inv.writeTable(cmd.OutOrStdout())
}

type portInfo struct {
	ID   uint8  `yaml:"id"`
	Type string `yaml:"type"`
}

type supplyInfo struct {
	Address         string     `yaml:"address"`
	MAC             string     `yaml:"mac"`
	Serial          string     `yaml:"serial"`
	Model           string     `yaml:"model"`
	Details         string     `yaml:"details"`
	ProtocolVersion uint16     `yaml:"protocol_version"`
	Ports           []portInfo `yaml:"ports,omitempty"`
}

type inventory struct {
	supplies map[netip.Addr]*supplyInfo
	order    []netip.Addr
}

func newInventory() *inventory {
	return &inventory{supplies: make(map[netip.Addr]*supplyInfo)}
}

// add records rp and reports whether its sender should be asked for its
// ports.
func (inv *inventory) add(rp client.ReceivedPacket) bool {
	src := rp.Source.Addr()
	switch p := rp.Packet.(type) {
	case *packet.DiscoverSuppliesResponse:
		if _, seen := inv.supplies[src]; seen {
			return false
		}
		log.Debugf("supply %v answered: %s (v%d)", src, p.Model, p.ProtocolVersion)
		inv.supplies[src] = &supplyInfo{
			Address:         src.String(),
			MAC:             net.HardwareAddr(p.MAC[:]).String(),
			Serial:          fmt.Sprintf("%x", p.Serial),
			Model:           p.Model,
			Details:         p.Details,
			ProtocolVersion: p.ProtocolVersion,
		}
		inv.order = append(inv.order, src)
		return p.ProtocolVersion >= packet.V2

	case *packet.DiscoverPortsResponse:
		s, ok := inv.supplies[src]
		if !ok {
			log.Debugf("ports from unknown supply %v", src)
			return false
		}
		s.Ports = s.Ports[:0]
		for _, port := range p.Ports {
			s.Ports = append(s.Ports, portInfo{ID: port.ID, Type: port.Type.String()})
		}
	}
	return false
}

func (inv *inventory) list() []supplyInfo {
	out := make([]supplyInfo, 0, len(inv.order))
	for _, a := range inv.order {
		out = append(out, *inv.supplies[a])
	}
	return out
}

func (inv *inventory) writeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]supplyInfo{"supplies": inv.list()}); err != nil {
		return err
	}
	return enc.Close()
}

func (inv *inventory) writeTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tMAC\tSERIAL\tMODEL\tVERSION\tPORTS")
	for _, s := range inv.list() {
		ports := make([]string, 0, len(s.Ports))
		for _, p := range s.Ports {
			ports = append(ports, fmt.Sprintf("%d:%s", p.ID, p.Type))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.Address, s.MAC, s.Serial, s.Model, s.ProtocolVersion, strings.Join(ports, ","))
	}
	return tw.Flush()
}
