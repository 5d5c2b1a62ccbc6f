// Package bridge drives BLE RGB lights from DMX frames received by the
// supply emulator.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/kpelzel/kinet/internal/config"
	"github.com/kpelzel/kinet/internal/supply"
)

// ErrUnsupportedPlatform is returned by Connect and Scan where no BLE
// backend is available.
var ErrUnsupportedPlatform = errors.New("bridge: bluetooth is not supported on this platform")

const colorQueueSize = 1000

type Light interface {
	On() error
	Off() error
	SetColor(red, green, blue byte) error
	Disconnect() error
}

type color struct {
	light string
	Red   byte
	Green byte
	Blue  byte
}

// Bridge maps the channels of one supply port onto lights. Colors are
// written by a single goroutine started by Run; frames arriving while it is
// busy are dropped.
type Bridge struct {
	port     uint8
	lights   map[string]Light
	channels map[string]config.LightConfig
	log      log.FieldLogger

	colorChan chan color
	prevValue []byte
}

// New creates a bridge. A configured port of 0 accepts frames for any port.
func New(cfg config.BridgeConfig, lights map[string]Light, logger log.FieldLogger) *Bridge {
	if logger == nil {
		logger = log.WithField("component", "bridge")
	}
	return &Bridge{
		port:      uint8(cfg.Port),
		lights:    lights,
		channels:  cfg.Lights,
		log:       logger,
		colorChan: make(chan color, colorQueueSize),
	}
}

var _ supply.FrameSink = (*Bridge)(nil)

func (b *Bridge) HandleFrame(f supply.Frame) {
	if b.port != 0 && f.Port != b.port {
		return
	}
	if bytes.Equal(b.prevValue, f.Data) {
		return
	}
	b.log.Debugf("new frame different than previous: %v vs %v", b.prevValue, f.Data)
	b.prevValue = bytes.Clone(f.Data)

	for _, ln := range b.names() {
		ch := b.channels[ln]
		if ch.RedByte >= len(f.Data) || ch.GreenByte >= len(f.Data) || ch.BlueByte >= len(f.Data) {
			b.log.Debugf("frame of %d channels too short for light[%v]", len(f.Data), ln)
			continue
		}
		c := color{
			light: ln,
			Red:   f.Data[ch.RedByte],
			Green: f.Data[ch.GreenByte],
			Blue:  f.Data[ch.BlueByte],
		}
		b.log.Debugf("sending light[%v] red: %v green: %v blue: %v", ln, c.Red, c.Green, c.Blue)

		select {
		case b.colorChan <- c:
		default:
			b.log.Debug("bluetooth busy, color not sent")
		}
	}
}

// Run turns the lights on and writes queued colors until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	for _, ln := range b.names() {
		if err := b.lights[ln].On(); err != nil {
			return fmt.Errorf("failed to turn on light[%v]: %w", ln, err)
		}
	}
	b.listenForColor(ctx)
	return nil
}

func (b *Bridge) listenForColor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-b.colorChan:
			if err := b.lights[c.light].SetColor(c.Red, c.Green, c.Blue); err != nil {
				b.log.Errorf("failed to set color for light[%v]: %v", c.light, err)
			}
		}
	}
}

func (b *Bridge) names() []string {
	names := make([]string, 0, len(b.channels))
	for ln := range b.channels {
		if _, ok := b.lights[ln]; ok {
			names = append(names, ln)
		}
	}
	sort.Strings(names)
	return names
}

func Disconnect(lights map[string]Light) {
	for ln, l := range lights {
		if err := l.Disconnect(); err != nil {
			log.Warnf("failed to disconnect light[%v]: %v", ln, err)
		}
	}
}

type ScanResult struct {
	Address string
	RSSI    int
	Name    string
}
