package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpelzel/kinet/internal/config"
	"github.com/kpelzel/kinet/internal/supply"
)

type fakeLight struct {
	mu     sync.Mutex
	on     bool
	colors [][3]byte
	failOn error
}

func (f *fakeLight) On() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != nil {
		return f.failOn
	}
	f.on = true
	return nil
}

func (f *fakeLight) Off() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = false
	return nil
}

func (f *fakeLight) SetColor(r, g, b byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.colors = append(f.colors, [3]byte{r, g, b})
	return nil
}

func (f *fakeLight) Disconnect() error { return nil }

func (f *fakeLight) seen() [][3]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][3]byte(nil), f.colors...)
}

func testConfig() config.BridgeConfig {
	return config.BridgeConfig{
		Port: 1,
		Lights: map[string]config.LightConfig{
			"left":  {RedByte: 0, GreenByte: 1, BlueByte: 2},
			"right": {RedByte: 5, GreenByte: 4, BlueByte: 3},
		},
	}
}

func newTestBridge(t *testing.T) (*Bridge, *fakeLight, *fakeLight) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	left, right := &fakeLight{}, &fakeLight{}
	b := New(testConfig(), map[string]Light{"left": left, "right": right}, logger)
	return b, left, right
}

func queued(b *Bridge) []color {
	var out []color
	for {
		select {
		case c := <-b.colorChan:
			out = append(out, c)
		default:
			return out
		}
	}
}

func TestBridge_ExtractsChannels(t *testing.T) {
	b, _, _ := newTestBridge(t)

	b.HandleFrame(supply.Frame{Port: 1, Data: []byte{10, 20, 30, 40, 50, 60}})

	assert.Equal(t, []color{
		{light: "left", Red: 10, Green: 20, Blue: 30},
		{light: "right", Red: 60, Green: 50, Blue: 40},
	}, queued(b))
}

func TestBridge_SkipsRepeatedFrames(t *testing.T) {
	b, _, _ := newTestBridge(t)
	data := []byte{1, 2, 3, 4, 5, 6}

	b.HandleFrame(supply.Frame{Port: 1, Data: data})
	data[0] = 9 // the bridge keeps its own copy
	b.HandleFrame(supply.Frame{Port: 1, Data: []byte{1, 2, 3, 4, 5, 6}})
	assert.Len(t, queued(b), 2)

	b.HandleFrame(supply.Frame{Port: 1, Data: []byte{1, 2, 3, 4, 5, 7}})
	assert.Len(t, queued(b), 2)
}

func TestBridge_FiltersPort(t *testing.T) {
	b, _, _ := newTestBridge(t)
	b.HandleFrame(supply.Frame{Port: 2, Data: []byte{1, 2, 3, 4, 5, 6}})
	assert.Empty(t, queued(b))

	cfg := testConfig()
	cfg.Port = 0
	all := New(cfg, map[string]Light{"left": &fakeLight{}}, nil)
	all.HandleFrame(supply.Frame{Port: 7, Data: []byte{1, 2, 3}})
	assert.Equal(t, []color{{light: "left", Red: 1, Green: 2, Blue: 3}}, queued(all))
}

func TestBridge_ShortFrame(t *testing.T) {
	b, _, _ := newTestBridge(t)
	b.HandleFrame(supply.Frame{Port: 1, Data: []byte{1, 2, 3}})
	assert.Equal(t, []color{{light: "left", Red: 1, Green: 2, Blue: 3}}, queued(b))
}

func TestBridge_DropsWhenBusy(t *testing.T) {
	b, _, _ := newTestBridge(t)
	b.colorChan = make(chan color, 1)

	b.HandleFrame(supply.Frame{Port: 1, Data: []byte{1, 2, 3, 4, 5, 6}})
	assert.Equal(t, []color{{light: "left", Red: 1, Green: 2, Blue: 3}}, queued(b))
}

func TestBridge_Run(t *testing.T) {
	b, left, right := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	b.HandleFrame(supply.Frame{Port: 1, Data: []byte{1, 2, 3, 4, 5, 6}})
	assert.Eventually(t, func() bool {
		return len(left.seen()) == 1 && len(right.seen()) == 1
	}, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.True(t, left.on)
	assert.Equal(t, [][3]byte{{1, 2, 3}}, left.seen())
	assert.Equal(t, [][3]byte{{6, 5, 4}}, right.seen())
}

func TestBridge_RunFailsToTurnOn(t *testing.T) {
	boom := errors.New("boom")
	b := New(testConfig(), map[string]Light{"left": &fakeLight{failOn: boom}}, nil)

	err := b.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
