package simkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/config"
	"github.com/kprusa/dctsim/internal/node"
	"github.com/kprusa/dctsim/internal/report"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/kprusa/dctsim/internal/scene"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.SimNodeCount = 6
	cfg.SimDuration = 300
	cfg.NodeArrivalMax = 5
	cfg.SimTerrainSize.X, cfg.SimTerrainSize.Y = 150, 150
	cfg.FailureTime = 1e9
	cfg.RecoveryTime = 1e9 + 1
	cfg.PowerSamplingInterval = 50
	return cfg
}

func TestRun_ElectsExactlyOneRoot(t *testing.T) {
	cfg := smallConfig()
	sim := New(cfg, report.Noop{}, scene.Noop{}, zaptest.NewLogger(t))
	sim.Run()

	roots := 0
	for _, n := range sim.ctx.AllNodes {
		if n.Role == role.Root {
			roots++
		}
	}
	assert.Equal(t, 1, roots)
}

func TestSetTimer_ReplacesExistingTimerUnderSameKey(t *testing.T) {
	cfg := smallConfig()
	sim := New(cfg, report.Noop{}, scene.Noop{}, zaptest.NewLogger(t))

	sim.SetTimer(0, "X", 10)
	first := sim.timers[0]["X"]
	sim.SetTimer(0, "X", 20)
	second := sim.timers[0]["X"]

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.True(t, first.killed)
	assert.False(t, second.killed)
}

func TestKillAllTimers_RemovesEveryEntryForNode(t *testing.T) {
	cfg := smallConfig()
	sim := New(cfg, report.Noop{}, scene.Noop{}, zaptest.NewLogger(t))

	sim.SetTimer(1, "A", 1)
	sim.SetTimer(1, "B", 2)
	sim.KillAllTimers(1)

	assert.Empty(t, sim.timers[1])
}

func TestSend_DropsOutOfRangePackets(t *testing.T) {
	cfg := smallConfig()
	cfg.PacketLossRatio = 0
	sim := New(cfg, report.Noop{}, scene.Noop{}, zaptest.NewLogger(t))

	sim.ctx.NodePos[1] = node.Point{X: sim.ctx.NodePos[0].X + 100000, Y: sim.ctx.NodePos[0].Y}

	before := sim.nodesByGUI[1].RxPacketCount
	gui := 0
	sim.Send(0, node.Packet{Type: node.Probe, Dest: addr.Broadcast, GUI: &gui})
	assert.Equal(t, before, sim.nodesByGUI[1].RxPacketCount)
}
