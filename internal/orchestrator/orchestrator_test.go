package orchestrator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kprusa/dctsim/internal/config"
	"github.com/kprusa/dctsim/internal/energy"
	"github.com/kprusa/dctsim/internal/node"
	"github.com/kprusa/dctsim/internal/report"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/kprusa/dctsim/internal/scene"
)

type stubKernel struct{ now float64 }

func (s *stubKernel) Now() float64                                  { return s.now }
func (s *stubKernel) Rand() *rand.Rand                               { return rand.New(rand.NewSource(1)) }
func (s *stubKernel) SetTimer(nodeID int, name string, delay float64) {}
func (s *stubKernel) KillTimer(nodeID int, name string)              {}
func (s *stubKernel) KillAllTimers(nodeID int)                       {}
func (s *stubKernel) Send(from int, pkt node.Packet)                 {}
func (s *stubKernel) DelayedExec(delay float64, fn func())           { fn() }

func newTestOrchestrator(t *testing.T, n int) (*Orchestrator, *node.Context) {
	t.Helper()
	cfg := config.Default()
	cfg.NumNodesToKill = 2
	ctx := node.NewContext()
	kern := &stubKernel{}
	env := &node.Environment{Kernel: kern, Reporter: report.Noop{}, Scene: scene.Noop{}, Config: cfg, Ctx: ctx, Log: zaptest.NewLogger(t)}
	ep := energy.Params{VoltageV: cfg.Voltage, DataRateBps: cfg.DataRate, PsduBytes: cfg.EnergyPsduBytes, TxCurrentLevelsMa: cfg.TxCurrentLevelsMa, TxRangesByLevel: cfg.NodeTxRanges}
	for i := 0; i < n; i++ {
		nd := node.New(i, node.Point{X: float64(i)}, env, ep, i == 0)
		ctx.AllNodes = append(ctx.AllNodes, nd)
		ctx.NodePos[i] = node.Point{X: float64(i)}
	}
	return New(cfg, ctx, report.Noop{}, zaptest.NewLogger(t), rand.New(rand.NewSource(1))), ctx
}

func TestTriggerFailures_KillsConfiguredCount(t *testing.T) {
	o, ctx := newTestOrchestrator(t, 5)
	o.TriggerFailures()

	failed := 0
	for _, n := range ctx.AllNodes {
		if n.IsFailed() {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}

func TestTriggerFailures_NeverKillsRoot(t *testing.T) {
	o, ctx := newTestOrchestrator(t, 2)
	ctx.AllNodes[0].Role = role.Root
	o.cfg.NumNodesToKill = 2
	o.TriggerFailures()

	assert.False(t, ctx.AllNodes[0].IsFailed())
}

func TestTriggerRecovery_RevivesKilledNodes(t *testing.T) {
	o, ctx := newTestOrchestrator(t, 3)
	o.TriggerFailures()
	require.Greater(t, len(o.killedGUIs), 0)

	o.TriggerRecovery(10)

	for _, n := range ctx.AllNodes {
		assert.False(t, n.IsFailed())
	}
}

func TestCheckNetworkDeath_SetsTimeOnceThresholdReached(t *testing.T) {
	o, ctx := newTestOrchestrator(t, 4)
	o.cfg.NumNodesToKill = 3
	o.cfg.NetworkDeathThreshold = 0.5
	o.TriggerFailures()

	o.CheckNetworkDeath(42)

	require.NotNil(t, ctx.NetworkDeathTime)
	assert.Equal(t, 42.0, *ctx.NetworkDeathTime)
}
