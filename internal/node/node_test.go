package node

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/config"
	"github.com/kprusa/dctsim/internal/energy"
	"github.com/kprusa/dctsim/internal/report"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/kprusa/dctsim/internal/routing"
	"github.com/kprusa/dctsim/internal/scene"
)

// fakeKernel is an in-memory, synchronous node.Kernel for unit tests: it
// applies Send immediately (no radio range modeling) and records timers
// rather than scheduling them, in the style of the teacher's own
// channel-stub tests (node_test.go).
type fakeKernel struct {
	now     float64
	rng     *rand.Rand
	timers  map[int]map[string]bool
	sent    []Packet
	targets map[int]*Node
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{rng: rand.New(rand.NewSource(1)), timers: make(map[int]map[string]bool), targets: make(map[int]*Node)}
}

func (k *fakeKernel) Now() float64       { return k.now }
func (k *fakeKernel) Rand() *rand.Rand   { return k.rng }
func (k *fakeKernel) SetTimer(nodeID int, name string, delay float64) {
	if k.timers[nodeID] == nil {
		k.timers[nodeID] = make(map[string]bool)
	}
	k.timers[nodeID][name] = true
}
func (k *fakeKernel) KillTimer(nodeID int, name string) { delete(k.timers[nodeID], name) }
func (k *fakeKernel) KillAllTimers(nodeID int)          { delete(k.timers, nodeID) }
func (k *fakeKernel) DelayedExec(delay float64, fn func()) { fn() }
func (k *fakeKernel) Send(from int, pkt Packet) {
	k.sent = append(k.sent, pkt)
	for id, n := range k.targets {
		if id != from {
			n.Receive(pkt)
		}
	}
}

func testEnv(t *testing.T, kern *fakeKernel) *Environment {
	t.Helper()
	return &Environment{
		Kernel: kern, Reporter: report.Noop{}, Scene: scene.Noop{}, Config: config.Default(), Ctx: NewContext(), Log: zaptest.NewLogger(t),
	}
}

func testEnergyParams(cfg *config.Config) energy.Params {
	return energy.Params{
		VoltageV: cfg.Voltage, DataRateBps: cfg.DataRate, PsduBytes: cfg.EnergyPsduBytes,
		TxTurnaroundJ: cfg.TxTurnaroundEnergyJ, RxTurnaroundJ: cfg.RxTurnaroundEnergyJ,
		RxCurrentMa: cfg.RxCurrentMa, TxCurrentLevelsMa: cfg.TxCurrentLevelsMa, TxRangesByLevel: cfg.NodeTxRanges,
	}
}

func newTestNode(t *testing.T, id int, env *Environment, rootEligible bool) *Node {
	t.Helper()
	n := New(id, Point{X: float64(id) * 10, Y: 0}, env, testEnergyParams(env.Config), rootEligible)
	env.Ctx.NodePos[id] = Point{X: float64(id) * 10, Y: 0}
	env.Ctx.AllNodes = append(env.Ctx.AllNodes, n)
	return n
}

func TestBecomeRoot_SetsFixedAddress(t *testing.T) {
	kern := newFakeKernel()
	env := testEnv(t, kern)
	n := newTestNode(t, 0, env, true)
	kern.targets[0] = n

	n.becomeRoot()

	assert.Equal(t, role.Root, n.Role)
	assert.True(t, n.Addr.IsEqual(addr.Root))
	assert.Equal(t, 0, n.HopCount)
	assert.True(t, kern.timers[0][TimerHeartBeat])
	assert.True(t, kern.timers[0][TimerTableShare])
}

func TestWake_ArmsProbeTimer(t *testing.T) {
	kern := newFakeKernel()
	env := testEnv(t, kern)
	n := newTestNode(t, 1, env, false)
	kern.targets[1] = n

	n.Wake(5)

	assert.Equal(t, 5.0, n.WakeTime)
	assert.True(t, kern.timers[1][TimerProbe])
}

func TestHandleHeartBeat_UndiscoveredBecomesUnregistered(t *testing.T) {
	kern := newFakeKernel()
	env := testEnv(t, kern)
	n := newTestNode(t, 1, env, false)
	kern.targets[1] = n
	require.Equal(t, role.Undiscovered, n.Role)

	chAddr := addr.Addr{NetAddr: 1, NodeAddr: 0}
	root := addr.Root
	srcGUI := 9
	hop := 1
	n.handleHeartBeat(Packet{
		Type: HeartBeat, GUI: &srcGUI, ChAddr: &chAddr, RootAddr: &root, HopCount: &hop,
		SenderRole: role.ClusterHead,
	})

	assert.Equal(t, role.Unregistered, n.Role)
	assert.Contains(t, n.CandidateParentsTable, srcGUI)
	assert.True(t, kern.timers[1][TimerJoinRequest])
}

func TestSelectAndJoin_PicksLowestHopCandidate(t *testing.T) {
	kern := newFakeKernel()
	env := testEnv(t, kern)
	n := newTestNode(t, 1, env, false)
	n.Role = role.Unregistered
	n.CandidateParentsTable[2] = routing.NeighborEntry{GUI: 2, HopCount: 3, Role: role.ClusterHead}
	n.CandidateParentsTable[3] = routing.NeighborEntry{GUI: 3, HopCount: 1, Role: role.ClusterHead}

	n.selectAndJoin()

	require.Len(t, kern.sent, 1)
	assert.Equal(t, JoinRequest, kern.sent[0].Type)
	assert.Equal(t, 1, n.JoinReqAttempts[3])
}

func TestKill_MarksFailedAndReorganizesChild(t *testing.T) {
	kern := newFakeKernel()
	env := testEnv(t, kern)
	parent := newTestNode(t, 0, env, true)
	child := newTestNode(t, 1, env, false)
	kern.targets[0], kern.targets[1] = parent, child

	parentGUI := 0
	child.ParentGUI = &parentGUI
	child.Role = role.Registered
	parent.Role = role.ClusterHead

	parent.Kill()

	assert.True(t, parent.IsFailed())
	assert.Nil(t, child.ParentGUI)
	assert.Equal(t, role.Unregistered, child.Role)
}
