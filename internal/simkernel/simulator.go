package simkernel

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/kprusa/dctsim/internal/config"
	"github.com/kprusa/dctsim/internal/energy"
	"github.com/kprusa/dctsim/internal/node"
	"github.com/kprusa/dctsim/internal/orchestrator"
	"github.com/kprusa/dctsim/internal/report"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/kprusa/dctsim/internal/scene"
)

// Simulator is the cooperative event-loop kernel: it implements
// node.Kernel so every Node calls back into it for time, timers, the
// radio, and the PRNG, and it owns the min-heap event queue that drives
// the whole run (spec.md §5, §6).
type Simulator struct {
	cfg *config.Config
	ctx *node.Context
	log *zap.Logger

	reporter report.Reporter
	scene    scene.Scene

	energyParams energy.Params

	clock float64
	seq   uint64
	queue eventQueue

	timers map[int]map[string]*event
	rng    *rand.Rand

	nodesByGUI map[int]*node.Node
	orch       *orchestrator.Orchestrator

	// txAttempts/txDropped are the medium's per-sender radio counters
	// (spec.md §6's radio contract): every node in range is one attempt,
	// and one lost to PACKET_LOSS_RATIO is one drop.
	txAttempts map[int]int
	txDropped  map[int]int
}

var _ node.Kernel = (*Simulator)(nil)

// New builds a Simulator and places SIM_NODE_COUNT nodes on the
// configured terrain, one of which (node 0) is root-eligible (spec.md
// §3, §6's SIM_NODE_PLACING_CELL_SIZE jitter).
func New(cfg *config.Config, reporter report.Reporter, sc scene.Scene, log *zap.Logger) *Simulator {
	rng := rand.New(rand.NewSource(cfg.Seed))
	ctx := node.NewContext()
	ep := energy.Params{
		VoltageV: cfg.Voltage, DataRateBps: cfg.DataRate, PsduBytes: cfg.EnergyPsduBytes,
		TxTurnaroundJ: cfg.TxTurnaroundEnergyJ, RxTurnaroundJ: cfg.RxTurnaroundEnergyJ,
		RxCurrentMa: cfg.RxCurrentMa, TxCurrentLevelsMa: cfg.TxCurrentLevelsMa, TxRangesByLevel: cfg.NodeTxRanges,
	}
	s := &Simulator{
		cfg: cfg, ctx: ctx, log: log, reporter: reporter, scene: sc,
		energyParams: ep, rng: rng,
		timers:     make(map[int]map[string]*event),
		nodesByGUI: make(map[int]*node.Node),
		txAttempts: make(map[int]int),
		txDropped:  make(map[int]int),
	}
	env := &node.Environment{Kernel: s, Reporter: reporter, Scene: sc, Config: cfg, Ctx: ctx, Log: log}

	for i := 0; i < cfg.SimNodeCount; i++ {
		pos := node.Point{
			X: rng.Float64()*cfg.SimTerrainSize.X + jitter(rng, cfg.SimNodePlacingCellSize),
			Y: rng.Float64()*cfg.SimTerrainSize.Y + jitter(rng, cfg.SimNodePlacingCellSize),
		}
		ctx.NodePos[i] = pos
		n := node.New(i, pos, env, ep, i == 0)
		ctx.AllNodes = append(ctx.AllNodes, n)
		s.nodesByGUI[i] = n
	}
	s.orch = orchestrator.New(cfg, ctx, reporter, log, rng)
	return s
}

func jitter(rng *rand.Rand, cellSize float64) float64 {
	if cellSize <= 0 {
		return 0
	}
	return (rng.Float64() - 0.5) * cellSize
}

// Now returns the current virtual clock value (spec.md §5).
func (s *Simulator) Now() float64 { return s.clock }

// Rand returns the simulation's single seeded PRNG, so every random draw
// across the run (placement, kill selection, loss) follows one
// deterministic sequence for a given SEED (spec.md §6).
func (s *Simulator) Rand() *rand.Rand { return s.rng }

func (s *Simulator) timerKey(nodeID int, name string) *event {
	m, ok := s.timers[nodeID]
	if !ok {
		return nil
	}
	return m[name]
}

// SetTimer implements spec.md §5: arming a timer that is already pending
// under the same (nodeID, name) replaces it, rather than stacking a
// second firing.
func (s *Simulator) SetTimer(nodeID int, name string, delay float64) {
	s.KillTimer(nodeID, name)
	s.seq++
	id := nodeID
	e := &event{time: s.clock + delay, seq: s.seq, nodeID: id, name: name}
	heap.Push(&s.queue, e)
	if s.timers[nodeID] == nil {
		s.timers[nodeID] = make(map[string]*event)
	}
	s.timers[nodeID][name] = e
}

// KillTimer marks a pending timer dead; it is skipped, not removed, when
// popped from the heap (cheaper than a heap.Fix-based removal).
func (s *Simulator) KillTimer(nodeID int, name string) {
	if e := s.timerKey(nodeID, name); e != nil {
		e.killed = true
		delete(s.timers[nodeID], name)
	}
}

// KillAllTimers kills every timer armed for nodeID.
func (s *Simulator) KillAllTimers(nodeID int) {
	for name, e := range s.timers[nodeID] {
		e.killed = true
		delete(s.timers[nodeID], name)
	}
}

// DelayedExec schedules an arbitrary callback, used for the simulator's
// own bookkeeping (power sampling, failure/recovery triggers) alongside
// node timers in the same event queue.
func (s *Simulator) DelayedExec(delay float64, fn func()) {
	s.seq++
	heap.Push(&s.queue, &event{time: s.clock + delay, seq: s.seq, nodeID: -1, fn: fn})
}

// Send implements spec.md §4.6/§6's radio medium: pkt is delivered,
// instantly in virtual time, to every other node within the sender's
// current TX range, each independently subject to PACKET_LOSS_RATIO.
func (s *Simulator) Send(from int, pkt node.Packet) {
	sender, ok := s.nodesByGUI[from]
	if !ok {
		return
	}
	fromPos := s.ctx.NodePos[from]
	for id, n := range s.nodesByGUI {
		if id == from || n.IsFailed() {
			continue
		}
		toPos := s.ctx.NodePos[id]
		if distance(fromPos, toPos) > sender.TxRange {
			continue
		}
		s.txAttempts[from]++
		if s.rng.Float64() < s.cfg.PacketLossRatio {
			s.txDropped[from]++
			continue
		}
		n.Receive(pkt)
	}
}

func distance(a, b node.Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Run drives the whole simulation: every node wakes at a staggered
// arrival time up to NODE_ARRIVAL_MAX, FAILURE_TIME/RECOVERY_TIME trigger
// the orchestrated kill/revive wave, and POWER_SAMPLING_INTERVAL drives
// periodic reporting, until SIM_DURATION elapses (spec.md §6).
func (s *Simulator) Run() {
	for _, n := range s.ctx.AllNodes {
		arrival := s.rng.Float64() * s.cfg.NodeArrivalMax
		id := n.ID
		s.DelayedExec(arrival, func() { s.nodesByGUI[id].Wake(s.clock) })
	}

	s.DelayedExec(s.cfg.FailureTime, func() { s.orch.TriggerFailures() })
	s.DelayedExec(s.cfg.RecoveryTime, func() { s.orch.TriggerRecovery(s.clock) })
	s.schedulePowerSample()

	for s.queue.Len() > 0 {
		e := heap.Pop(&s.queue).(*event)
		if e.killed {
			continue
		}
		s.clock = e.time
		if s.clock > s.cfg.SimDuration {
			break
		}
		if e.fn != nil {
			e.fn()
			continue
		}
		if n, ok := s.nodesByGUI[e.nodeID]; ok {
			delete(s.timers[e.nodeID], e.name)
			n.OnTimer(e.name)
		}
	}
	s.writeFinalReports()
}

func (s *Simulator) schedulePowerSample() {
	s.DelayedExec(s.cfg.PowerSamplingInterval, func() {
		s.samplePower()
		s.orch.CheckNetworkDeath(s.clock)
		s.orch.OrphanCount()
		if s.clock <= s.cfg.SimDuration {
			s.schedulePowerSample()
		}
	})
}

func (s *Simulator) samplePower() {
	var sum, min, max float64
	alive, dead := 0, 0
	first := true
	for _, n := range s.ctx.AllNodes {
		if n.IsFailed() {
			dead++
			continue
		}
		alive++
		sum += n.Power
		if first || n.Power < min {
			min = n.Power
		}
		if first || n.Power > max {
			max = n.Power
		}
		first = false
	}
	avg := 0.0
	if alive > 0 {
		avg = sum / float64(alive)
	}
	s.reporter.PowerSample(s.clock, avg, min, max, alive, dead)
}

func (s *Simulator) writeFinalReports() {
	for _, n := range s.ctx.AllNodes {
		s.reporter.Topology(n.ID, s.ctx.NodePos[n.ID].X, s.ctx.NodePos[n.ID].Y, n.Role.String())
		total := n.TxPacketCount + n.RxPacketCount
		row := report.EnergyMetricRow{
			NodeID: n.ID, Role: n.Role.String(), InitialEnergyJ: s.cfg.InitialEnergyJ, FinalEnergyJ: n.Power,
			TotalEnergyConsumedJ: s.cfg.InitialEnergyJ - n.Power, TxEnergyConsumedJ: n.TxEnergyConsumedJ,
			RxEnergyConsumedJ: n.RxEnergyConsumedJ, TxPacketCount: n.TxPacketCount, RxPacketCount: n.RxPacketCount,
			TotalPacketCount: total,
			TotalTxAttempts:  s.txAttempts[n.ID], TotalTxDropped: s.txDropped[n.ID],
		}
		if n.TxPacketCount > 0 {
			row.AvgEnergyPerTxPacketJ = n.TxEnergyConsumedJ / float64(n.TxPacketCount)
		}
		if n.RxPacketCount > 0 {
			row.AvgEnergyPerRxPacketJ = n.RxEnergyConsumedJ / float64(n.RxPacketCount)
		}
		if total > 0 {
			row.EnergyEfficiencyJPerPkt = row.TotalEnergyConsumedJ / float64(total)
		}
		s.reporter.EnergyMetric(row)
	}
	if err := s.reporter.Close(); err != nil {
		s.log.Warn("error closing report streams", zap.Error(err))
	}
}

// String renders a short debug summary of the simulation's final role
// distribution, in the spirit of the teacher's own String() methods on
// its protocol messages (message.go).
func (s *Simulator) String() string {
	counts := make(map[role.Role]int)
	for _, n := range s.ctx.AllNodes {
		counts[n.Role]++
	}
	return fmt.Sprintf("nodes=%d root=%d ch=%d router=%d registered=%d unregistered=%d undiscovered=%d",
		len(s.ctx.AllNodes), counts[role.Root], counts[role.ClusterHead], counts[role.Router],
		counts[role.Registered], counts[role.Unregistered], counts[role.Undiscovered])
}
