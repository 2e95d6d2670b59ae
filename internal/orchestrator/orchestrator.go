// Package orchestrator implements the simulation-wide failure/recovery
// schedule and network-death detection (spec.md §4.9). It is the
// adapted descendant of the teacher's Controller type (controller.go):
// where the teacher's Controller was a network-wide observer stub aware
// of the whole topology, Orchestrator is given that same whole-network
// view and put to work driving scheduled kills, revivals, and the
// network-death verdict.
package orchestrator

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/kprusa/dctsim/internal/config"
	"github.com/kprusa/dctsim/internal/node"
	"github.com/kprusa/dctsim/internal/report"
	"github.com/kprusa/dctsim/internal/role"
)

// Orchestrator owns no simulation time itself; the kernel calls its
// methods at the configured FAILURE_TIME/RECOVERY_TIME instants and on
// every power-sampling tick.
type Orchestrator struct {
	cfg      *config.Config
	ctx      *node.Context
	log      *zap.Logger
	reporter report.Reporter
	rng      *rand.Rand

	killedGUIs []int
}

// New builds an Orchestrator sharing the simulation's context, reporter,
// and PRNG (spec.md §6's "deterministic draw order" requirement: kill
// selection draws from the same seeded generator as everything else).
func New(cfg *config.Config, ctx *node.Context, reporter report.Reporter, log *zap.Logger, rng *rand.Rand) *Orchestrator {
	return &Orchestrator{cfg: cfg, ctx: ctx, reporter: reporter, log: log, rng: rng}
}

// TriggerFailures implements spec.md §4.9's FAILURE_TIME event: selects
// NUM_NODES_TO_KILL distinct, currently-alive non-root nodes at random
// and kills them.
func (o *Orchestrator) TriggerFailures() {
	candidates := make([]*node.Node, 0, len(o.ctx.AllNodes))
	for _, n := range o.ctx.AllNodes {
		if !n.IsFailed() && n.Role != role.Root {
			candidates = append(candidates, n)
		}
	}
	o.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	count := o.cfg.NumNodesToKill
	if count > len(candidates) {
		count = len(candidates)
	}
	for i := 0; i < count; i++ {
		candidates[i].Kill()
		o.killedGUIs = append(o.killedGUIs, candidates[i].ID)
	}
	o.log.Info("orchestrated failure wave", zap.Int("killed", count))
}

// TriggerRecovery implements spec.md §4.9's RECOVERY_TIME event: every
// node this orchestrator previously killed is revived.
func (o *Orchestrator) TriggerRecovery(now float64) {
	if o.ctx.RecoveryStartAt == nil {
		o.ctx.RecoveryStartAt = &now
	}
	for _, guiID := range o.killedGUIs {
		for _, n := range o.ctx.AllNodes {
			if n.ID == guiID {
				n.Revive(now)
			}
		}
	}
	o.killedGUIs = nil
}

// CheckNetworkDeath implements spec.md §4.9: once the fraction of failed
// nodes reaches NETWORK_DEATH_THRESHOLD, the network is considered dead
// and the moment is recorded exactly once.
func (o *Orchestrator) CheckNetworkDeath(now float64) {
	if o.ctx.NetworkDeathTime != nil {
		return
	}
	total := len(o.ctx.AllNodes)
	if total == 0 {
		return
	}
	failed := 0
	for _, n := range o.ctx.AllNodes {
		if n.IsFailed() {
			failed++
		}
	}
	if float64(failed)/float64(total) >= o.cfg.NetworkDeathThreshold {
		t := now
		o.ctx.NetworkDeathTime = &t
		o.log.Warn("network death threshold reached", zap.Float64("time", now), zap.Int("failed", failed), zap.Int("total", total))
	}
}

// OrphanCount implements spec.md §4.9's orphan peak tracking: any
// non-failed node that is not Registered/ClusterHead/Router/Root counts.
func (o *Orchestrator) OrphanCount() int {
	count := 0
	for _, n := range o.ctx.AllNodes {
		if !n.IsFailed() && n.Role.IsOrphan() {
			count++
		}
	}
	if count > o.ctx.OrphanPeak {
		o.ctx.OrphanPeak = count
	}
	return count
}
