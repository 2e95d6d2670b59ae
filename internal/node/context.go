package node

import (
	"math/rand"

	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/config"
	"github.com/kprusa/dctsim/internal/report"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/kprusa/dctsim/internal/scene"
	"go.uber.org/zap"
)

// Kernel is the subset of the simulator collaborator API (spec.md §6) a
// Node calls into: scheduled time, per-node timers, delayed callbacks, and
// the radio. Implemented by internal/simkernel.Simulator. Node depends on
// this interface rather than on simkernel directly, so simkernel can
// depend on node without an import cycle (design note, spec.md §9:
// "Global mutable state -> typed context").
type Kernel interface {
	Now() float64
	Rand() *rand.Rand
	SetTimer(nodeID int, name string, delay float64)
	KillTimer(nodeID int, name string)
	KillAllTimers(nodeID int)
	Send(from int, pkt Packet)
	DelayedExec(delay float64, fn func())
}

// Point is a static 2-D terrain position.
type Point struct{ X, Y float64 }

// Context is the process-wide mutable state every node and the
// failure/recovery orchestrator share: node positions (write-once),
// address-to-node resolution, the node registry, and role counters
// (spec.md §5, §9). Because the kernel runs single-threaded cooperative
// scheduling, no locking is required; a concurrent runtime would need to
// serialize access to this struct against the event loop.
type Context struct {
	NodePos    map[int]Point
	AddrToNode map[addr.Addr]*Node
	AllNodes   []*Node
	RoleCounts map[role.Role]int

	// net_id_available_dict, Root-only: net_addr -> owning CH source.
	NetIDAvailable map[uint8]*addr.Addr

	JoinTimes []float64

	FailedCount         int
	OrphanPeak          int
	NetworkDeathTime    *float64
	RecoveryStartAt     *float64
	RecoveryDuration    *float64
	recoveryZeroObserved bool
}

// NewContext creates an empty shared context for one simulation run.
func NewContext() *Context {
	return &Context{
		NodePos:        make(map[int]Point),
		AddrToNode:     make(map[addr.Addr]*Node),
		RoleCounts:     make(map[role.Role]int),
		NetIDAvailable: make(map[uint8]*addr.Addr),
	}
}

// SetAddr updates the address-to-node index, removing the old key before
// inserting the new one (spec.md §5's ordering requirement).
func (c *Context) SetAddr(old *addr.Addr, new addr.Addr, n *Node) {
	if old != nil {
		delete(c.AddrToNode, *old)
	}
	c.AddrToNode[new] = n
}

// Environment bundles everything a Node needs from the outside world.
type Environment struct {
	Kernel   Kernel
	Reporter report.Reporter
	Scene    scene.Scene
	Config   *config.Config
	Ctx      *Context
	Log      *zap.Logger
}
