// Package routing selects the next hop for an outbound packet from a
// node's neighbor/child-subnet knowledge, and enforces the role-pair
// legality rules a direct or mesh hop must satisfy (spec.md §4.5, I5).
package routing

import (
	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/role"
)

// NeighborEntry is a node's knowledge of one neighbor, refreshed by
// HEART_BEAT (1-hop, direct) or learned transitively via TABLE_SHARE
// (spec.md §3, §4.4).
type NeighborEntry struct {
	Source           addr.Addr
	GUI              int
	Role             role.Role
	Addr             addr.Addr
	ChAddr           addr.Addr
	HopCount         int
	ArrivalTime      float64
	Distance         float64
	NeighborHopCount int
	NextHop          *addr.Addr

	// Sequence is the sender's last_heartbeat_seq at ArrivalTime, used to
	// reject a stale/out-of-order re-delivery of an older HEART_BEAT
	// (spec.md §3 Supplementary fields).
	Sequence int

	// HoldUntil is the virtual time after which this entry is evicted if
	// it has not been refreshed (NEIGHBOR_HOLD_TICKS, spec.md §3
	// Supplementary fields).
	HoldUntil float64
}

// PathType records which rule of spec.md §4.5 selected a next hop.
type PathType int

const (
	Unknown PathType = iota
	Direct
	Mesh
	Tree
)

func (p PathType) String() string {
	switch p {
	case Direct:
		return "DIRECT"
	case Mesh:
		return "MESH"
	case Tree:
		return "TREE"
	default:
		return "UNKNOWN"
	}
}

// LegalDirectHop enforces I5's role-pair legality for a direct or mesh
// hop between two roles: Registered<->Router, Router<->Router, and
// Router<->Registered are forbidden. ClusterHead and Root participate
// freely on either side.
func LegalDirectHop(a, b role.Role) bool {
	if a == role.Router && (b == role.Router || b == role.Registered) {
		return false
	}
	if b == role.Router && (a == role.Router || a == role.Registered) {
		return false
	}
	return true
}

// LegalParent reports whether candidateRole may be treated as a parent
// (I5): Router is never a legal parent through the ordinary
// select-and-join path. Router-initiated orphan adoption bypasses this
// check explicitly (see internal/node's discovery handler and DESIGN.md's
// resolution of the corresponding spec Open Question).
func LegalParent(candidateRole role.Role) bool {
	return candidateRole != role.Router
}

// SelectionInput bundles a node's own routing-relevant state so
// SelectNextHop can run without depending on the node package (avoiding an
// import cycle: node depends on routing, not the reverse).
type SelectionInput struct {
	// SelfRole is the deciding node's own role.
	SelfRole role.Role

	// ChAddr is the deciding node's own cluster address, set only for
	// ClusterHead/Root (zero value otherwise).
	ChAddr addr.Addr

	// HasChAddr reports whether ChAddr is meaningful (the node is a
	// ClusterHead or Root).
	HasChAddr bool

	// Parent is the neighbor entry for the node's tree parent, nil if
	// the node has none (e.g. Root, or a disconnected orphan).
	Parent *NeighborEntry

	// ParentIsRouter reports whether the parent is itself a Router, in
	// which case tree-up traffic is addressed to the parent's own Addr
	// rather than its ChAddr (spec.md §4.5 rule 1).
	ParentIsRouter bool

	// ChildNetworks maps a child's gui to the net_addrs reachable
	// downstream through it (spec.md §3).
	ChildNetworks map[int][]uint8

	// ChildAddrByGUI resolves a child gui (as used as a key in
	// ChildNetworks) to that child's current Addr.
	ChildAddrByGUI map[int]addr.Addr

	// Neighbors is the full 1-hop+mesh neighbor table.
	Neighbors map[int]*NeighborEntry

	// Dest is the destination address of the packet being routed.
	Dest addr.Addr
}

// Result is the outcome of SelectNextHop.
type Result struct {
	NextHop addr.Addr
	Path    PathType
	OK      bool
}

// SelectNextHop implements spec.md §4.5's route_and_forward_package: the
// rules are evaluated in order and each later rule that matches overrides
// the result of an earlier one, so rule 4 (direct/mesh neighbor match),
// the strongest, most specific evidence, takes precedence when present.
func SelectNextHop(in SelectionInput) Result {
	result := Result{Path: Unknown}

	// Rule 1: tree-up default.
	if in.SelfRole != role.Root && in.Parent != nil {
		if in.ParentIsRouter {
			result = Result{NextHop: in.Parent.Addr, Path: Tree, OK: true}
		} else {
			result = Result{NextHop: in.Parent.ChAddr, Path: Tree, OK: true}
		}
	}

	// Rule 2: same-net direct, when I am a CH/Root and the destination
	// shares my net_addr.
	if in.HasChAddr && in.Dest.NetAddr == in.ChAddr.NetAddr {
		result = Result{NextHop: in.Dest, Path: Tree, OK: true}
	}

	// Rule 3: downstream subnet.
	for childGUI, nets := range in.ChildNetworks {
		for _, n := range nets {
			if n == in.Dest.NetAddr {
				if childAddr, ok := in.ChildAddrByGUI[childGUI]; ok {
					result = Result{NextHop: childAddr, Path: Tree, OK: true}
				}
			}
		}
	}

	// Rule 4: direct/mesh neighbor match, strongest evidence, evaluated
	// last so it can override the tree-up default.
	for _, entry := range in.Neighbors {
		if !entry.Addr.IsEqual(in.Dest) {
			continue
		}
		if !LegalDirectHop(in.SelfRole, entry.Role) {
			continue
		}
		if entry.NeighborHopCount > 1 {
			if entry.NextHop != nil {
				result = Result{NextHop: *entry.NextHop, Path: Mesh, OK: true}
			}
		} else {
			result = Result{NextHop: entry.Addr, Path: Direct, OK: true}
		}
		break
	}

	return result
}
