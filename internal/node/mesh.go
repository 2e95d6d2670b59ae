package node

import (
	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/kprusa/dctsim/internal/routing"
)

// sendTableShare implements spec.md §4.4: a registered node periodically
// broadcasts its neighbor entries that are at most MESH_HOP_N hops away, so
// listeners can extend their own knowledge transitively.
func (n *Node) sendTableShare() {
	if n.Role == role.Undiscovered || n.Role == role.Unregistered {
		return
	}
	share := make(map[int]routing.NeighborEntry, len(n.NeighborsTable))
	for gui, e := range n.NeighborsTable {
		if e.NeighborHopCount > n.env.Config.MeshHopN {
			continue
		}
		share[gui] = *e
	}
	myGUI := n.ID
	n.send(Packet{Type: TableShare, Dest: addr.Broadcast, GUI: &myGUI, Neighbors: share})
	n.env.Kernel.SetTimer(n.ID, TimerTableShare, n.env.Config.TableShareInterval)
}

// handleTableShare implements spec.md §4.4/I7: every shared entry is
// upserted one hop further away than the sender reported it, and any
// entry that would exceed MESH_HOP_N+1 hops is rejected outright rather
// than silently truncated (a violation here is a protocol bug, not a
// routine drop).
func (n *Node) handleTableShare(pkt Packet) {
	if pkt.GUI == nil {
		return
	}
	sender, ok := n.NeighborsTable[*pkt.GUI]
	if !ok {
		return
	}
	for gui, entry := range pkt.Neighbors {
		if gui == n.ID {
			continue
		}
		hop := entry.NeighborHopCount + 1
		if hop > n.env.Config.MeshHopN+1 {
			panic(ProtocolViolationError{Msg: "mesh hop count exceeds MESH_HOP_N+1"})
		}
		existing, have := n.NeighborsTable[gui]
		if have && existing.NeighborHopCount <= hop && existing.ArrivalTime >= entry.ArrivalTime {
			continue
		}
		nextHop := sender.Addr
		entry.NeighborHopCount = hop
		entry.NextHop = &nextHop
		entry.ArrivalTime = n.env.Kernel.Now()
		entry.HoldUntil = n.env.Kernel.Now() + n.env.Config.NeighborHoldTicks
		n.NeighborsTable[gui] = &entry
	}
}
