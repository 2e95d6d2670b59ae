package node

import (
	"go.uber.org/zap"

	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/kprusa/dctsim/internal/routing"
)

// isLocal reports whether pkt is addressed to this node for application
// handling, rather than something to relay on (spec.md §4.5). A
// tree-routed packet (one that carries a NextHop) is handled locally only
// once both the relay hop and the final destination are this node;
// otherwise, if the relay hop names someone else, it is not even this
// node's job to forward it further (the physical radio medium delivered
// it to every node in range, not just the intended relay).
func (n *Node) isLocal(pkt Packet) bool {
	if pkt.NextHop != nil && !pkt.NextHop.IsEqual(n.Addr) {
		return false
	}
	return pkt.Dest.IsBroadcast() || pkt.Dest.IsEqual(n.Addr) || n.Addr.IsZero()
}

// route computes this node's own next hop for a tree-routed packet it
// originates or continues relaying (spec.md §4.5), stamping the result
// onto pkt.NextHop/pkt.Path before transmission. Physical delivery is a
// broadcast to everyone in range; only the node named in NextHop acts on
// what it receives (see isLocal).
func (n *Node) route(pkt Packet) {
	in := n.selectionInput(pkt.Dest)
	result := routing.SelectNextHop(in)
	if !result.OK {
		n.log().Warn("dropping unroutable packet", zap.String("type", pkt.Type.String()), zap.String("dest", pkt.Dest.String()))
		return
	}
	pkt.NextHop = &result.NextHop
	pkt.Path = result.Path
	n.env.Reporter.PacketRoute(n.env.Kernel.Now(), pkt.Type.String(), sourceLabel(pkt), n.Addr.String(), result.NextHop.String(), pkt.Dest.String(), hopLabel(pkt), result.Path.String())
	n.send(pkt)
}

func (n *Node) selectionInput(dest addr.Addr) routing.SelectionInput {
	in := routing.SelectionInput{
		SelfRole: n.Role, ChAddr: n.ChAddr, HasChAddr: n.Role.HasCluster(),
		ChildNetworks: n.ChildNetworksTable, ChildAddrByGUI: n.childAddrByGUI(),
		Neighbors: n.NeighborsTable, Dest: dest,
	}
	if n.ParentGUI != nil {
		if parent, ok := n.NeighborsTable[*n.ParentGUI]; ok {
			in.Parent = parent
			in.ParentIsRouter = parent.Role == role.Router
		}
	}
	return in
}

// forward implements spec.md §4.5's route_and_forward_package for a
// packet this node received as a relay but which is not addressed to it:
// recompute the next hop from this node's own tables and re-transmit.
func (n *Node) forward(pkt Packet) {
	result := routing.SelectNextHop(n.selectionInput(pkt.Dest))
	if !result.OK {
		n.log().Warn("dropping unroutable packet", zap.String("type", pkt.Type.String()), zap.String("dest", pkt.Dest.String()))
		return
	}
	pkt.NextHop = &result.NextHop
	pkt.Path = result.Path
	n.env.Reporter.PacketRoute(n.env.Kernel.Now(), pkt.Type.String(), sourceLabel(pkt), n.Addr.String(), result.NextHop.String(), pkt.Dest.String(), hopLabel(pkt), result.Path.String())
	n.send(pkt)
}

func (n *Node) childAddrByGUI() map[int]addr.Addr {
	out := make(map[int]addr.Addr, len(n.MembersTable))
	for _, entry := range n.NeighborsTable {
		if n.MembersTable[entry.Addr] {
			out[entry.GUI] = entry.Addr
		}
	}
	return out
}

func sourceLabel(pkt Packet) string {
	if pkt.Source != nil {
		return pkt.Source.String()
	}
	return ""
}

func hopLabel(pkt Packet) int {
	if pkt.HopCount != nil {
		return *pkt.HopCount
	}
	return 0
}
