package node

import (
	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/role"
)

// recordPendingJoiner implements spec.md §4.3: a Registered node has no
// subnet to sponsor a newcomer with, so it simply remembers the request;
// once jr_threshold distinct requesters have piled up, it asks the root
// for a net_addr of its own. The first requester remembered becomes
// ch_transfer_target, the member whose JOIN_ACK later triggers this node's
// own CH-nomination load transfer (spec.md §4.3).
func (n *Node) recordPendingJoiner(requesterGUI int) {
	for _, g := range n.ReceivedJRGUIs {
		if g == requesterGUI {
			return
		}
	}
	n.ReceivedJRGUIs = append(n.ReceivedJRGUIs, requesterGUI)
	if n.Transfer.TransferTarget == nil {
		target := requesterGUI
		n.Transfer.TransferTarget = &target
	}
	if len(n.ReceivedJRGUIs) >= n.env.Config.JrThreshold {
		n.sendNetworkRequest()
	}
}

// sendNetworkRequest implements spec.md §4.3: a Registered node asks the
// root to allocate it a net_addr so it can become a ClusterHead.
func (n *Node) sendNetworkRequest() {
	if n.Role != role.Registered {
		return
	}
	myGUI, myAddr := n.ID, n.Addr
	n.route(Packet{Type: NetworkRequest, Dest: n.RootAddr, GUI: &myGUI, Addr: &myAddr})
}

// handleNetworkRequest implements spec.md §4.3: only the root owns
// net_id_available_dict, and allocates the smallest unused net_addr
// (never 0, which is reserved for the root's own subnet).
func (n *Node) handleNetworkRequest(pkt Packet) {
	if n.Role != role.Root {
		return
	}
	if pkt.Addr == nil {
		return
	}
	netID, ok := n.allocateNetID()
	if !ok {
		n.log().Warn("net id pool exhausted")
		return
	}
	n.env.Ctx.NetIDAvailable[netID] = pkt.Addr
	allocated := addr.Addr{NetAddr: netID, NodeAddr: addr.RootNodeAddr}
	n.route(Packet{Type: NetworkReply, Dest: *pkt.Addr, Addr: &allocated})
}

func (n *Node) allocateNetID() (uint8, bool) {
	for v := uint8(1); v < addr.BroadcastNet; v++ {
		if _, taken := n.env.Ctx.NetIDAvailable[v]; !taken {
			return v, true
		}
	}
	return 0, false
}

// handleNetworkReply implements spec.md §4.3: the requester adopts the
// allocated net_addr as its own ChAddr and becomes a ClusterHead.
func (n *Node) handleNetworkReply(pkt Packet) {
	if n.Role != role.Registered || pkt.Addr == nil {
		return
	}
	old := n.Addr
	n.ChAddr = addr.Addr{NetAddr: pkt.Addr.NetAddr, NodeAddr: addr.RootNodeAddr}
	n.Addr = n.ChAddr
	if n.env.Ctx != nil {
		n.env.Ctx.SetAddr(&old, n.Addr, n)
	}
	n.setRole(role.ClusterHead)
	for _, guiVal := range n.ReceivedJRGUIs {
		gui := guiVal
		slot, ok := n.allocateNodeAddr(false)
		if !ok {
			break
		}
		n.NodeAvailableDict[slot] = &gui
		childAddr := addr.Addr{NetAddr: n.ChAddr.NetAddr, NodeAddr: slot}
		ch, root, hop := n.ChAddr, n.RootAddr, n.HopCount+1
		destGUI := gui
		n.send(Packet{Type: JoinReply, Dest: childAddr, GUI: &gui, DestGUI: &destGUI, Addr: &childAddr, ChAddr: &ch, RootAddr: &root, HopCount: &hop})
	}
	n.ReceivedJRGUIs = nil
	n.sendNetworkUpdate()
}

// sendNetworkUpdate implements spec.md §4.3: a ClusterHead announces its
// new subnet to the root, tree-routed; relays on the way forward it without
// recording it (see handleNetworkUpdate).
func (n *Node) sendNetworkUpdate() {
	if !n.Role.HasCluster() {
		return
	}
	myGUI := n.ID
	nets := []uint8{n.ChAddr.NetAddr}
	n.route(Packet{Type: NetworkUpdate, Dest: n.RootAddr, GUI: &myGUI, ChildNetworks: nets})
}

// handleNetworkUpdate implements spec.md §4.3: only the node the update is
// addressed to (the root) runs this handler; intermediate ancestors relay
// the packet without recording anything. The subnet is recorded in
// ChildNetworksTable against the announcing ClusterHead's gui, not against
// the child the packet arrived through.
func (n *Node) handleNetworkUpdate(pkt Packet) {
	if pkt.GUI == nil {
		return
	}
	n.ChildNetworksTable[*pkt.GUI] = append(n.ChildNetworksTable[*pkt.GUI], pkt.ChildNetworks...)
	if n.Role != role.Root {
		n.sendNetworkUpdate()
	}
}

// maybeNominateRouter implements spec.md §4.3's CH nomination trigger:
// after accepting a transfer target's JOIN_ACK, select the farthest member
// (by neighbor-entry distance) not already blacklisted and nominate it.
func (n *Node) maybeNominateRouter() {
	if n.Role != role.ClusterHead || n.Transfer.AwaitingAck {
		return
	}
	nomineeGUI, ok := n.farthestMemberGUI()
	if !ok {
		return
	}
	n.nominateRouter(nomineeGUI)
}

func (n *Node) farthestMemberGUI() (int, bool) {
	best, farthest := 0, -1.0
	found := false
	for gui, entry := range n.NeighborsTable {
		if n.Transfer.Blacklist[gui] {
			continue
		}
		if !n.MembersTable[entry.Addr] {
			continue
		}
		if !found || entry.Distance > farthest {
			best, farthest, found = gui, entry.Distance, true
		}
	}
	return best, found
}

// nominateRouter implements spec.md §4.8's load-transfer path: an
// overloaded ClusterHead nominates one of its own members to take over
// its subnet, handing off its node_available_dict.
func (n *Node) nominateRouter(nomineeGUI int) {
	if n.Role != role.ClusterHead {
		return
	}
	n.Transfer.Nominee = &nomineeGUI
	n.Transfer.AwaitingAck = true
	avail := make(map[uint8]*int, len(n.NodeAvailableDict))
	for k, v := range n.NodeAvailableDict {
		avail[k] = v
	}
	ch := n.ChAddr
	n.send(Packet{Type: ChNomination, Dest: n.MustNeighborAddr(nomineeGUI), ChAddr: &ch, AvailDict: avail})
	n.env.Kernel.SetTimer(n.ID, TimerChNomination, n.env.Config.JoinRequestTimeInterval)
}

// MustNeighborAddr returns gui's known address, or the zero address if
// unknown (defensive lookup for a nomination target that has since left
// the neighbor table).
func (n *Node) MustNeighborAddr(gui int) addr.Addr {
	if entry, ok := n.NeighborsTable[gui]; ok {
		return entry.Addr
	}
	return addr.Addr{}
}

// handleChNomination implements spec.md §4.8: the nominee adopts the
// nominating CH's subnet and address pool wholesale, becoming the new
// ClusterHead while its nominator steps down to Router.
func (n *Node) handleChNomination(pkt Packet) {
	if pkt.ChAddr == nil {
		return
	}
	if n.Transfer.Blacklist[pkt.SenderGUI] {
		return
	}
	old := n.Addr
	n.ChAddr = *pkt.ChAddr
	n.Addr = addr.Addr{NetAddr: pkt.ChAddr.NetAddr, NodeAddr: n.Addr.NodeAddr}
	n.NodeAvailableDict = pkt.AvailDict
	if n.env.Ctx != nil {
		n.env.Ctx.SetAddr(&old, n.Addr, n)
	}
	n.setRole(role.ClusterHead)
	n.send(Packet{Type: ChNominationAck, Dest: n.MustNeighborAddr(pkt.SenderGUI)})
}

// handleChNominationAck implements spec.md §4.8: once the nominee
// confirms, the nominating CH steps down to Router and stops answering
// for the subnet it handed off.
func (n *Node) handleChNominationAck(pkt Packet) {
	if !n.Transfer.AwaitingAck {
		return
	}
	n.env.Kernel.KillTimer(n.ID, TimerChNomination)
	n.becomeRouter()
}
