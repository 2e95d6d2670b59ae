package node

import (
	"math"

	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/energy"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/kprusa/dctsim/internal/routing"
)

// OnTimer dispatches a fired timer to its handler (spec.md §4, §6). Called
// by the kernel's event loop when a (nodeID, name) entry comes due.
func (n *Node) OnTimer(name string) {
	if n.Failed {
		return
	}
	switch name {
	case TimerProbe:
		n.onProbeTimer()
	case TimerJoinRequest:
		n.selectAndJoin()
	case TimerHeartBeat:
		n.sendHeartBeat()
	case TimerTableShare:
		n.sendTableShare()
	case TimerRoleOptimize:
		n.onRoleOptimizeTimer()
	case TimerData:
		n.sendSensorData()
	}
}

func (n *Node) distanceTo(otherGUI int) float64 {
	if n.env.Ctx == nil {
		return 0
	}
	a, okA := n.env.Ctx.NodePos[n.ID]
	b, okB := n.env.Ctx.NodePos[otherGUI]
	if !okA || !okB {
		return 0
	}
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// onProbeTimer implements spec.md §4.1: an Undiscovered node re-broadcasts
// PROBE once per simulated second. Once th_probe attempts have passed
// without hearing a HEART_BEAT, a root-eligible node declares itself Root
// (if no Root exists yet); any other node keeps probing.
func (n *Node) onProbeTimer() {
	if n.Role != role.Undiscovered {
		return
	}
	n.ProbeAttempts++
	if n.ProbeAttempts >= n.env.Config.ThProbe {
		if n.IsRootEligible && n.noRootYet() {
			n.becomeRoot()
			return
		}
	}
	n.sendProbe()
	n.env.Kernel.SetTimer(n.ID, TimerProbe, 1)
}

func (n *Node) noRootYet() bool {
	if n.env.Ctx == nil {
		return true
	}
	return n.env.Ctx.RoleCounts[role.Root] == 0
}

// becomeRoot implements spec.md §4.1: the elected root takes the fixed
// Addr(0,254), owns the global net_id_available_dict, and starts the
// heartbeat/table-share cadence immediately (it has no parent to join
// through).
func (n *Node) becomeRoot() {
	n.killAllTimers()
	n.Addr = addr.Root
	n.ChAddr = addr.Root
	n.RootAddr = addr.Root
	n.HopCount = 0
	if n.env.Ctx != nil {
		n.env.Ctx.SetAddr(nil, n.Addr, n)
		n.env.Ctx.NetIDAvailable[addr.Root.NetAddr] = &n.Addr
	}
	n.setRole(role.Root)
	n.sendHeartBeat()
	n.armHeartBeatTimer()
	n.env.Kernel.SetTimer(n.ID, TimerTableShare, n.env.Config.TableShareInterval)
	n.env.Kernel.SetTimer(n.ID, TimerRoleOptimize, n.env.Config.RoleOptimizeTime)
}

func (n *Node) sendProbe() {
	n.send(Packet{Type: Probe, Dest: addr.Broadcast, GUI: &n.ID})
}

// handleProbe implements spec.md §4.1: only a node that already owns a
// tree address can sponsor a newcomer, so it answers with its own
// HEART_BEAT rather than anything PROBE-specific.
func (n *Node) handleProbe(pkt Packet) {
	if n.Role == role.Undiscovered || n.Role == role.Unregistered {
		return
	}
	n.sendHeartBeat()
}

// sendHeartBeat implements spec.md §4.7 (TX power is (re)assigned before
// every heartbeat) and §4.1 (a HEART_BEAT advertises the sender's
// addressing state so a listening candidate can build its candidate
// parent table).
func (n *Node) sendHeartBeat() {
	if n.Role == role.Undiscovered || n.Role == role.Unregistered {
		return
	}
	n.AssignTxPower(nil)
	n.HeartbeatSeq++
	a, ch, root, hop := n.Addr, n.ChAddr, n.RootAddr, n.HopCount
	n.send(Packet{
		Type: HeartBeat, Dest: addr.Broadcast,
		GUI: &n.ID, Source: &a, ChAddr: &ch, RootAddr: &root, HopCount: &hop,
		Sequence: n.HeartbeatSeq,
	})
	n.evictStaleNeighbors()
	n.armHeartBeatTimer()
}

func (n *Node) armHeartBeatTimer() {
	n.env.Kernel.SetTimer(n.ID, TimerHeartBeat, n.env.Config.HeartBeatInterval())
}

// evictStaleNeighbors implements spec.md §3 Supplementary fields'
// NEIGHBOR_HOLD_TICKS eviction: a neighbor-table entry not refreshed by a
// HEART_BEAT/TABLE_SHARE within its hold window is dropped, the same way a
// heartbeat cadence naturally ages out a departed neighbor.
func (n *Node) evictStaleNeighbors() {
	now := n.env.Kernel.Now()
	for gui, entry := range n.NeighborsTable {
		if entry.HoldUntil > 0 && entry.HoldUntil < now {
			delete(n.NeighborsTable, gui)
		}
	}
}

// handleHeartBeat implements spec.md §4.1/§3: every receiver upserts its
// neighbor table from the advertisement, keyed by gui, newer arrival_time
// winning. A HEART_BEAT whose last_heartbeat_seq is not newer than the
// entry already on file is a stale/out-of-order redelivery and is rejected
// outright (spec.md §3 Supplementary fields). An Undiscovered listener
// additionally enters Unregistered and starts its join timer (without
// re-probing, unlike becomeUnregistered, which is reserved for later
// re-join triggers).
func (n *Node) handleHeartBeat(pkt Packet) {
	if pkt.GUI == nil || *pkt.GUI == n.ID {
		return
	}
	if existing, have := n.NeighborsTable[*pkt.GUI]; have && existing.NeighborHopCount <= 1 && pkt.Sequence <= existing.Sequence {
		return
	}
	entry := routing.NeighborEntry{
		GUI: *pkt.GUI, Role: pkt.SenderRole, ArrivalTime: n.env.Kernel.Now(),
		Distance: n.distanceTo(*pkt.GUI), NeighborHopCount: 1,
		Sequence: pkt.Sequence, HoldUntil: n.env.Kernel.Now() + n.env.Config.NeighborHoldTicks,
	}
	if pkt.Source != nil {
		entry.Source, entry.Addr = *pkt.Source, *pkt.Source
	}
	if pkt.ChAddr != nil {
		entry.ChAddr = *pkt.ChAddr
	}
	if pkt.HopCount != nil {
		entry.HopCount = *pkt.HopCount
	}
	n.NeighborsTable[*pkt.GUI] = &entry

	if n.Role == role.Undiscovered {
		n.killAllTimers()
		n.setRole(role.Unregistered)
		n.armJoinRequestTimer()
	}
	if n.Role == role.Unregistered && routing.LegalParent(pkt.SenderRole) {
		n.CandidateParentsTable[*pkt.GUI] = entry
	}
}

// selectAndJoin implements spec.md §4.2: pick the best un-blacklisted
// candidate with fewer than jr_threshold join attempts so far (lowest hop
// count, then nearest), falling back to
// any remaining Router candidate (the adoption path) only once every
// ordinary candidate is exhausted, and restarting discovery entirely if
// no candidate is left at all.
func (n *Node) selectAndJoin() {
	if n.Role != role.Unregistered {
		return
	}
	candidate, ok := n.bestCandidate(false)
	if !ok {
		candidate, ok = n.bestCandidate(true)
	}
	if !ok {
		n.becomeUnregistered()
		return
	}
	n.JoinReqAttempts[candidate.GUI]++

	myGUI := n.ID
	n.send(Packet{Type: JoinRequest, Dest: candidate.Addr, GUI: &myGUI})
	n.env.Kernel.SetTimer(n.ID, TimerJoinRequest, n.env.Config.JoinRequestTimeInterval)
}

func (n *Node) bestCandidate(allowRouter bool) (routing.NeighborEntry, bool) {
	var best routing.NeighborEntry
	found := false
	for gui, c := range n.CandidateParentsTable {
		if n.Transfer.Blacklist[gui] {
			continue
		}
		if n.JoinReqAttempts[gui] >= n.env.Config.JrThreshold {
			continue
		}
		if !allowRouter && c.Role == role.Router {
			continue
		}
		if allowRouter && c.Role != role.Router {
			continue
		}
		if !found || c.HopCount < best.HopCount || (c.HopCount == best.HopCount && c.Distance < best.Distance) {
			best, found = c, true
		}
	}
	return best, found
}

// recordJoinRequestAndMaybeExpand implements spec.md §4.2's
// record_join_request_and_maybe_expand(): run by the CH/Root/Router
// receiving the JOIN_REQUEST, not the joiner. It pushes the arrival time
// into join_request_times, drops entries older than JOIN_REQ_EXPAND_WINDOW,
// and bumps tx_power one level (clearing the window) once
// JOIN_REQ_EXPAND_THRESHOLD requests have piled up inside it. Separately,
// if this particular requester is farther than the node's current
// tx_range, tx_power is raised to the smallest level that covers it and
// max_pending_join_distance is widened so later AssignTxPower calls keep
// reaching that far.
func (n *Node) recordJoinRequestAndMaybeExpand(requesterGUI int, now float64) {
	window := n.env.Config.JoinReqExpandWindow
	n.JoinRequestTimes = append(n.JoinRequestTimes, now)
	kept := n.JoinRequestTimes[:0]
	for _, t := range n.JoinRequestTimes {
		if now-t <= window {
			kept = append(kept, t)
		}
	}
	n.JoinRequestTimes = kept
	if len(n.JoinRequestTimes) >= n.env.Config.JoinReqExpandThreshold {
		n.bumpTxPower()
		n.JoinRequestTimes = nil
	}

	dist := n.distanceTo(requesterGUI)
	if dist > n.TxRange {
		if lvl, ok := energy.SmallestLevelCovering(n.energyParams, dist); ok {
			n.AssignTxPower(&lvl)
		}
		if dist > n.MaxPendingJoinDistance {
			n.MaxPendingJoinDistance = dist
		}
	}
}

// bumpTxPower moves tx_power up one level, capped at the highest
// configured level (spec.md §4.2's bump_tx_power()).
func (n *Node) bumpTxPower() {
	next := n.TxPower + 1
	if max := n.energyParams.MaxLevel(); next > max {
		next = max
	}
	n.AssignTxPower(&next)
}

// handleJoinRequest implements spec.md §4.2: a CH/Root allocates the
// smallest free node_addr ascending; a Router (adoption fallback) instead
// allocates descending from NUM_OF_CHILDREN-1, since it is not the owner of
// a subnet and is borrowing slots from the far end of its own pool.
func (n *Node) handleJoinRequest(pkt Packet) {
	if pkt.GUI == nil {
		return
	}
	if n.Role == role.Registered {
		n.recordPendingJoiner(*pkt.GUI)
		return
	}
	if n.Role != role.ClusterHead && n.Role != role.Root && n.Role != role.Router {
		return
	}
	requesterGUI := *pkt.GUI
	n.recordJoinRequestAndMaybeExpand(requesterGUI, n.env.Kernel.Now())

	slot, ok := n.allocateNodeAddr(n.Role == role.Router)
	if !ok {
		return
	}
	n.NodeAvailableDict[slot] = &requesterGUI

	childAddr := addr.Addr{NetAddr: n.netAddrForChild(), NodeAddr: slot}
	// A Router has no ch_addr of its own (becomeRouter clears it); a
	// Router-adopted child's ch_addr is the Router's own net_addr paired
	// with the child's node_addr, i.e. childAddr itself (spec.md §9 Open
	// Question, resolved in DESIGN.md).
	ch := n.ChAddr
	if n.Role == role.Router {
		ch = childAddr
	}
	root := n.RootAddr
	hop := n.HopCount + 1
	viaRouter := n.Role == role.Router
	destGUI := requesterGUI
	n.send(Packet{
		Type: JoinReply, Dest: addr.Addr{NetAddr: childAddr.NetAddr, NodeAddr: slot},
		GUI: &requesterGUI, DestGUI: &destGUI, Addr: &childAddr, ChAddr: &ch, RootAddr: &root, HopCount: &hop,
		ViaRouterAdoption: viaRouter,
	})
}

func (n *Node) netAddrForChild() uint8 {
	if n.Role == role.Router {
		return n.Addr.NetAddr
	}
	return n.ChAddr.NetAddr
}

// allocateNodeAddr scans node_available_dict for a free slot: ascending
// from 1 for a CH/Root (spec.md §4.2), descending from NUM_OF_CHILDREN-1
// for a Router's adoption pool.
func (n *Node) allocateNodeAddr(descending bool) (uint8, bool) {
	max := n.env.Config.NumOfChildren
	if descending {
		for v := max - 1; v >= 1; v-- {
			slot := uint8(v)
			if owner, exists := n.NodeAvailableDict[slot]; !exists || owner == nil {
				return slot, true
			}
		}
		return 0, false
	}
	for v := 1; v < max; v++ {
		slot := uint8(v)
		if owner, exists := n.NodeAvailableDict[slot]; !exists || owner == nil {
			return slot, true
		}
	}
	return 0, false
}

// handleJoinReply implements spec.md §4.2: a JOIN_REPLY names its intended
// requester in DestGUI, and every Unregistered node in broadcast range
// must check that before accepting it (I4, P3) — otherwise any bystander
// would adopt addressing meant for someone else. A reply whose sender is a
// Router at send time is rejected as stale, unless the reply is explicitly
// flagged as a sanctioned Router-adoption reply.
func (n *Node) handleJoinReply(pkt Packet) {
	if pkt.DestGUI == nil || *pkt.DestGUI != n.ID {
		return
	}
	if n.Role != role.Unregistered {
		return
	}
	if pkt.SenderRole == role.Router && !pkt.ViaRouterAdoption {
		return
	}
	if pkt.Addr == nil || pkt.ChAddr == nil || pkt.RootAddr == nil || pkt.HopCount == nil {
		return
	}
	n.killAllTimers()
	n.Addr = *pkt.Addr
	n.ChAddr = *pkt.ChAddr
	n.RootAddr = *pkt.RootAddr
	n.HopCount = *pkt.HopCount
	parentGUI := pkt.SenderGUI
	n.ParentGUI = &parentGUI
	if n.env.Ctx != nil {
		n.env.Ctx.SetAddr(nil, n.Addr, n)
	}

	myGUI := n.ID
	myAddr := n.Addr
	n.send(Packet{Type: JoinAck, Dest: n.MustNeighborAddr(parentGUI), GUI: &myGUI, Addr: &myAddr})

	n.register()
	n.armHeartBeatTimer()
	n.env.Kernel.SetTimer(n.ID, TimerTableShare, n.env.Config.TableShareInterval)
	if n.env.Config.EnableDataPackets {
		n.env.Kernel.SetTimer(n.ID, TimerData, n.env.Config.DataInterval)
	}
}

// handleJoinAck implements spec.md §4.2/§4.3: the sponsor records the new
// member in its membership table once the child confirms registration,
// and if this ack came from ch_transfer_target, clears the target and
// triggers the CH-nomination load transfer.
func (n *Node) handleJoinAck(pkt Packet) {
	if pkt.Addr == nil {
		return
	}
	n.MembersTable[*pkt.Addr] = true
	if n.Transfer.TransferTarget != nil && *n.Transfer.TransferTarget == pkt.SenderGUI {
		n.Transfer.TransferTarget = nil
		n.maybeNominateRouter()
	}
}
