// Package node implements the per-node role state machine, address
// allocation, neighbor/mesh tables, and packet handlers of spec.md §3-§4:
// the distributed core of the data collection tree protocol.
package node

import (
	"go.uber.org/zap"

	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/energy"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/kprusa/dctsim/internal/routing"
)

// HopDisconnected is the sentinel hop_count for a node with no path to the
// root (spec.md §3).
const HopDisconnected = 99999

// ChTransferBookkeeping groups the CH load-transfer fields (spec.md §4.3):
// the transfer target a Registered node remembers before it becomes a
// ClusterHead, the nominee/ack state of a ClusterHead handing its cluster
// off, and the blacklist also consulted by join candidate selection and by
// a nominee.
type ChTransferBookkeeping struct {
	TransferTarget   *int
	Nominee          *int
	Blacklist        map[int]bool
	AwaitingAck      bool
	TransferEngaged  bool
}

// Node is one simulated sensor's complete protocol state (spec.md §3).
type Node struct {
	ID  int
	Pos Point

	Role     role.Role
	Addr     addr.Addr
	ChAddr   addr.Addr
	ParentGUI *int
	RootAddr addr.Addr
	HopCount int

	TxPower     int
	TxRange     float64
	TxCurrentMa float64
	Power       float64
	Failed      bool

	NeighborsTable        map[int]*routing.NeighborEntry
	CandidateParentsTable map[int]routing.NeighborEntry
	ChildNetworksTable    map[int][]uint8
	MembersTable          map[addr.Addr]bool
	NodeAvailableDict     map[uint8]*int
	JoinReqAttempts       map[int]int
	ReceivedJRGUIs        []int

	Transfer ChTransferBookkeeping

	TxEnergyConsumedJ float64
	RxEnergyConsumedJ float64
	TxPacketCount     int
	RxPacketCount     int

	JoinRequestTimes       []float64
	MaxPendingJoinDistance float64

	WakeTime       float64
	RegisteredTime *float64
	IsRootEligible bool

	ProbeAttempts int

	// HeartbeatSeq is last_heartbeat_seq, this node's own outgoing
	// HEART_BEAT counter (spec.md §3 Supplementary fields).
	HeartbeatSeq int

	energyParams energy.Params
	env          *Environment
}

// New constructs a node at a fixed position, its table fields
// initialized empty (spec.md §3 Lifecycle).
func New(id int, pos Point, env *Environment, energyParams energy.Params, rootEligible bool) *Node {
	n := &Node{
		ID:                    id,
		Pos:                   pos,
		Role:                  role.Undiscovered,
		HopCount:              HopDisconnected,
		Power:                 env.Config.InitialEnergyJ,
		NeighborsTable:        make(map[int]*routing.NeighborEntry),
		CandidateParentsTable: make(map[int]routing.NeighborEntry),
		ChildNetworksTable:    make(map[int][]uint8),
		MembersTable:          make(map[addr.Addr]bool),
		NodeAvailableDict:     make(map[uint8]*int),
		JoinReqAttempts:       make(map[int]int),
		Transfer:              ChTransferBookkeeping{Blacklist: make(map[int]bool)},
		IsRootEligible:        rootEligible,
		energyParams:          energyParams,
		env:                   env,
	}
	n.TxPower = env.Config.NodeDefaultTxPower
	n.TxRange = energyParams.RangeForLevel(n.TxPower)
	n.TxCurrentMa = energyParams.TxCurrentLevelsMa[n.TxPower]
	return n
}

func (n *Node) log() *zap.Logger {
	return n.env.Log.With(zap.Int("node_id", n.ID))
}

// ProtocolViolationError marks a spec.md §7 "fail fast, this is a bug"
// condition: a mesh hop count exceeding MESH_HOP_N+1, or a role-pair
// legality breach that survived every filter.
type ProtocolViolationError struct {
	Msg string
}

func (e ProtocolViolationError) Error() string { return "protocol violation: " + e.Msg }

// setRole is the single place any role transition happens (spec.md §4.1):
// it updates the shared role counter, appends a role-change report row,
// recolors the node in the scene, and for CH/Router/Root (re)assigns TX
// power and redraws the range circle.
func (n *Node) setRole(newRole role.Role) {
	old := n.Role
	if old == newRole {
		return
	}
	if ctx := n.env.Ctx; ctx != nil {
		ctx.RoleCounts[old]--
		ctx.RoleCounts[newRole]++
	}
	n.Role = newRole
	n.env.Reporter.RoleChange(n.env.Kernel.Now(), n.ID, old.String(), newRole.String())
	n.recolor()

	if newRole == role.ClusterHead || newRole == role.Router || newRole == role.Root {
		n.AssignTxPower(nil)
	}
}

func (n *Node) recolor() {
	var r, g, b uint8
	switch n.Role {
	case role.Undiscovered:
		r, g, b = 128, 128, 128
	case role.Unregistered:
		r, g, b = 230, 200, 40
	case role.Registered:
		r, g, b = 40, 110, 230
	case role.ClusterHead:
		r, g, b = 40, 200, 80
	case role.Router:
		r, g, b = 230, 140, 40
	case role.Root:
		r, g, b = 220, 30, 30
	}
	n.env.Scene.NodeColor(n.ID, r, g, b)
}

// AssignTxPower implements spec.md §4.7: if level is non-nil use it
// explicitly; else Router uses the max level; CH/Root use the smallest
// level whose scaled range covers MaxClusterDistance(); everyone else
// uses the configured default. The range circle is redrawn only when the
// level actually changes.
func (n *Node) AssignTxPower(level *int) {
	old := n.TxPower
	switch {
	case level != nil:
		n.TxPower = *level
	case n.Role == role.Router:
		n.TxPower = n.energyParams.MaxLevel()
	case n.Role == role.ClusterHead || n.Role == role.Root:
		dist := n.MaxClusterDistance()
		if lvl, ok := energy.SmallestLevelCovering(n.energyParams, dist); ok {
			n.TxPower = lvl
		} else if dist == 0 {
			n.TxPower = n.env.Config.NodeDefaultTxPower
		} else {
			n.TxPower = lvl
		}
	default:
		n.TxPower = n.env.Config.NodeDefaultTxPower
	}
	n.TxRange = n.energyParams.RangeForLevel(n.TxPower)
	n.TxCurrentMa = n.energyParams.TxCurrentLevelsMa[n.TxPower]
	if old != n.TxPower {
		n.env.Scene.Circle(n.ID, n.Pos.X, n.Pos.Y, n.TxRange, "dashed")
	}
}

// MaxClusterDistance is the max of MaxPendingJoinDistance, the distance to
// the node's parent, the distance to its members, and the distance to
// same-net neighbors (spec.md §4.7).
func (n *Node) MaxClusterDistance() float64 {
	max := n.MaxPendingJoinDistance
	if n.ParentGUI != nil {
		if parent, ok := n.NeighborsTable[*n.ParentGUI]; ok && parent.Distance > max {
			max = parent.Distance
		}
	}
	for _, entry := range n.NeighborsTable {
		if n.Role.HasCluster() && entry.ChAddr.IsEqual(n.ChAddr) && entry.Distance > max {
			max = entry.Distance
		}
		if n.MembersTable[entry.Addr] && entry.Distance > max {
			max = entry.Distance
		}
	}
	return max
}

// killAllTimers is a thin wrapper kept for readability at call sites that
// must kill every timer before a role transition (spec.md §5).
func (n *Node) killAllTimers() {
	n.env.Kernel.KillAllTimers(n.ID)
}

// resetLocalTables clears every table become_unregistered must reset
// (spec.md §4.1): candidate/join bookkeeping and cluster-ownership
// tables, but not NeighborsTable, which is refreshed independently by
// HEART_BEAT/TABLE_SHARE and is not scoped to a particular role.
func (n *Node) resetLocalTables() {
	n.CandidateParentsTable = make(map[int]routing.NeighborEntry)
	n.JoinReqAttempts = make(map[int]int)
	n.ReceivedJRGUIs = nil
	n.Transfer = ChTransferBookkeeping{Blacklist: make(map[int]bool)}
	n.ChildNetworksTable = make(map[int][]uint8)
	n.MembersTable = make(map[addr.Addr]bool)
	n.NodeAvailableDict = make(map[uint8]*int)
}

// becomeUnregistered implements spec.md §4.1/§4.2: resets local tables,
// clears the node's tree identity, emits a PROBE, and arms
// TIMER_JOIN_REQUEST. Called on re-join: when the node's parent dies
// (reorganizeAfterDeath) and when selectAndJoin has no usable candidate
// left. The initial Undiscovered->Unregistered transition in
// handleHeartBeat does not go through it, and a parent that turns into a
// Router does not trigger it.
func (n *Node) becomeUnregistered() {
	n.killAllTimers()
	n.resetLocalTables()
	old := n.Addr
	n.Addr = addr.Addr{}
	n.ChAddr = addr.Addr{}
	n.ParentGUI = nil
	n.HopCount = HopDisconnected
	if n.env.Ctx != nil {
		n.env.Ctx.SetAddr(&old, addr.Addr{}, nil)
	}
	n.setRole(role.Unregistered)
	n.sendProbe()
	n.armJoinRequestTimer()
}

func (n *Node) armJoinRequestTimer() {
	n.env.Kernel.SetTimer(n.ID, TimerJoinRequest, n.env.Config.JoinRequestTimeInterval)
}

// becomeRouter implements spec.md §4.1/§4.3: a ClusterHead that accepted
// its nominee's CH_NOMINATION_ACK steps down to Router. It keeps its own
// Addr/ParentGUI/RootAddr/HopCount (a Router stays a registered member of
// the tree, it simply stops owning a subnet), but gives up cluster
// ownership: ChAddr is cleared (the Router is not a CH for I3), its
// members transferred to the nominee, and its own NodeAvailableDict reset
// for the descending-allocation Router-adoption path (spec.md §4.2).
func (n *Node) becomeRouter() {
	n.killAllTimers()
	n.ChAddr = addr.Addr{}
	n.MembersTable = make(map[addr.Addr]bool)
	n.ChildNetworksTable = make(map[int][]uint8)
	n.NodeAvailableDict = make(map[uint8]*int)
	n.Transfer = ChTransferBookkeeping{Blacklist: make(map[int]bool)}
	n.setRole(role.Router)
	n.armHeartBeatTimer()
	n.env.Kernel.SetTimer(n.ID, TimerRoleOptimize, n.env.Config.RoleOptimizeTime)
}

// demoteToRegistered implements spec.md §4.8: a dependent-free CH/Router
// whose parent is CH/Root demotes back to Registered.
func (n *Node) demoteToRegistered() {
	n.ChAddr = addr.Addr{}
	n.NodeAvailableDict = make(map[uint8]*int)
	n.MembersTable = make(map[addr.Addr]bool)
	n.ChildNetworksTable = make(map[int][]uint8)
	n.AssignTxPower(&n.env.Config.NodeDefaultTxPower)
	n.setRole(role.Registered)
	n.sendHeartBeat()
	n.armHeartBeatTimer()
}

// register implements spec.md §4.2: the first-registration delta is
// recorded into the simulator's join_times and the registration_log.csv
// row, then the node becomes Registered.
func (n *Node) register() {
	now := n.env.Kernel.Now()
	if n.RegisteredTime == nil {
		n.RegisteredTime = &now
		delta := now - n.WakeTime
		if n.env.Ctx != nil {
			n.env.Ctx.JoinTimes = append(n.env.Ctx.JoinTimes, delta)
		}
		n.env.Reporter.Registration(n.ID, n.WakeTime, now, delta)
	}
	n.setRole(role.Registered)
	n.env.Kernel.SetTimer(n.ID, TimerRoleOptimize, n.env.Config.RoleOptimizeTime)
}

// Kill forces this node below MIN_ENERGY_J, for the orchestrated
// failure schedule (spec.md §4.9, FAILURE_TIME/NUM_NODES_TO_KILL). Root is
// immune (applyDeath clamps it instead of failing it), matching energy-
// driven death.
func (n *Node) Kill() {
	n.Power = n.env.Config.MinEnergyJ
	n.applyDeathAs("ORCHESTRATED_FAILURE")
}

// Revive resets a previously failed node back to its post-wake state and
// restarts discovery from scratch (spec.md §4.9, RECOVERY_TIME).
func (n *Node) Revive(now float64) {
	if !n.Failed {
		return
	}
	n.Failed = false
	n.Power = n.env.Config.InitialEnergyJ
	n.setRole(role.Undiscovered)
	n.Addr, n.ChAddr, n.RootAddr = addr.Addr{}, addr.Addr{}, addr.Addr{}
	n.ParentGUI = nil
	n.HopCount = HopDisconnected
	n.resetLocalTables()
	n.recolor()
	n.env.Reporter.FailureEvent(now, n.ID, "RECOVERED", n.countOrphans())
	n.Wake(now)
}

// IsFailed reports the node's current failure state.
func (n *Node) IsFailed() bool { return n.Failed }

// applyDeath implements spec.md §4.6's death policy: Root is clamped to
// MIN_ENERGY_J and never fails; every other node fails permanently, stops
// its timers, is recolored, and triggers reorganization of its children.
func (n *Node) applyDeath() {
	n.applyDeathAs("ENERGY_DEAD")
}

func (n *Node) applyDeathAs(eventType string) {
	if n.Power > n.env.Config.MinEnergyJ {
		return
	}
	if n.Role == role.Root {
		n.Power = n.env.Config.MinEnergyJ
		return
	}
	if n.Failed {
		return
	}
	n.Failed = true
	n.killAllTimers()
	n.env.Scene.NodeColor(n.ID, 80, 80, 80)
	if n.env.Ctx != nil {
		n.env.Ctx.FailedCount++
	}
	n.env.Reporter.FailureEvent(n.env.Kernel.Now(), n.ID, eventType, n.countOrphans())
	n.reorganizeAfterDeath()
}

// reorganizeAfterDeath implements spec.md §4.6: every non-failed child of
// this node loses its parent link and restarts discovery.
func (n *Node) reorganizeAfterDeath() {
	if n.env.Ctx == nil {
		return
	}
	for _, other := range n.env.Ctx.AllNodes {
		if other == n || other.Failed {
			continue
		}
		if other.ParentGUI == nil || *other.ParentGUI != n.ID {
			continue
		}
		n.env.Scene.DelShape(parentArrowID(other.ID))
		other.ParentGUI = nil
		other.ChAddr = addr.Addr{}
		other.becomeUnregistered()
	}
}

func (n *Node) countOrphans() int {
	if n.env.Ctx == nil {
		return 0
	}
	count := 0
	for _, other := range n.env.Ctx.AllNodes {
		if !other.Failed && other.Role.IsOrphan() {
			count++
		}
	}
	return count
}

func parentArrowID(nodeID int) string {
	return "parent-arrow-" + itoa(nodeID)
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Wake starts a node's life at the configured simulated time: it either
// becomes eligible-root-waiting-to-probe or an ordinary probing node,
// both of which arm TIMER_PROBE (spec.md §3 Lifecycle, §4.1).
func (n *Node) Wake(now float64) {
	n.WakeTime = now
	n.ProbeAttempts = 0
	n.armProbeTimer()
}

func (n *Node) armProbeTimer() {
	n.env.Kernel.SetTimer(n.ID, TimerProbe, 1)
}

// Receive dispatches an inbound packet to its role/type handler
// (spec.md §4, "dispatch table (Role, PacketType) -> handler" design
// note), after first accounting RX energy (spec.md §4.6: every reception
// is charged before application handling).
func (n *Node) Receive(pkt Packet) {
	if n.Failed {
		return
	}
	n.chargeRx()
	if n.Failed {
		return
	}
	if pkt.NextHop != nil && !pkt.NextHop.IsEqual(n.Addr) {
		return
	}
	if !n.isLocal(pkt) {
		n.forward(pkt)
		return
	}
	switch pkt.Type {
	case Probe:
		n.handleProbe(pkt)
	case HeartBeat:
		n.handleHeartBeat(pkt)
	case JoinRequest:
		n.handleJoinRequest(pkt)
	case JoinReply:
		n.handleJoinReply(pkt)
	case JoinAck:
		n.handleJoinAck(pkt)
	case NetworkRequest:
		n.handleNetworkRequest(pkt)
	case NetworkReply:
		n.handleNetworkReply(pkt)
	case NetworkUpdate:
		n.handleNetworkUpdate(pkt)
	case TableShare:
		n.handleTableShare(pkt)
	case ChNomination:
		n.handleChNomination(pkt)
	case ChNominationAck:
		n.handleChNominationAck(pkt)
	case SensorData:
		n.handleSensorData(pkt)
	default:
		panic(ProtocolViolationError{Msg: "unknown packet type"})
	}
}

// chargeRx implements spec.md §4.6's per-RX energy accounting.
func (n *Node) chargeRx() {
	cost := n.energyParams.RxEnergyJ()
	n.Power -= cost
	n.RxEnergyConsumedJ += cost
	n.RxPacketCount++
	n.applyDeath()
}

// send implements spec.md §5's ordering requirement: TX energy is
// accounted and the death check run before the packet is ever handed to
// the radio, so a node that dies from its own transmission never emits
// it.
func (n *Node) send(pkt Packet) {
	cost := n.energyParams.TxEnergyJ(n.TxPower)
	n.Power -= cost
	n.TxEnergyConsumedJ += cost
	n.TxPacketCount++
	n.applyDeath()
	if n.Failed && n.Role != role.Root {
		return
	}
	pkt.SenderGUI = n.ID
	pkt.SenderRole = n.Role
	if pkt.CreationTime == 0 {
		pkt.CreationTime = n.env.Kernel.Now()
	}
	n.env.Kernel.Send(n.ID, pkt)
}
