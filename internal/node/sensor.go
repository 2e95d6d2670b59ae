package node

import (
	"github.com/google/uuid"

	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/report"
	"github.com/kprusa/dctsim/internal/role"
)

// sendSensorData implements spec.md §4.4's optional application traffic:
// a registered leaf periodically emits a reading toward the root, tree-
// routed like any other packet.
func (n *Node) sendSensorData() {
	if n.Role == role.Undiscovered || n.Role == role.Unregistered {
		return
	}
	reading := n.env.Kernel.Rand().Float64() * 100
	a := n.Addr
	n.route(Packet{
		Type: SensorData, Dest: n.RootAddr, Source: &a, SensorValue: &reading,
		PktID: uuid.NewString(), CreationTime: n.env.Kernel.Now(),
	})
	n.env.Kernel.SetTimer(n.ID, TimerData, n.env.Config.DataInterval)
}

// handleSensorData implements spec.md §4.4: once a reading reaches its
// final destination (ordinarily the root), it is recorded to
// packet_log.csv with its end-to-end delay and the path type that
// delivered it.
func (n *Node) handleSensorData(pkt Packet) {
	srcGUI := 0
	if pkt.Source != nil {
		srcGUI = n.lookupBySourceAddr(*pkt.Source)
	}
	now := n.env.Kernel.Now()
	n.env.Reporter.PacketLog(report.PacketLogRow{
		PacketID: pkt.PktID, Type: pkt.Type.String(), SourceGUI: srcGUI, DestGUI: n.ID,
		CreatedAt: pkt.CreationTime, ReceivedAt: now, Delay: now - pkt.CreationTime, Path: pkt.Path.String(),
	})
}

func (n *Node) lookupBySourceAddr(a addr.Addr) int {
	if n.env.Ctx == nil {
		return 0
	}
	if owner, ok := n.env.Ctx.AddrToNode[a]; ok {
		return owner.ID
	}
	return 0
}
