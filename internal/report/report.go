// Package report defines the reporting seam the protocol core writes
// through, and a CSV-backed implementation of it. Exact column orders
// follow spec.md §6. The core never depends on encoding/csv directly,
// mirroring the teacher's own io.Writer-seamed logging
// (node.go's inputLog/outputLog/receivedLog fields): Reporter is the
// interface, CSVReporter one concrete backend, Noop another.
package report

// Reporter is every report row sink the protocol core and orchestrator
// write through. A failure to write is logged by the concrete
// implementation and never propagated back into a handler (spec.md §7).
type Reporter interface {
	Topology(nodeID int, x, y float64, role string)
	Registration(nodeID int, startTime, registeredTime, deltaTime float64)
	RoleChange(time float64, nodeID int, oldRole, newRole string)
	PacketRoute(time float64, packetType string, source, currentNode, nextHop, dest string, hopCount int, direction string)
	PowerSample(time, avgPowerJ, minPowerJ, maxPowerJ float64, aliveNodes, deadNodes int)
	EnergyMetric(m EnergyMetricRow)
	FailureEvent(time float64, nodeID int, eventType string, orphanCount int)
	PacketLog(row PacketLogRow)
	Close() error
}

// EnergyMetricRow is one row of energy_metrics.csv.
type EnergyMetricRow struct {
	NodeID                  int
	Role                    string
	InitialEnergyJ          float64
	FinalEnergyJ            float64
	TotalEnergyConsumedJ    float64
	TxEnergyConsumedJ       float64
	RxEnergyConsumedJ       float64
	TxPacketCount           int
	RxPacketCount           int
	TotalPacketCount        int
	AvgEnergyPerTxPacketJ   float64
	AvgEnergyPerRxPacketJ   float64
	EnergyEfficiencyJPerPkt float64

	// TotalTxAttempts/TotalTxDropped are the medium's per-sender radio
	// counters (spec.md §6's radio contract): every delivery attempt to a
	// node in range increments TotalTxAttempts, and one dropped to
	// PACKET_LOSS_RATIO increments TotalTxDropped.
	TotalTxAttempts int
	TotalTxDropped  int
}

// PacketLogRow is one row of packet_log.csv.
type PacketLogRow struct {
	PacketID  string
	Type      string
	SourceGUI int
	DestGUI   int
	CreatedAt float64
	ReceivedAt float64
	Delay     float64
	Path      string
}
