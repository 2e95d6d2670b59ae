package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CSVReporter writes each report stream to its own CSV file under a run
// directory, matching spec.md §6's exact schemas.
type CSVReporter struct {
	log *zap.Logger

	// runID is a uuid stamped as the first column of every row, so rows
	// from separate runs concatenated for a multi-run sweep stay
	// distinguishable (spec.md §3 Supplementary fields).
	runID string

	topology     *csvStream
	registration *csvStream
	roleChanges  *csvStream
	packetRoutes *csvStream
	power        *csvStream
	energy       *csvStream
	failures     *csvStream
	packetLog    *csvStream
}

type csvStream struct {
	f *os.File
	w *csv.Writer
}

func newStream(dir, name string, header []string, log *zap.Logger) *csvStream {
	f, err := os.Create(dir + "/" + name)
	if err != nil {
		log.Warn("report: could not create csv stream", zap.String("name", name), zap.Error(err))
		return nil
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		log.Warn("report: could not write csv header", zap.String("name", name), zap.Error(err))
	}
	return &csvStream{f: f, w: w}
}

func (s *csvStream) write(log *zap.Logger, name string, record []string) {
	if s == nil {
		return
	}
	if err := s.w.Write(record); err != nil {
		log.Warn("report: write failed", zap.String("name", name), zap.Error(err))
		return
	}
	s.w.Flush()
}

func (s *csvStream) close() error {
	if s == nil {
		return nil
	}
	s.w.Flush()
	return s.f.Close()
}

// NewCSVReporter creates every report stream under dir. Any stream whose
// file cannot be created is logged and silently turned into a no-op,
// per spec.md §7's "reporting I/O failures never propagate" rule.
func NewCSVReporter(dir string, log *zap.Logger) *CSVReporter {
	return &CSVReporter{
		log:          log,
		runID:        uuid.NewString(),
		topology:     newStream(dir, "topology.csv", []string{"run_id", "Node ID", "Position", "Role"}, log),
		registration: newStream(dir, "registration_log.csv", []string{"run_id", "node_id", "start_time", "registered_time", "delta_time"}, log),
		roleChanges:  newStream(dir, "role_changes.csv", []string{"run_id", "time", "node_id", "old_role", "new_role"}, log),
		packetRoutes: newStream(dir, "packet_routes.csv", []string{"run_id", "time", "packet_type", "source", "current_node", "next_hop", "dest", "hop_count", "routing_direction"}, log),
		power:        newStream(dir, "power_over_time.csv", []string{"run_id", "time", "avg_power_j", "min_power_j", "max_power_j", "alive_nodes", "dead_nodes"}, log),
		energy:       newStream(dir, "energy_metrics.csv", []string{"run_id", "node_id", "role", "initial_energy_j", "final_energy_j", "total_energy_consumed_j", "tx_energy_consumed_j", "rx_energy_consumed_j", "tx_packet_count", "rx_packet_count", "total_packet_count", "avg_energy_per_tx_packet_j", "avg_energy_per_rx_packet_j", "energy_efficiency_j_per_packet", "total_tx_attempts", "total_tx_dropped"}, log),
		failures:     newStream(dir, "failures.csv", []string{"run_id", "time", "node_id", "event_type", "orphan_count"}, log),
		packetLog:    newStream(dir, "packet_log.csv", []string{"run_id", "packet_id", "packet_type", "source_gui", "dest_gui", "created_at", "received_at", "delay", "path"}, log),
	}
}

var _ Reporter = (*CSVReporter)(nil)

func f(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
func i(v int) string     { return strconv.Itoa(v) }

func (r *CSVReporter) Topology(nodeID int, x, y float64, roleName string) {
	r.topology.write(r.log, "topology", []string{r.runID, i(nodeID), fmt.Sprintf("(%s,%s)", f(x), f(y)), roleName})
}

func (r *CSVReporter) Registration(nodeID int, startTime, registeredTime, deltaTime float64) {
	r.registration.write(r.log, "registration", []string{r.runID, i(nodeID), f(startTime), f(registeredTime), f(deltaTime)})
}

func (r *CSVReporter) RoleChange(time float64, nodeID int, oldRole, newRole string) {
	r.roleChanges.write(r.log, "role_changes", []string{r.runID, f(time), i(nodeID), oldRole, newRole})
}

func (r *CSVReporter) PacketRoute(time float64, packetType string, source, currentNode, nextHop, dest string, hopCount int, direction string) {
	r.packetRoutes.write(r.log, "packet_routes", []string{r.runID, f(time), packetType, source, currentNode, nextHop, dest, i(hopCount), direction})
}

func (r *CSVReporter) PowerSample(time, avgPowerJ, minPowerJ, maxPowerJ float64, aliveNodes, deadNodes int) {
	r.power.write(r.log, "power_over_time", []string{r.runID, f(time), f(avgPowerJ), f(minPowerJ), f(maxPowerJ), i(aliveNodes), i(deadNodes)})
}

func (r *CSVReporter) EnergyMetric(m EnergyMetricRow) {
	r.energy.write(r.log, "energy_metrics", []string{
		r.runID, i(m.NodeID), m.Role, f(m.InitialEnergyJ), f(m.FinalEnergyJ), f(m.TotalEnergyConsumedJ),
		f(m.TxEnergyConsumedJ), f(m.RxEnergyConsumedJ), i(m.TxPacketCount), i(m.RxPacketCount),
		i(m.TotalPacketCount), f(m.AvgEnergyPerTxPacketJ), f(m.AvgEnergyPerRxPacketJ), f(m.EnergyEfficiencyJPerPkt),
		i(m.TotalTxAttempts), i(m.TotalTxDropped),
	})
}

func (r *CSVReporter) FailureEvent(time float64, nodeID int, eventType string, orphanCount int) {
	r.failures.write(r.log, "failures", []string{r.runID, f(time), i(nodeID), eventType, i(orphanCount)})
}

func (r *CSVReporter) PacketLog(row PacketLogRow) {
	r.packetLog.write(r.log, "packet_log", []string{
		r.runID, row.PacketID, row.Type, i(row.SourceGUI), i(row.DestGUI), f(row.CreatedAt), f(row.ReceivedAt), f(row.Delay), row.Path,
	})
}

func (r *CSVReporter) Close() error {
	var firstErr error
	for _, s := range []*csvStream{r.topology, r.registration, r.roleChanges, r.packetRoutes, r.power, r.energy, r.failures, r.packetLog} {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Noop discards every report row; used in tests and whenever reporting is
// disabled.
type Noop struct{}

var _ Reporter = Noop{}

func (Noop) Topology(int, float64, float64, string)                             {}
func (Noop) Registration(int, float64, float64, float64)                        {}
func (Noop) RoleChange(float64, int, string, string)                            {}
func (Noop) PacketRoute(float64, string, string, string, string, string, int, string) {}
func (Noop) PowerSample(float64, float64, float64, float64, int, int)           {}
func (Noop) EnergyMetric(EnergyMetricRow)                                       {}
func (Noop) FailureEvent(float64, int, string, int)                             {}
func (Noop) PacketLog(PacketLogRow)                                             {}
func (Noop) Close() error                                                       { return nil }
