// Package config loads and validates the simulator's tunables from YAML
// over built-in defaults. The cobra/pflag command only selects the file;
// individual tunables have no command-line overrides.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Point is a static 2-D terrain position.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Config holds every recognized tunable from spec.md §6. YAML tags use the
// same spelling as the spec so operators can copy option names directly.
type Config struct {
	SimNodeCount             int             `yaml:"SIM_NODE_COUNT"`
	SimDuration              float64         `yaml:"SIM_DURATION"`
	SimTimeScale             float64         `yaml:"SIM_TIME_SCALE"`
	SimTerrainSize           Point           `yaml:"SIM_TERRAIN_SIZE"`
	SimVisualization         bool            `yaml:"SIM_VISUALIZATION"`
	SimNodePlacingCellSize   float64         `yaml:"SIM_NODE_PLACING_CELL_SIZE"`
	NodeArrivalMax           float64         `yaml:"NODE_ARRIVAL_MAX"`
	NodeTxRanges             map[int]float64 `yaml:"NODE_TX_RANGES"`
	NodeDefaultTxPower       int             `yaml:"NODE_DEFAULT_TX_POWER"`
	AllowTxPowerChoice       bool            `yaml:"ALLOW_TX_POWER_CHOICE"`
	PacketLossRatio          float64         `yaml:"PACKET_LOSS_RATIO"`
	FailureTime              float64         `yaml:"FAILURE_TIME"`
	RecoveryTime             float64         `yaml:"RECOVERY_TIME"`
	NumNodesToKill           int             `yaml:"NUM_NODES_TO_KILL"`
	HeartBeatTimeInterval    float64         `yaml:"HEART_BEAT_TIME_INTERVAL"`
	HearthBeatTimeIntervalLegacy *float64    `yaml:"HEARTH_BEAT_TIME_INTERVAL"`
	JoinRequestTimeInterval  float64         `yaml:"JOIN_REQUEST_TIME_INTERVAL"`
	TableShareInterval       float64         `yaml:"TABLE_SHARE_INTERVAL"`
	JoinReqExpandThreshold   int             `yaml:"JOIN_REQ_EXPAND_THRESHOLD"`
	JoinReqExpandWindow      float64         `yaml:"JOIN_REQ_EXPAND_WINDOW"`
	RoleOptimizeTime         float64         `yaml:"ROLE_OPTIMIZE_TIME"`
	NeighborTableMaxHops     int             `yaml:"NEIGHBOR_TABLE_MAX_HOPS"`
	EnableDataPackets        bool            `yaml:"ENABLE_DATA_PACKETS"`
	DataInterval             float64         `yaml:"DATA_INTERVAL"`
	InitialEnergyJ           float64         `yaml:"INITIAL_ENERGY_J"`
	MinEnergyJ               float64         `yaml:"MIN_ENERGY_J"`
	EnergyPsduBytes          int             `yaml:"ENERGY_PSDU_BYTES"`
	TxTurnaroundEnergyJ      float64         `yaml:"TX_TURNAROUND_ENERGY_J"`
	RxTurnaroundEnergyJ      float64         `yaml:"RX_TURNAROUND_ENERGY_J"`
	NetworkDeathThreshold    float64         `yaml:"NETWORK_DEATH_THRESHOLD"`
	Voltage                  float64         `yaml:"VOLTAGE"`
	DataRate                 float64         `yaml:"DATARATE"`
	RxCurrentMa              float64         `yaml:"RX_CURRENT"`
	TxCurrentLevelsMa        map[int]float64 `yaml:"TX_CURRENT_LEVELS_MA"`
	Seed                     int64           `yaml:"SEED"`
	PowerSamplingInterval    float64         `yaml:"POWER_SAMPLING_INTERVAL"`

	// NumOfChildren bounds the per-cluster node-address pool size
	// (NUM_OF_CHILDREN in the spec's prose; not in the §6 option table
	// but exercised directly by S5's address-pool-exhaustion scenario).
	NumOfChildren int `yaml:"NUM_OF_CHILDREN"`

	// JrThreshold is jr_threshold, the per-candidate JOIN_REQUEST retry
	// cap (spec.md §4.2).
	JrThreshold int `yaml:"JR_THRESHOLD"`

	// ThProbe is th_probe, the PROBE retry count before root election
	// eligibility kicks in (spec.md §4.1).
	ThProbe int `yaml:"TH_PROBE"`

	// MeshHopN is MESH_HOP_N, the mesh fan-out bound (spec.md §4.4, P6).
	MeshHopN int `yaml:"MESH_HOP_N"`

	// MaxOrphanTicks is loaded and defaulted, but nothing in the simulator
	// reads it; the orchestrator applies no orphan-clearing time limit.
	MaxOrphanTicks float64 `yaml:"MAX_ORPHAN_TICKS"`

	// NeighborHoldTicks is NEIGHBOR_HOLD_TICKS: how long a neighbor table
	// entry survives without a refreshing HEART_BEAT/TABLE_SHARE before
	// it is evicted (spec.md §3 Supplementary fields, carried over from
	// the teacher's own link-timeout handling).
	NeighborHoldTicks float64 `yaml:"NEIGHBOR_HOLD_TICKS"`
}

// HeartBeatInterval resolves the documented spelling ambiguity (spec.md §9
// Open Questions): HEART_BEAT_TIME_INTERVAL wins when set; the legacy
// HEARTH_BEAT_TIME_INTERVAL key is honored only when the canonical one was
// left at its zero value.
func (c *Config) HeartBeatInterval() float64 {
	if c.HeartBeatTimeInterval != 0 {
		return c.HeartBeatTimeInterval
	}
	if c.HearthBeatTimeIntervalLegacy != nil {
		return *c.HearthBeatTimeIntervalLegacy
	}
	return 101
}

// Default returns the configuration with every spec.md §6 default applied.
func Default() *Config {
	return &Config{
		SimNodeCount:            100,
		SimDuration:             5000,
		SimTimeScale:            0,
		SimTerrainSize:          Point{X: 1400, Y: 1400},
		SimVisualization:        true,
		SimNodePlacingCellSize:  60,
		NodeArrivalMax:          200,
		NodeTxRanges:            map[int]float64{0: 65, 1: 100, 2: 140},
		NodeDefaultTxPower:      1,
		AllowTxPowerChoice:      true,
		PacketLossRatio:         0.05,
		FailureTime:             500,
		RecoveryTime:            550,
		NumNodesToKill:          3,
		HeartBeatTimeInterval:   101,
		JoinRequestTimeInterval: 20,
		TableShareInterval:      101,
		JoinReqExpandThreshold:  3,
		JoinReqExpandWindow:     202,
		RoleOptimizeTime:        2000,
		NeighborTableMaxHops:    2,
		EnableDataPackets:       true,
		DataInterval:            50,
		InitialEnergyJ:          2.0,
		MinEnergyJ:              1.7,
		EnergyPsduBytes:         50,
		TxTurnaroundEnergyJ:     10e-6,
		RxTurnaroundEnergyJ:     10e-6,
		NetworkDeathThreshold:   0.5,
		Voltage:                 3.0,
		DataRate:                250000,
		RxCurrentMa:             18.8,
		TxCurrentLevelsMa:       map[int]float64{0: 9.9, 1: 11.0, 2: 17.4},
		Seed:                    22,
		PowerSamplingInterval:   50,
		NumOfChildren:           254,
		JrThreshold:             5,
		ThProbe:                 10,
		MeshHopN:                2,
		MaxOrphanTicks:          2000,
		NeighborHoldTicks:       303,
	}
}

// Load reads a YAML config file over the defaults, so a file only needs to
// set the options it wants to override.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate collects every configuration problem at once, the way
// hashicorp/go-multierror is used elsewhere in the corpus for
// multi-cause validation failures.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.SimNodeCount <= 0 {
		result = multierror.Append(result, fmt.Errorf("SIM_NODE_COUNT must be positive, got %d", c.SimNodeCount))
	}
	if c.PacketLossRatio < 0 || c.PacketLossRatio > 1 {
		result = multierror.Append(result, fmt.Errorf("PACKET_LOSS_RATIO must be in [0,1], got %f", c.PacketLossRatio))
	}
	if c.MinEnergyJ > c.InitialEnergyJ {
		result = multierror.Append(result, fmt.Errorf("MIN_ENERGY_J (%f) must not exceed INITIAL_ENERGY_J (%f)", c.MinEnergyJ, c.InitialEnergyJ))
	}
	if c.NetworkDeathThreshold < 0 || c.NetworkDeathThreshold > 1 {
		result = multierror.Append(result, fmt.Errorf("NETWORK_DEATH_THRESHOLD must be in [0,1], got %f", c.NetworkDeathThreshold))
	}
	if c.NumOfChildren <= 0 || c.NumOfChildren > 254 {
		result = multierror.Append(result, fmt.Errorf("NUM_OF_CHILDREN must be in [1,254], got %d", c.NumOfChildren))
	}
	return result.ErrorOrNil()
}
