package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validate(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestConfig_HeartBeatInterval(t *testing.T) {
	legacy := 100.0

	tests := []struct {
		name string
		cfg  Config
		want float64
	}{
		{
			name: "canonical spelling wins when both set",
			cfg:  Config{HeartBeatTimeInterval: 101, HearthBeatTimeIntervalLegacy: &legacy},
			want: 101,
		},
		{
			name: "legacy spelling used when canonical unset",
			cfg:  Config{HearthBeatTimeIntervalLegacy: &legacy},
			want: 100,
		},
		{
			name: "falls back to spec default",
			cfg:  Config{},
			want: 101,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.HeartBeatInterval())
		})
	}
}

func TestConfig_Validate_AggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.SimNodeCount = 0
	cfg.PacketLossRatio = 2
	cfg.MinEnergyJ = cfg.InitialEnergyJ + 1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIM_NODE_COUNT")
	assert.Contains(t, err.Error(), "PACKET_LOSS_RATIO")
	assert.Contains(t, err.Error(), "MIN_ENERGY_J")
}
