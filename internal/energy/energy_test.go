package energy

import (
	"math"
	"testing"
)

func defaultParams() Params {
	return Params{
		VoltageV:          3.0,
		DataRateBps:        250000,
		PsduBytes:          50,
		TxTurnaroundJ:      10e-6,
		RxTurnaroundJ:      10e-6,
		RxCurrentMa:        18.8,
		TxCurrentLevelsMa:  map[int]float64{0: 9.9, 1: 11.0, 2: 17.4},
		TxRangesByLevel:    map[int]float64{0: 65, 1: 100, 2: 140},
	}
}

// TestTxEnergyJ_Level1 is spec.md S2: force one TX from a fresh node at
// tx_power=1. Expected delta = 3.0*0.011*8*56/250000 + 1e-5.
func TestTxEnergyJ_Level1(t *testing.T) {
	p := defaultParams()
	got := p.TxEnergyJ(1)
	want := 3.0*0.011*8*56/250000 + 1e-5
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("TxEnergyJ(1) = %.15f, want %.15f (delta %g)", got, want, got-want)
	}
}

func TestTxEnergyJ_AllLevelsPositive(t *testing.T) {
	p := defaultParams()
	for level := range p.TxCurrentLevelsMa {
		if p.TxEnergyJ(level) <= 0 {
			t.Errorf("TxEnergyJ(%d) = %f, want > 0", level, p.TxEnergyJ(level))
		}
	}
}

func TestRxEnergyJ(t *testing.T) {
	p := defaultParams()
	got := p.RxEnergyJ()
	want := 3.0*0.0188*8*56/250000 + 1e-5
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("RxEnergyJ() = %.15f, want %.15f", got, want)
	}
}

func TestSmallestLevelCovering(t *testing.T) {
	p := defaultParams()

	tests := []struct {
		name     string
		dist     float64
		wantLvl  int
		wantOK   bool
	}{
		{"covered by level 0", 40, 0, true},
		{"covered by level 1", 90, 1, true},
		{"covered by level 2", 130, 2, true},
		{"exceeds every level", 500, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lvl, ok := SmallestLevelCovering(p, tt.dist)
			if lvl != tt.wantLvl || ok != tt.wantOK {
				t.Errorf("SmallestLevelCovering(%v) = (%d,%v), want (%d,%v)", tt.dist, lvl, ok, tt.wantLvl, tt.wantOK)
			}
		})
	}
}

func TestMaxLevel(t *testing.T) {
	p := defaultParams()
	if got := p.MaxLevel(); got != 2 {
		t.Errorf("MaxLevel() = %d, want 2", got)
	}
}
