// Package energy implements the CC2420-style per-packet energy accounting
// and TX-power level policy from spec.md §4.6-§4.7.
package energy

import "sort"

// Params bundles the radio constants spec.md §4.6 fixes for the energy
// model. All fields come directly from config so a scenario (e.g. S2, S4)
// can vary them without code changes.
type Params struct {
	VoltageV          float64
	DataRateBps        float64
	PsduBytes          int
	TxTurnaroundJ      float64
	RxTurnaroundJ      float64
	RxCurrentMa        float64
	TxCurrentLevelsMa  map[int]float64
	TxRangesByLevel    map[int]float64
}

// bitsPerPacket is 8*(N+6): N PSDU bytes plus 6 bytes of framing, per
// spec.md §4.6.
func (p Params) bitsPerPacket() float64 {
	return 8 * float64(p.PsduBytes+6)
}

// TxEnergyJ computes E_tx for one transmitted packet at the given power
// level (spec.md §4.6, P9): E_tx = V * I_tx * 8*(N+6)/R + TX_TURNAROUND.
func (p Params) TxEnergyJ(level int) float64 {
	iTx := p.TxCurrentLevelsMa[level] / 1000
	return p.VoltageV*iTx*p.bitsPerPacket()/p.DataRateBps + p.TxTurnaroundJ
}

// RxEnergyJ computes E_rx for one received packet (spec.md §4.6):
// E_rx = V * (RX_CURRENT/1000) * 8*(N+6)/R + RX_TURNAROUND.
func (p Params) RxEnergyJ() float64 {
	iRx := p.RxCurrentMa / 1000
	return p.VoltageV*iRx*p.bitsPerPacket()/p.DataRateBps + p.RxTurnaroundJ
}

// RangeForLevel returns the TX range the medium grants at a given power
// level, per config's NODE_TX_RANGES table.
func (p Params) RangeForLevel(level int) float64 {
	return p.TxRangesByLevel[level]
}

// MaxLevel returns the highest configured power level.
func (p Params) MaxLevel() int {
	max := 0
	for level := range p.TxRangesByLevel {
		if level > max {
			max = level
		}
	}
	return max
}

// SmallestLevelCovering returns the smallest power level whose scaled
// range covers dist, and the max configured level (with ok=false) if no
// level covers it (spec.md §4.7, P8).
func SmallestLevelCovering(p Params, dist float64) (level int, ok bool) {
	levels := make([]int, 0, len(p.TxRangesByLevel))
	for l := range p.TxRangesByLevel {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	for _, l := range levels {
		if p.TxRangesByLevel[l] >= dist {
			return l, true
		}
	}
	if len(levels) == 0 {
		return 0, false
	}
	return levels[len(levels)-1], false
}
