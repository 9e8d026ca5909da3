////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package analysis derives the public scores and advisory text from the
// plaintext of a verified observation. Everything here is pure; inputs are
// 32-bit and all intermediate arithmetic is 64-bit so no input overflows.
package analysis

// Advisory texts, in priority order
const (
	AviationWarning  = "aviation warning"
	ClimateWarning   = "significant climate impact"
	MonitorCorridors = "monitor aviation corridors"
	StandardMonitor  = "standard monitoring"
)

// Thresholds which must be strictly exceeded to raise an advisory
const (
	AviationWarningThreshold  = 80
	ClimateWarningThreshold   = 70
	MonitorCorridorsThreshold = 50
)

// Scores is the derived, publishable result of one observation
type Scores struct {
	Climate  uint64
	Aviation uint64
	Advisory string
}

// ClimateImpact returns floor((3*so2 + co2 + 2*h2s) / 10)
func ClimateImpact(so2, co2, h2s uint32) uint64 {
	return (3*uint64(so2) + uint64(co2) + 2*uint64(h2s)) / 10
}

// AviationRisk returns floor(so2 * altitude / 1000)
func AviationRisk(so2, altitude uint32) uint64 {
	return uint64(so2) * uint64(altitude) / 1000
}

// Advise picks the advisory for a pair of scores. The aviation warning
// outranks the climate warning even when both apply.
func Advise(climate, aviation uint64) string {
	switch {
	case aviation > AviationWarningThreshold:
		return AviationWarning
	case climate > ClimateWarningThreshold:
		return ClimateWarning
	case aviation > MonitorCorridorsThreshold:
		return MonitorCorridors
	default:
		return StandardMonitor
	}
}

// Derive computes all scores for one decrypted observation
func Derive(so2, co2, h2s, altitude uint32) Scores {
	climate := ClimateImpact(so2, co2, h2s)
	aviation := AviationRisk(so2, altitude)
	return Scores{
		Climate:  climate,
		Aviation: aviation,
		Advisory: Advise(climate, aviation),
	}
}
