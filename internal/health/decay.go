package health

import "math"

// DecayWeight computes exp(-deltaDays/tau).
func DecayWeight(deltaDays, tau float64) float64 {
	if tau <= 0 {
		return 0
	}
	return math.Exp(-deltaDays / tau)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// clampRound rounds to the nearest integer and clamps into [0, hi].
func clampRound(x float64, hi int) int {
	return int(clamp(math.Round(x), 0, float64(hi)))
}
