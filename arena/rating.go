package arena

import "math"

// ratingK is the ELO K-factor.
const ratingK = 32

// expectedScore is the ELO expected score for the player with ratingA against
// the player with ratingB.
func expectedScore(ratingA int, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/400))
}

// ratingDeltas computes the rating deltas for both slots from their rating
// snapshots and the match outcome. The deltas are zero-sum.
func ratingDeltas(ratingA int, ratingB int, outcome Outcome) (deltaA int, deltaB int) {
	var actualA float64
	switch outcome {
	case OutcomeSlotA:
		actualA = 1
	case OutcomeDraw:
		actualA = 0.5
	case OutcomeSlotB:
		actualA = 0
	}
	deltaA = int(math.Round(ratingK * (actualA - expectedScore(ratingA, ratingB))))
	return deltaA, -deltaA
}
