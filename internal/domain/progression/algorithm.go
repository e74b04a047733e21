package progression

import "math"

// epsilon absorbs float error such as 50 * 1.2 = 59.999999...
const epsilon = 1e-9

// calculateAward determines the experience earned by a completed card.
//
// Every tracked minute is worth params.XPPerMinute. When the card had an
// estimate and the tracked time stayed within it, the award is multiplied by
// params.OnTimeBonus. The result is rounded down to whole experience points.
//
// Returns the award and whether the on-time bonus was applied.
func calculateAward(trackedMinutes, estimatedMinutes int, params *Params) (int, bool) {
	if trackedMinutes <= 0 {
		return 0, false
	}

	xp := float64(trackedMinutes) * params.XPPerMinute
	bonus := estimatedMinutes > 0 && trackedMinutes <= estimatedMinutes
	if bonus {
		xp *= params.OnTimeBonus
	}

	return int(math.Floor(xp + epsilon)), bonus
}

// experienceForLevel returns the minimum experience needed to reach level.
// It is the inverse of the level curve: ceil(k * (level-1)^2).
func experienceForLevel(level int, params *Params) int {
	if level <= 1 {
		return 0
	}
	steps := float64(level - 1)
	return int(math.Ceil(params.LevelConstant*steps*steps - epsilon))
}

// levelForExperience maps cumulative experience to a level.
//
// The level is floor(sqrt(xp / k)) + 1, then corrected against the integer
// thresholds from experienceForLevel so that the two functions always agree.
// The function is total (negative input yields level 1) and non-decreasing in xp.
func levelForExperience(xp int, params *Params) int {
	if xp <= 0 {
		return 1
	}

	level := int(math.Floor(math.Sqrt(float64(xp)/params.LevelConstant))) + 1
	for experienceForLevel(level+1, params) <= xp {
		level++
	}
	for level > 1 && experienceForLevel(level, params) > xp {
		level--
	}
	return level
}
