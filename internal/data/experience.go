package data

import "math"

// MaxLevel is the highest reachable level.
const MaxLevel = 135

var levelExp = buildLevelExp()

// buildLevelExp precomputes the total experience needed to reach each level.
// levelExp[1] is 0.
func buildLevelExp() []int {
	table := make([]int, MaxLevel+1)
	points := 0.0
	for l := 1; l < MaxLevel; l++ {
		points += math.Floor(float64(l) + 300*math.Pow(2, float64(l)/7))
		table[l+1] = int(math.Floor(points / 4))
	}
	return table
}

// ExpForLevel returns the experience at which level is reached.
func ExpForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelExp[level]
}

// LevelForExp returns the level reached with exp total experience.
func LevelForExp(exp int) int {
	lo, hi := 1, MaxLevel
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if levelExp[mid] <= exp {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
