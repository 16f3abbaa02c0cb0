// Package scoring holds the pure points function for a quiz battle.
// It is deliberately free of clocks and I/O so a battle's scores can be
// replayed from recorded timestamps.
package scoring

import "math"

// BasePoints is the maximum award for a single question.
const BasePoints = 100

// Points maps one answer to its award. A correct answer earns a share
// of base proportional to the time remaining when it was submitted,
// never less than 1. Wrong or missing answers earn 0.
func Points(isCorrect bool, remainingMs, timeLimitMs int64, base int) int {
	if !isCorrect || timeLimitMs <= 0 {
		return 0
	}
	if remainingMs < 0 {
		remainingMs = 0
	}
	if remainingMs > timeLimitMs {
		remainingMs = timeLimitMs
	}
	p := int(math.Round(float64(base) * float64(remainingMs) / float64(timeLimitMs)))
	if p < 1 {
		p = 1
	}
	return p
}

// MaxTotal bounds a player's cumulative score for a battle of n questions.
func MaxTotal(n, base int) int {
	return n * base
}
