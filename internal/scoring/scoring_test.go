package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoints(t *testing.T) {
	cases := []struct {
		name        string
		isCorrect   bool
		remainingMs int64
		timeLimitMs int64
		want        int
	}{
		{"instant correct answer gets full base", true, 10000, 10000, 100},
		{"half the time left gets half the base", true, 5000, 10000, 50},
		{"rounds to nearest", true, 3333, 10000, 33},
		{"correct at the buzzer still earns at least 1", true, 0, 10000, 1},
		{"tiny remainder rounds down but floors at 1", true, 4, 10000, 1},
		{"wrong answer earns nothing regardless of speed", false, 10000, 10000, 0},
		{"negative remaining clamps to the floor", true, -250, 10000, 1},
		{"remaining above limit clamps to full base", true, 12000, 10000, 100},
		{"zero time limit earns nothing", true, 5000, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Points(tc.isCorrect, tc.remainingMs, tc.timeLimitMs, 100)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPoints_NeverExceedsBase(t *testing.T) {
	for rem := int64(0); rem <= 15000; rem += 137 {
		p := Points(true, rem, 10000, 100)
		assert.LessOrEqual(t, p, 100, "remaining=%d", rem)
		assert.GreaterOrEqual(t, p, 1, "remaining=%d", rem)
	}
}

func TestMaxTotal(t *testing.T) {
	assert.Equal(t, 1000, MaxTotal(10, 100))
}
