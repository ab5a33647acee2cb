package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXPThreshold(t *testing.T) {
	want := []int{0, 0, 100, 300, 600, 1000, 1500}
	for level := 1; level < len(want); level++ {
		assert.Equal(t, want[level], XPThreshold(level), "level %d", level)
	}
	assert.Equal(t, 0, XPThreshold(0))
}

func TestLevelFromXP(t *testing.T) {
	tests := []struct {
		xp        int
		level     int
		into      int
		next      int
		progressP int
	}{
		{0, 1, 0, 100, 0},
		{99, 1, 99, 100, 99},
		{100, 2, 0, 200, 0},
		{150, 2, 50, 200, 25},
		{250, 2, 150, 200, 75},
		{299, 2, 199, 200, 99},
		{300, 3, 0, 300, 0},
		{600, 4, 0, 400, 0},
		{4500, 10, 0, 1000, 0},
		{-5, 1, 0, 100, 0},
	}
	for _, tt := range tests {
		got := LevelFromXP(tt.xp)
		assert.Equal(t, LevelInfo{Level: tt.level, XPIntoLevel: tt.into, XPForNextLevel: tt.next, ProgressPercent: tt.progressP}, got, "xp=%d", tt.xp)
	}
}

func TestLevelFromXP_Monotonic(t *testing.T) {
	prev := 1
	for xp := 0; xp <= 20000; xp += 37 {
		l := LevelFromXP(xp).Level
		assert.GreaterOrEqual(t, l, prev)
		prev = l
	}
}

func TestLevelName(t *testing.T) {
	cases := map[int]string{
		1: LevelBeginner, 2: LevelBeginner,
		3: LevelIntermediate, 5: LevelIntermediate,
		6: LevelAdvanced, 10: LevelAdvanced,
		11: LevelExpert, 40: LevelExpert,
	}
	for level, name := range cases {
		assert.Equal(t, name, LevelName(level), "level %d", level)
	}
}
