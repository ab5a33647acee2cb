package domain

// Level name bands.
const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelAdvanced     = "Advanced"
	LevelExpert       = "Expert"
)

// LevelInfo is the position of an XP total on the level curve.
type LevelInfo struct {
	Level int
	// XPIntoLevel is the XP earned since reaching Level.
	XPIntoLevel int
	// XPForNextLevel is the cost of going from Level to Level+1.
	XPForNextLevel  int
	ProgressPercent int
}

// XPThreshold returns the cumulative XP needed to reach level: sum of 100*i for i in [1, level-1].
func XPThreshold(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return 100 * n * (n + 1) / 2
}

// LevelFromXP walks the level curve 0, 100, 300, 600, ... upward while the next threshold is reached.
func LevelFromXP(xp int) LevelInfo {
	if xp < 0 {
		xp = 0
	}
	level := 1
	for XPThreshold(level+1) <= xp {
		level++
	}
	into := xp - XPThreshold(level)
	next := 100 * level
	return LevelInfo{
		Level:           level,
		XPIntoLevel:     into,
		XPForNextLevel:  next,
		ProgressPercent: into * 100 / next,
	}
}

// LevelName maps a level to its rank name.
func LevelName(level int) string {
	switch {
	case level <= 2:
		return LevelBeginner
	case level <= 5:
		return LevelIntermediate
	case level <= 10:
		return LevelAdvanced
	default:
		return LevelExpert
	}
}
