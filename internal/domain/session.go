package domain

// Mode selects how a drawing session is presented.
type Mode string

const (
	// ModeChallenge draws against a prompt under a countdown.
	ModeChallenge Mode = "challenge"
	// ModePractice draws against a reference image without submitting.
	ModePractice Mode = "practice"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeChallenge || m == ModePractice
}

// TimerPresets are the selectable countdown durations, in seconds.
var TimerPresets = []int{30, 60, 180, 300, 600}

// DefaultTimerPreset is the countdown a new session starts with.
const DefaultTimerPreset = 180

// IsTimerPreset reports whether seconds is one of TimerPresets.
func IsTimerPreset(seconds int) bool {
	for _, p := range TimerPresets {
		if p == seconds {
			return true
		}
	}
	return false
}
