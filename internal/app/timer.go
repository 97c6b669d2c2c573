package app

// PhaseTimer is a countdown in whole seconds driven by external ticks.
// Expiry is polled with Expired after each tick; there is no callback.
type PhaseTimer struct {
	duration  int
	remaining int
	paused    bool
}

func NewPhaseTimer(durationSeconds int) *PhaseTimer {
	return &PhaseTimer{duration: durationSeconds, remaining: durationSeconds}
}

// Start resets the remaining time to durationSeconds and unpauses.
func (t *PhaseTimer) Start(durationSeconds int) {
	t.duration = durationSeconds
	t.remaining = durationSeconds
	t.paused = false
}

// Reset restarts the timer with its configured duration.
func (t *PhaseTimer) Reset() {
	t.Start(t.duration)
}

// Tick removes one second unless paused or already at zero.
func (t *PhaseTimer) Tick() {
	if t.paused || t.remaining <= 0 {
		return
	}
	t.remaining--
}

func (t *PhaseTimer) Pause()  { t.paused = true }
func (t *PhaseTimer) Resume() { t.paused = false }

func (t *PhaseTimer) Paused() bool   { return t.paused }
func (t *PhaseTimer) Expired() bool  { return t.remaining <= 0 }
func (t *PhaseTimer) Remaining() int { return t.remaining }
func (t *PhaseTimer) Duration() int  { return t.duration }
