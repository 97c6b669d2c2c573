package app

// Test doubles shared with the external app_test package.
type (
	ManualScheduler = manualScheduler
	FakeClock       = fakeClock
	FixedSource     = fixedSource
)

var (
	NewManualScheduler = newManualScheduler
	NewFakeClock       = newFakeClock
)
