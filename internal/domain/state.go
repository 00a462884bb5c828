package domain

// DefaultIntervalMinutes is used until an interval has been stored.
const DefaultIntervalMinutes = 30

// RunState is the scheduler state reported to consoles.
type RunState struct {
	IsRunning       bool `json:"isRunning"`
	IntervalMinutes int  `json:"intervalMinutes"`
}

// Settings is the synced, non-check part of the configuration.
type Settings struct {
	IntervalMinutes   int  `json:"intervalMinutes"`
	AutoStartOnLaunch bool `json:"autoStartOnLaunch"`
}
