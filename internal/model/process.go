package model

import "time"

// Process describes a game process started by the launcher.
type Process struct {
	PID       int
	ExePath   string
	Argv      []string
	Platform  string
	ProfileID string
	Status    string
	ExitCode  int
	StartedAt time.Time
}

const (
	PlatformWindows = "windows"
	PlatformMacOS   = "darwin"
	PlatformLinux   = "linux"
)

const (
	StatusInit    = ""
	StatusRunning = "running"
	StatusExited  = "exited"
)
