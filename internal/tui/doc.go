// Package tui provides the terminal dashboard for otto's status command.
//
// The dashboard is read-only: the daemon writes heartbeat snapshots to
// the database and the dashboard polls them on a fixed cadence. It
// shows the active profile, power state and runtime estimate, memory
// and token usage, the agent roster, and the trailing heartbeats.
//
// Usage:
//
//	program, _ := tui.NewStatusProgram(db, 2*time.Second)
//	program.Run()
//
// Users can quit with 'q' or Ctrl+C and force a refresh with 'r'.
package tui
