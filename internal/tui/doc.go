// Package tui is the terminal dashboard. It follows a server's raw telemetry
// stream into a local dashboard session, which it owns from the bubbletea
// update loop, and draws the device list, a braille trend chart and the three
// proportion bars.
package tui
