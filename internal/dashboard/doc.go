// Package dashboard holds the per-viewer dashboard state: a bounded history of
// readings per device, the registry of discovered devices, the selected device
// and the chart views derived from them.
//
// A Session is not safe for concurrent use. Every call must come from the one
// goroutine that owns it; Loop provides such a goroutine for owners that are
// themselves concurrent.
package dashboard
