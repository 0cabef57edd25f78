// Package connectivity owns the network link and broker session lifecycle.
//
// The Manager is driven by the control loop, which calls EnsureConnected
// once per iteration with the current uptime. It never blocks except inside
// an attempt: link bring-up (bounded by the link's own attempt budget) and
// one session dial (bounded by AttemptTimeout). Between failed attempts it
// waits at least ReconnectDelay, counted from the start of the previous
// attempt. There is no retry cap.
//
// Link exhaustion is the only fatal condition. EnsureConnected returns
// ErrLinkUnavailable and the caller is expected to exit so the process
// supervisor can restart the node.
//
// State machine:
//
//	Disconnected --attempt--> Connecting --ok--> Connected
//	     ^                        |                  |
//	     +--------failed----------+                  |
//	     +--------------session or link lost---------+
package connectivity
