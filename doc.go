// Package libnetconf provides the NETCONF notification stream engine: a
// persistent, multi-producer / multi-consumer event log shared by the
// server processes of one host, with live fan-out over a host-local
// signal bus.
//
// # Architecture
//
// Streams live as pairs of world-writable files in one directory: a
// binary append-only events log with a fixed header and length-prefixed
// records, and a memory-mapped 1 MiB rule table listing the event names
// the stream accepts. Advisory whole-file locks serialize record reads
// and appends between processes, so any number of servers can publish
// into the same streams concurrently.
//
// A publish builds the notification envelope, appends it to every
// replay-enabled stream whose rule table allows the event name, and then
// announces it on the bus once per allowed stream. A subscriber walks a
// stream in two phases: replay delivers the historical records inside the
// requested time window straight from the log, a single replayComplete
// marker closes the phase, and the live phase follows the bus until the
// stop time passes or the session ends.
//
// # Packages
//
//   - config: streams directory resolution and engine tunables
//   - stream: on-disk codec, file locking, and the rule table
//   - registry: the process-wide stream table and status document
//   - notification: event payloads, envelopes, and decoding
//   - bus: the host-local signal transport (D-Bus, NATS, in-process)
//   - engine: the engine handle, publish path, and subscription iterator
//   - subscription: request validation and the per-session dispatchers
//   - metric: Prometheus instrumentation
//   - errors: error classification and the protocol error taxonomy
//
// # Compatibility
//
// The on-disk formats and the D-Bus signal contract are shared with the
// C libnetconf implementation, so Go and C publishers and subscribers
// interoperate on the same host. The advisory locks do not interlock: Go
// takes flock locks and C takes lockf locks, so appends from a Go and a C
// process to the same stream file are not serialized against each other.
package libnetconf
