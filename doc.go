// Package mycelium is a controller/driver framework for physical and
// simulated agents. A driver process runs next to the hardware and exposes
// typed components (triggers, servos, range sensors) over a small framed
// TCP protocol; a controller process runs the decision logic as a gate
// network and reaches the hardware only through component proxies.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│          Gate Network               │  controller process
//	│  (gates, data and feedback edges)   │  one Evaluate per cycle
//	└─────────────────────────────────────┘
//	           ↓ reads/writes via
//	┌─────────────────────────────────────┐
//	│       Component Proxies             │  contract-checked,
//	│   (proxy.Client per driver link)    │  correlated requests
//	└─────────────────────────────────────┘
//	           ↓ framed messages over TCP
//	┌─────────────────────────────────────┐
//	│         Driver Server               │  driver process
//	│ (per-component serialized dispatch) │  concrete hardware
//	└─────────────────────────────────────┘
//
// The packages split along that picture: gate holds the execution engine,
// component the capability contract shared by both sides, wire the framing
// and message codec, transport the channel implementations (TCP,
// WebSocket, in-process pipe), proxy the controller side, driver the
// device side, and platform the component factories. cmd/myceliumd is the
// driver daemon; cmd/myceliumctl probes a running driver from the shell.
//
// Both sides of the wire agree on one invariant: every request carries a
// correlation id and yields exactly one response on the same connection,
// so concurrent operations on different components may interleave freely
// while operations on one component stay strictly serialized.
package mycelium
