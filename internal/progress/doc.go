// Package progress provides the learning event primitives, the non-blocking
// hub, and the emitter/sink interfaces used to attach side effects (analytics,
// ledgers, notifications) to lesson sessions. Events are batched on a
// background goroutine and fanned out to pluggable sinks such as Prometheus
// metrics or persistent storage; emitters never wait on them.
package progress
