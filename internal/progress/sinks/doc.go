// Package sinks implements concrete lesson event consumers such as Prometheus,
// the completion ledger, notification publishing, and structured logging. Each
// sink satisfies the progress.Sink interface and is safe for repeated
// Consume/Close cycles.
package sinks
