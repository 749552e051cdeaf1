// Package goVPS is the core of a VPS hosting panel: it authenticates callers,
// decides what they may do, and drives virtual server lifecycle transitions.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goVPS is the public surface. It exposes [Engine], [Builder], [Config], the
// error taxonomy and audit types. Decision logic lives in small packages that
// do not import goVPS: permission (role table), access (capability plus
// ownership), lifecycle (state machine), jwt, password and throttle.
// Orchestration of login, refresh, registration and lifecycle commands lives
// under internal/flows.
//
// # Lifecycle commands
//
// A command is checked against the state machine and committed by
// compare-and-swap on the stored status before the hypervisor hears about it.
// Hypervisor calls run on a worker pool with a timeout. A timeout leaves the
// command pending and never rolls the committed status back; the late answer
// can be recorded with [Engine.ConfirmVPSObservation].
//
// # Errors
//
// Every failure matches one of the sentinels in errors.go under errors.Is.
// Use [Engine.ExternalMessage] for text shown to clients: a missing account
// and a wrong password read the same.
package goVPS
