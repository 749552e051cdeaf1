// Package lifecycle is the VPS state machine: statuses, lifecycle commands and
// the transition table with its guards.
//
// The package is pure decision logic. Serializing concurrent commands on the
// same VPS is the store's job (compare-and-swap on status), and executing the
// command against a hypervisor is the hypervisor package's job.
package lifecycle
