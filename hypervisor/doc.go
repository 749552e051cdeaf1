// Package hypervisor is the boundary to the hypervisor-control collaborator.
//
// The engine never calls a [Controller] inline. Accepted lifecycle commands
// are handed to a [Dispatcher], which runs them on background workers under a
// per-command timeout and reports a [Result]: confirmed, failed, or pending
// when the timeout expired before the hypervisor answered. A pending result is
// not a failure; the recorded status stays as committed and a later
// confirmation resolves it.
//
// Commands for one VPS always land on the same worker, so they reach the
// controller in the order their status changes were committed.
package hypervisor
