// Package store defines the durable entities of the panel (accounts, VPS
// instances, hosts, OS images, audit records) and the persistence contracts the
// engine consumes.
//
// # Concurrency contract
//
// Implementations must make [VPSStore.TransitionVPS] a compare-and-swap on the
// recorded status: the update applies only when the stored status still equals
// the expected prior status, otherwise it fails with [ErrStatusChanged] and
// leaves the record untouched. Email and username uniqueness is
// case-insensitive.
//
// Implementations live in store/memory and store/sqlstore.
package store
