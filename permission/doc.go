// Package permission provides the capability registry, 64-bit capability masks
// and the role table used by authorization checks.
//
// # Data model
//
// Capabilities are registered once and assigned stable bit positions. A role is a
// frozen [Mask64] plus an owner-scoped flag: owner-scoped roles hold their
// capabilities only over entities they own, which callers enforce on top of
// [Table.Check].
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goVPS, jwt, store, or access.
//   - Decide ownership; that belongs to the access mediator.
package permission
