// Package access is the access-control mediator. It combines the role table
// from package permission with entity ownership to authorize each operation.
//
// # Rules
//
// A caller passes when its role carries the capability the operation needs
// and, for owner-scoped roles, it owns the target: VPS.OwnerID equals the
// caller, or the target account is the caller. Privileged roles are not
// owner-scoped and act on any entity their capabilities cover. Listings apply
// ownership as a filter instead of a rejection.
//
// # What this package must NOT do
//
//   - Load entities. Callers pass the target in.
//   - Decide lifecycle legality; that belongs to package lifecycle.
package access
