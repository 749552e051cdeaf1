// Package throttle implements the login throttle guard: a per-identity failure
// counter over a fixed window, consulted before any password comparison.
//
// Counters live behind the [Store] interface. [MemoryStore] keeps them in a
// sharded map inside the process; [RedisStore] keeps them in Redis so several
// API replicas share one view. Both make every increment atomic per key
// without serializing unrelated identities.
package throttle
