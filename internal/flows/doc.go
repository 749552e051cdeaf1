// Package flows contains the orchestrators behind the engine's login,
// refresh, registration and VPS command operations.
//
// Each flow function accepts a typed dependency struct of function fields and
// returns a result or a host-level error carried in that struct. The engine
// builds the dependency structs and maps results back to its own taxonomy.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goVPS (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency functions.
package flows
