// Package storage provides task repository and record store implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization, append-only record lists
//   - memory: In-memory for testing and single-process use
package storage
