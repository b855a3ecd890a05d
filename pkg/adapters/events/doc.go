// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis Streams with consumer groups, one stream per workspace
//   - memory: In-memory for testing and single-process use
package events
