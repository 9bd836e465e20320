// Package memory keeps the scanner inside its container memory budget.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT (bytes, usually from
// the Kubernetes Downward API) scaled by MEMORY_RATIO, unless GOMEMLIMIT is
// already set. A [Gate] samples heap usage and pauses media processing when
// it crosses the pause mark, resuming below the resume mark. Decoding full
// size RAW previews is the largest allocation the scanner makes, so the
// processor waits on the gate before each photo.
package memory
