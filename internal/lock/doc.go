// Package lock implements the refresh mutual-exclusion lock.
//
// Every jam process of one user shares a credential whose refresh token is invalidated by each successful refresh, so
// two processes refreshing at once leave one of them holding a dead token. [RefreshLock] serialises refreshes with a
// time-bounded lease stored in a [Store] visible to all of those processes.
//
// # Semantics
//
//   - [RefreshLock.Acquire] returns false while an unexpired lease exists, and otherwise writes a fresh lease
//     (reclaiming an expired one silently) and returns true.
//   - [RefreshLock.Release] deletes the lease unconditionally. The lock is cooperative: no ownership token is
//     checked, and callers only release after their own successful acquire.
//   - The lock is not reentrant. A holder that acquires again before releasing sees its own lease and gets false.
//
// Neither call blocks or spins; a caller that loses the race skips the refresh or schedules a later attempt.
//
// # Stores
//
// [MemoryStore] serves a single process and tests. repositories.KVRepository backs the lease with the SQLite file
// configured under [database], which every process of the user opens.
package lock
