// Package repositories implements SQLite persistence for jam's shared state.
//
// Every jam process of one user opens the same database file. The [KVRepository] is the only table they share: it
// stores the refresh lease and the current OAuth token, and implements [lock.Store] so that the refresh lock can be
// acquired atomically across processes.
//
// Atomicity comes from SQLite itself. [shared.NewDatabase] opens file databases with _txlock=immediate, so the
// transaction behind [KVRepository.Update] takes the write lock before it reads and no two processes can interleave a
// read-modify-write on the same key.
package repositories
