// Package store holds the process-wide mutable state: scheduled tasks,
// listener poll configs and the bounded print history.
//
// Each store is guarded by its own mutex and persists as one whole-file
// JSON snapshot after every mutation (write-to-temp-then-rename, so a
// crash mid-write never corrupts the previous snapshot). Both the web
// handlers and the scheduler loop mutate state only through these stores,
// which is the single synchronization point between them.
package store
