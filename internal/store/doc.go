// Package store provides persistent storage for the gateway using SQLite.
//
// Two tables back the gateway:
//
//   - tenants: workspaces allowed to use the gateway, keyed by team ID,
//     with an active/suspended status consulted by the subscription gate
//     when it runs in database mode.
//   - request_log: one row per request that reached a terminal outcome,
//     used for operational review via the admin CLI.
//
// SQLiteStore implements the Store interface using modernc.org/sqlite
// (pure Go, no cgo). The schema is created on open and WAL mode is
// enabled for concurrent reads during dispatch.
package store
