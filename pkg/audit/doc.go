// Package audit records one sys_log row per API request.
//
// The Recorder middleware captures the path, method, client IP, query
// string and handling time of each request and hands the entry to a
// bounded background queue, so a slow database never delays responses.
// Entries that do not fit in the queue are dropped and counted in
// adminkit_audit_dropped_total.
//
//	store := audit.NewStore(db, replica)
//	recorder := audit.NewRecorder(store, 1024, middleware.ClientIP, metrics, logger)
//	defer recorder.Close(5 * time.Second)
//
// Request bodies are never recorded. GET /logs pages through the table
// for callers holding sys:log:list, and Store.Prune removes entries older
// than the retention period (see cmd/adminkit-janitor).
package audit
