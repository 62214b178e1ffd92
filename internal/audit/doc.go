// Package audit records mutating and security-relevant actions in the
// audit_logs table and lists them for administrators.
//
// Writes go through a Recorder: callers enqueue entries without blocking and
// a single goroutine drains them into SQLite. When the queue is full the
// entry is dropped with a warning.
package audit
