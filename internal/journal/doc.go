// Package journal persists a record of conversion requests to SQLite for the
// jobs and status surfaces. It is observability only: conversions carry no
// state between requests and the pipeline accepts a nil store.
package journal
