// Package stores persists provisioning run history in SQLite.
// It records each orchestration run, every published state transition and
// every realized cloud resource, and serves them back for the history command.
package stores
