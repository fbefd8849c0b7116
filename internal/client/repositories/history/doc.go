// Package history caches sent-mail records in the client's local SQLite
// database so the list view still works when the mail store is offline.
package history
