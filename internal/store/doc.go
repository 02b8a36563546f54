// Package store provides persistent storage for the tracker.
//
// # Architecture
//
// A single Store interface covers users, magic links, tasks, reads and
// chat history. SQLStore implements it on database/sql with a small
// dialect shim, so the same query text runs against SQLite
// (modernc.org/sqlite, local development) and PostgreSQL (pgx, Cloud SQL
// deployments). The shim handles the two real differences:
//
//   - placeholder syntax: ? is rebound to $1..$n for PostgreSQL
//   - insert ids: RETURNING id for PostgreSQL, LastInsertId for SQLite
//
// # Data Models
//
//   - User: account keyed by email, with an admin flag
//   - MagicLink: single-use emailed login token with expiry
//   - Task: work item on the shared board (pending/in_progress/done)
//   - Read: reading-list entry (unread/reading/read)
//   - ChatMessage: one turn of a user's assistant conversation
//
// Tasks and reads are shared across users; AssignedBy/AddedBy records who
// created them. Chat history is per user.
//
// # Timestamps
//
// All timestamps are stored as RFC3339 text so both dialects scan
// identically.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrLinkConsumed: magic link already used or expired
//
// All methods accept context.Context for cancellation support.
package store
