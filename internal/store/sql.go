// ABOUTME: Shared database/sql implementation of the Store interface
// ABOUTME: All queries are dialect-neutral and rebound per database

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SQLStore implements Store on top of database/sql. The same query text
// serves both SQLite and PostgreSQL; the dialect handles placeholders and
// insert-id retrieval.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// exec runs a statement after rebinding placeholders for the dialect.
func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

// queryRow runs a single-row query after rebinding placeholders.
func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// query runs a multi-row query after rebinding placeholders.
func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

// insertID executes an INSERT and returns the new row id. PostgreSQL needs
// RETURNING id; SQLite reports it through LastInsertId.
func (s *SQLStore) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	if s.dialect.insertReturning {
		var id int64
		err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	s.logger.Info("closing store", "dialect", s.dialect.name)
	return s.db.Close()
}

// Timestamps are stored as RFC3339 text so both dialects scan identically.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Users

// CreateUser inserts a user with the given email and returns the stored row.
func (s *SQLStore) CreateUser(ctx context.Context, email string) (*User, error) {
	now := time.Now()
	id, err := s.insertID(ctx,
		`INSERT INTO users (email, is_admin, created_at) VALUES (?, 0, ?)`,
		email, formatTime(now))
	if err != nil {
		// Two concurrent first logins can race on the UNIQUE email index;
		// the loser just reads the winner's row.
		if isConstraintViolation(err) {
			return s.GetUserByEmail(ctx, email)
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Info("created user", "email", email, "id", id)
	return s.GetUser(ctx, id)
}

// GetUser retrieves a user by id. Returns ErrNotFound if absent.
func (s *SQLStore) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.scanUser(s.queryRow(ctx,
		`SELECT id, email, is_admin, created_at FROM users WHERE id = ?`, id))
}

// GetUserByEmail retrieves a user by email. Returns ErrNotFound if absent.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.queryRow(ctx,
		`SELECT id, email, is_admin, created_at FROM users WHERE email = ?`, email))
}

func (s *SQLStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	var admin int
	var createdAt string
	err := row.Scan(&u.ID, &u.Email, &admin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.IsAdmin = admin != 0
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// ListUsers returns all users ordered by creation time.
func (s *SQLStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.query(ctx,
		`SELECT id, email, is_admin, created_at FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		var admin int
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Email, &admin, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u.IsAdmin = admin != 0
		u.CreatedAt = parseTime(createdAt)
		users = append(users, &u)
	}
	return users, rows.Err()
}

// SetAdmin toggles the admin flag for the user with the given email.
func (s *SQLStore) SetAdmin(ctx context.Context, email string, admin bool) error {
	flag := 0
	if admin {
		flag = 1
	}
	res, err := s.exec(ctx, `UPDATE users SET is_admin = ? WHERE email = ?`, flag, email)
	if err != nil {
		return fmt.Errorf("updating admin flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Magic links

// CreateMagicLink stores a new single-use login token.
func (s *SQLStore) CreateMagicLink(ctx context.Context, link *MagicLink) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	id, err := s.insertID(ctx,
		`INSERT INTO magic_links (email, token, expires_at, used, created_at) VALUES (?, ?, ?, 0, ?)`,
		link.Email, link.Token, formatTime(link.ExpiresAt), formatTime(link.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting magic link: %w", err)
	}
	link.ID = id
	s.logger.Debug("created magic link", "email", link.Email, "expires_at", link.ExpiresAt)
	return nil
}

// ConsumeMagicLink redeems an unused, unexpired link and marks it used.
// Returns ErrLinkConsumed if the token exists but was used or has expired,
// ErrNotFound if it never existed.
func (s *SQLStore) ConsumeMagicLink(ctx context.Context, token string, now time.Time) (*MagicLink, error) {
	var link MagicLink
	var used int
	var expiresAt, createdAt string
	err := s.queryRow(ctx,
		`SELECT id, email, token, expires_at, used, created_at FROM magic_links WHERE token = ?`,
		token).Scan(&link.ID, &link.Email, &link.Token, &expiresAt, &used, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning magic link: %w", err)
	}
	link.ExpiresAt = parseTime(expiresAt)
	link.CreatedAt = parseTime(createdAt)

	if used != 0 || now.After(link.ExpiresAt) {
		return nil, ErrLinkConsumed
	}

	// Guard with used = 0 so concurrent redeems of the same token race to a
	// single winner.
	res, err := s.exec(ctx, `UPDATE magic_links SET used = 1 WHERE id = ? AND used = 0`, link.ID)
	if err != nil {
		return nil, fmt.Errorf("marking magic link used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrLinkConsumed
	}

	link.Used = true
	return &link, nil
}

// Tasks

// CreateTask inserts a task and fills its ID and timestamps.
func (s *SQLStore) CreateTask(ctx context.Context, task *Task) error {
	now := time.Now()
	if task.Status == "" {
		task.Status = TaskStatusPending
	}
	task.CreatedAt = now
	task.UpdatedAt = now

	id, err := s.insertID(ctx,
		`INSERT INTO tasks (title, description, assigned_by, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		task.Title, task.Description, task.AssignedBy, task.Status, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	task.ID = id
	s.logger.Debug("created task", "id", id, "title", task.Title)
	return nil
}

// GetTask retrieves a task by id. Returns ErrNotFound if absent.
func (s *SQLStore) GetTask(ctx context.Context, id int64) (*Task, error) {
	var t Task
	var createdAt, updatedAt string
	err := s.queryRow(ctx,
		`SELECT id, title, description, assigned_by, status, created_at, updated_at FROM tasks WHERE id = ?`,
		id).Scan(&t.ID, &t.Title, &t.Description, &t.AssignedBy, &t.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// UpdateTask writes title, description and status for an existing task.
func (s *SQLStore) UpdateTask(ctx context.Context, task *Task) error {
	task.UpdatedAt = time.Now()
	res, err := s.exec(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, updated_at = ? WHERE id = ?`,
		task.Title, task.Description, task.Status, formatTime(task.UpdatedAt), task.ID)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task. Deleting an absent task is not an error.
func (s *SQLStore) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

// ListTasks returns tasks newest first, optionally filtered by status.
// limit <= 0 means no limit.
func (s *SQLStore) ListTasks(ctx context.Context, status string, limit int) ([]*Task, error) {
	query := `SELECT id, title, description, assigned_by, status, created_at, updated_at FROM tasks`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		var t Task
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.AssignedBy, &t.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		t.CreatedAt = parseTime(createdAt)
		t.UpdatedAt = parseTime(updatedAt)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// Reads

// CreateRead inserts a reading-list entry and fills its ID and timestamps.
func (s *SQLStore) CreateRead(ctx context.Context, read *Read) error {
	now := time.Now()
	if read.Status == "" {
		read.Status = ReadStatusUnread
	}
	read.CreatedAt = now
	read.UpdatedAt = now

	id, err := s.insertID(ctx,
		`INSERT INTO reads (title, url, author, notes, status, added_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		read.Title, read.URL, read.Author, read.Notes, read.Status, read.AddedBy, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("inserting read: %w", err)
	}
	read.ID = id
	s.logger.Debug("created read", "id", id, "title", read.Title)
	return nil
}

// GetRead retrieves a reading-list entry by id. Returns ErrNotFound if absent.
func (s *SQLStore) GetRead(ctx context.Context, id int64) (*Read, error) {
	var r Read
	var createdAt, updatedAt string
	err := s.queryRow(ctx,
		`SELECT id, title, url, author, notes, status, added_by, created_at, updated_at FROM reads WHERE id = ?`,
		id).Scan(&r.ID, &r.Title, &r.URL, &r.Author, &r.Notes, &r.Status, &r.AddedBy, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning read: %w", err)
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// UpdateRead writes all mutable fields for an existing reading-list entry.
func (s *SQLStore) UpdateRead(ctx context.Context, read *Read) error {
	read.UpdatedAt = time.Now()
	res, err := s.exec(ctx,
		`UPDATE reads SET title = ?, url = ?, author = ?, notes = ?, status = ?, updated_at = ? WHERE id = ?`,
		read.Title, read.URL, read.Author, read.Notes, read.Status, formatTime(read.UpdatedAt), read.ID)
	if err != nil {
		return fmt.Errorf("updating read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRead removes a reading-list entry. Deleting an absent entry is not an error.
func (s *SQLStore) DeleteRead(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, `DELETE FROM reads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting read: %w", err)
	}
	return nil
}

// ListReads returns reading-list entries newest first, optionally filtered
// by status. limit <= 0 means no limit.
func (s *SQLStore) ListReads(ctx context.Context, status string, limit int) ([]*Read, error) {
	query := `SELECT id, title, url, author, notes, status, added_by, created_at, updated_at FROM reads`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reads: %w", err)
	}
	defer rows.Close()

	var reads []*Read
	for rows.Next() {
		var r Read
		var createdAt, updatedAt string
		if err := rows.Scan(&r.ID, &r.Title, &r.URL, &r.Author, &r.Notes, &r.Status, &r.AddedBy, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning read: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		reads = append(reads, &r)
	}
	return reads, rows.Err()
}

// CountReads returns the number of reading-list entries.
func (s *SQLStore) CountReads(ctx context.Context) (int, error) {
	var count int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM reads`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting reads: %w", err)
	}
	return count, nil
}

// Chat history

// AppendChatMessage stores one conversation turn for a user.
func (s *SQLStore) AppendChatMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	id, err := s.insertID(ctx,
		`INSERT INTO chat_history (role, content, user_email, created_at) VALUES (?, ?, ?, ?)`,
		msg.Role, msg.Content, msg.UserEmail, formatTime(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting chat message: %w", err)
	}
	msg.ID = id
	return nil
}

// ListChatMessages returns a user's conversation oldest first, capped at limit.
func (s *SQLStore) ListChatMessages(ctx context.Context, userEmail string, limit int) ([]*ChatMessage, error) {
	query := `SELECT id, role, content, user_email, created_at FROM chat_history WHERE user_email = ? ORDER BY id ASC`
	args := []any{userEmail}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.UserEmail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// ClearChatMessages deletes one user's conversation.
func (s *SQLStore) ClearChatMessages(ctx context.Context, userEmail string) error {
	if _, err := s.exec(ctx, `DELETE FROM chat_history WHERE user_email = ?`, userEmail); err != nil {
		return fmt.Errorf("clearing chat messages: %w", err)
	}
	s.logger.Info("cleared chat history", "user", userEmail)
	return nil
}

// ClearAllChatMessages deletes every conversation. Maintenance only.
func (s *SQLStore) ClearAllChatMessages(ctx context.Context) error {
	if _, err := s.exec(ctx, `DELETE FROM chat_history`); err != nil {
		return fmt.Errorf("clearing all chat messages: %w", err)
	}
	s.logger.Info("cleared all chat history")
	return nil
}

// isConstraintViolation checks for a UNIQUE constraint failure in either dialect.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "constraint failed")
}
