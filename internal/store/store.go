// ABOUTME: Store interface and data types for makearjowork persistence
// ABOUTME: Defines User, MagicLink, Task, Read, ChatMessage and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrLinkConsumed is returned when redeeming a magic link that was already used or expired
var ErrLinkConsumed = errors.New("magic link used or expired")

// User represents an authenticated account, keyed by email
type User struct {
	ID        int64
	Email     string
	IsAdmin   bool
	CreatedAt time.Time
}

// MagicLink is a single-use login token emailed to a user
type MagicLink struct {
	ID        int64
	Email     string
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Task status constants
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Task represents a unit of work on the shared board
type Task struct {
	ID          int64
	Title       string
	Description string
	AssignedBy  string
	Status      string // "pending", "in_progress", "done"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Read status constants
const (
	ReadStatusUnread  = "unread"
	ReadStatusReading = "reading"
	ReadStatusRead    = "read"
)

// Read represents a paper or book on the shared reading list
type Read struct {
	ID        int64
	Title     string
	URL       string
	Author    string
	Notes     string
	Status    string // "unread", "reading", "read"
	AddedBy   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chat role constants
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of a user's conversation with the assistant.
// UserEmail is the conversation owner, not the sender; the sender role
// lives in Role.
type ChatMessage struct {
	ID        int64
	Role      string
	Content   string
	UserEmail string
	CreatedAt time.Time
}

// Store defines the interface for tracker persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	SetAdmin(ctx context.Context, email string, admin bool) error

	// Magic links
	CreateMagicLink(ctx context.Context, link *MagicLink) error
	ConsumeMagicLink(ctx context.Context, token string, now time.Time) (*MagicLink, error)

	// Tasks
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id int64) (*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, id int64) error
	ListTasks(ctx context.Context, status string, limit int) ([]*Task, error)

	// Reads
	CreateRead(ctx context.Context, read *Read) error
	GetRead(ctx context.Context, id int64) (*Read, error)
	UpdateRead(ctx context.Context, read *Read) error
	DeleteRead(ctx context.Context, id int64) error
	ListReads(ctx context.Context, status string, limit int) ([]*Read, error)
	CountReads(ctx context.Context) (int, error)

	// Chat history
	AppendChatMessage(ctx context.Context, msg *ChatMessage) error
	ListChatMessages(ctx context.Context, userEmail string, limit int) ([]*ChatMessage, error)
	ClearChatMessages(ctx context.Context, userEmail string) error
	ClearAllChatMessages(ctx context.Context) error

	Close() error
}
