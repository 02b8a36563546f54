// ABOUTME: Function-calling tool declarations and their executor
// ABOUTME: Maps model tool calls onto the store and the arXiv client

package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/banrovegrie/makearjowork/internal/arxiv"
	"github.com/banrovegrie/makearjowork/internal/store"
)

// Searcher finds a paper for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) (*arxiv.Result, error)
}

// toolDeclarations builds the function declarations offered to the model.
func toolDeclarations() []*genai.Tool {
	return []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{
		{
			Name:        "add_task",
			Description: "Add a new task to my list",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":       {Type: genai.TypeString, Description: "Task title"},
					"description": {Type: genai.TypeString, Description: "Optional details"},
				},
				Required: []string{"title"},
			},
		},
		{
			Name:        "update_task",
			Description: "Update a task's title, description, or status",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id":          {Type: genai.TypeInteger, Description: "Task ID"},
					"title":       {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
					"status":      {Type: genai.TypeString, Enum: []string{store.TaskStatusPending, store.TaskStatusInProgress, store.TaskStatusDone}},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "delete_task",
			Description: "Delete a task permanently",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id": {Type: genai.TypeInteger, Description: "Task ID"},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "mark_task_done",
			Description: "Mark a task as completed",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id": {Type: genai.TypeInteger, Description: "Task ID"},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "ask_clarification",
			Description: "Ask the user a clarifying question before proceeding. Use when request is ambiguous or you need more context. Don't overuse.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"question": {Type: genai.TypeString, Description: "The clarifying question to ask"},
					"context":  {Type: genai.TypeString, Description: "Brief context for why you're asking"},
				},
				Required: []string{"question"},
			},
		},
		{
			Name:        "add_read",
			Description: "Add a paper or book to the reading list",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":  {Type: genai.TypeString, Description: "Paper/book title"},
					"url":    {Type: genai.TypeString, Description: "URL to the paper/book"},
					"author": {Type: genai.TypeString, Description: "Author(s)"},
					"notes":  {Type: genai.TypeString, Description: "Optional notes"},
				},
				Required: []string{"title"},
			},
		},
		{
			Name:        "update_read",
			Description: "Update a reading list item",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id":     {Type: genai.TypeInteger, Description: "Read ID"},
					"title":  {Type: genai.TypeString},
					"url":    {Type: genai.TypeString},
					"author": {Type: genai.TypeString},
					"notes":  {Type: genai.TypeString},
					"status": {Type: genai.TypeString, Enum: []string{store.ReadStatusUnread, store.ReadStatusReading, store.ReadStatusRead}},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "delete_read",
			Description: "Remove a paper/book from the reading list",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id": {Type: genai.TypeInteger, Description: "Read ID"},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "mark_read_done",
			Description: "Mark a paper/book as read",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id": {Type: genai.TypeInteger, Description: "Read ID"},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "search_arxiv",
			Description: "Search arxiv for a paper and get its URL. Use this to find paper URLs before adding to reading list.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {Type: genai.TypeString, Description: "Search query (paper title or keywords)"},
				},
				Required: []string{"query"},
			},
		},
	}}}
}

// executor runs tool calls against the store and the paper searcher.
type executor struct {
	store    store.Store
	searcher Searcher
	logger   *slog.Logger
}

// execute runs one tool call and returns its result map, which is both
// recorded as a performed action and echoed back to the model.
func (e *executor) execute(ctx context.Context, name string, args map[string]any, userEmail string) map[string]any {
	switch name {
	case "add_task":
		return e.addTask(ctx, args, userEmail)
	case "update_task":
		return e.updateTask(ctx, args)
	case "delete_task":
		return e.deleteTask(ctx, args)
	case "mark_task_done":
		return e.markTaskDone(ctx, args)
	case "add_read":
		return e.addRead(ctx, args, userEmail)
	case "update_read":
		return e.updateRead(ctx, args)
	case "delete_read":
		return e.deleteRead(ctx, args)
	case "mark_read_done":
		return e.markReadDone(ctx, args)
	case "search_arxiv":
		return e.searchArxiv(ctx, args)
	case "ask_clarification":
		// No store action; the question travels in the model's text.
		return map[string]any{"type": "clarification"}
	default:
		return errorResult(fmt.Sprintf("Unknown function: %s", name))
	}
}

func (e *executor) addTask(ctx context.Context, args map[string]any, userEmail string) map[string]any {
	title := strings.TrimSpace(stringArg(args, "title"))
	if title == "" {
		return errorResult("Task title is required")
	}

	task := &store.Task{
		Title:       title,
		Description: stringArg(args, "description"),
		AssignedBy:  userEmail,
	}
	if err := e.store.CreateTask(ctx, task); err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}
	return map[string]any{"type": "added", "task": taskPayload(task)}
}

func (e *executor) updateTask(ctx context.Context, args map[string]any) map[string]any {
	id, ok := intArg(args, "id")
	if !ok {
		return errorResult("Task ID is required")
	}

	task, err := e.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult(fmt.Sprintf("Task #%d not found", id))
	} else if err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}

	// Absent fields keep their current values.
	if v, ok := args["title"]; ok {
		task.Title = toString(v)
	}
	if v, ok := args["description"]; ok {
		task.Description = toString(v)
	}
	if v, ok := args["status"]; ok {
		task.Status = toString(v)
	}
	task.UpdatedAt = time.Now()

	if err := e.store.UpdateTask(ctx, task); err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}
	return map[string]any{"type": "updated", "task": taskPayload(task)}
}

func (e *executor) deleteTask(ctx context.Context, args map[string]any) map[string]any {
	id, ok := intArg(args, "id")
	if !ok {
		return errorResult("Task ID is required")
	}

	task, err := e.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult(fmt.Sprintf("Task #%d not found", id))
	} else if err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}

	if err := e.store.DeleteTask(ctx, id); err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}
	return map[string]any{"type": "deleted", "task": taskPayload(task)}
}

func (e *executor) markTaskDone(ctx context.Context, args map[string]any) map[string]any {
	id, ok := intArg(args, "id")
	if !ok {
		return errorResult("Task ID is required")
	}

	task, err := e.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult(fmt.Sprintf("Task #%d not found", id))
	} else if err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}

	task.Status = store.TaskStatusDone
	task.UpdatedAt = time.Now()
	if err := e.store.UpdateTask(ctx, task); err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}
	return map[string]any{"type": "done", "task": taskPayload(task)}
}

func (e *executor) addRead(ctx context.Context, args map[string]any, userEmail string) map[string]any {
	title := strings.TrimSpace(stringArg(args, "title"))
	if title == "" {
		return errorResult("Read title is required")
	}

	read := &store.Read{
		Title:   title,
		URL:     stringArg(args, "url"),
		Author:  stringArg(args, "author"),
		Notes:   stringArg(args, "notes"),
		AddedBy: userEmail,
	}
	if err := e.store.CreateRead(ctx, read); err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}
	return map[string]any{"type": "read_added", "read": readPayload(read)}
}

func (e *executor) updateRead(ctx context.Context, args map[string]any) map[string]any {
	id, ok := intArg(args, "id")
	if !ok {
		return errorResult("Read ID is required")
	}

	read, err := e.store.GetRead(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult(fmt.Sprintf("Read #%d not found", id))
	} else if err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}

	if v, ok := args["title"]; ok {
		read.Title = toString(v)
	}
	if v, ok := args["url"]; ok {
		read.URL = toString(v)
	}
	if v, ok := args["author"]; ok {
		read.Author = toString(v)
	}
	if v, ok := args["notes"]; ok {
		read.Notes = toString(v)
	}
	if v, ok := args["status"]; ok {
		read.Status = toString(v)
	}
	read.UpdatedAt = time.Now()

	if err := e.store.UpdateRead(ctx, read); err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}
	return map[string]any{"type": "read_updated", "read": readPayload(read)}
}

func (e *executor) deleteRead(ctx context.Context, args map[string]any) map[string]any {
	id, ok := intArg(args, "id")
	if !ok {
		return errorResult("Read ID is required")
	}

	read, err := e.store.GetRead(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult(fmt.Sprintf("Read #%d not found", id))
	} else if err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}

	if err := e.store.DeleteRead(ctx, id); err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}
	return map[string]any{"type": "read_deleted", "read": readPayload(read)}
}

func (e *executor) markReadDone(ctx context.Context, args map[string]any) map[string]any {
	id, ok := intArg(args, "id")
	if !ok {
		return errorResult("Read ID is required")
	}

	read, err := e.store.GetRead(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult(fmt.Sprintf("Read #%d not found", id))
	} else if err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}

	read.Status = store.ReadStatusRead
	read.UpdatedAt = time.Now()
	if err := e.store.UpdateRead(ctx, read); err != nil {
		return errorResult(fmt.Sprintf("Function execution failed: %v", err))
	}
	return map[string]any{"type": "read_done", "read": readPayload(read)}
}

func (e *executor) searchArxiv(ctx context.Context, args map[string]any) map[string]any {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return errorResult("Search query is required")
	}

	result, err := e.searcher.Search(ctx, query)
	if err != nil {
		e.logger.Warn("arxiv search failed", "query", query, "error", err)
		return map[string]any{"type": "arxiv_result", "result": map[string]any{"error": err.Error()}}
	}
	return map[string]any{"type": "arxiv_result", "result": map[string]any{
		"title":   result.Title,
		"url":     result.URL,
		"authors": result.Authors,
	}}
}

func errorResult(message string) map[string]any {
	return map[string]any{"type": "error", "message": message}
}

func taskPayload(t *store.Task) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"assigned_by": t.AssignedBy,
	}
}

func readPayload(r *store.Read) map[string]any {
	return map[string]any{
		"id":       r.ID,
		"title":    r.Title,
		"url":      r.URL,
		"author":   r.Author,
		"notes":    r.Notes,
		"status":   r.Status,
		"added_by": r.AddedBy,
	}
}

func stringArg(args map[string]any, key string) string {
	return toString(args[key])
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

// intArg extracts an integer argument. The model serializes numbers as
// JSON, so IDs usually arrive as float64.
func intArg(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
