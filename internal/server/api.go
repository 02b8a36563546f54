// ABOUTME: JSON API handlers for tasks, reads, chat, and maintenance
// ABOUTME: Handlers assume the auth middleware already resolved the user

package server

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banrovegrie/makearjowork/internal/auth"
	"github.com/banrovegrie/makearjowork/internal/store"
)

// taskResponse is the JSON shape of a task row.
type taskResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	AssignedBy  string `json:"assigned_by"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// readResponse is the JSON shape of a reading-list row.
type readResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Author    string `json:"author"`
	Notes     string `json:"notes"`
	Status    string `json:"status"`
	AddedBy   string `json:"added_by"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toTaskResponse(t *store.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		AssignedBy:  t.AssignedBy,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

func toReadResponse(r *store.Read) readResponse {
	return readResponse{
		ID:        r.ID,
		Title:     r.Title,
		URL:       r.URL,
		Author:    r.Author,
		Notes:     r.Notes,
		Status:    r.Status,
		AddedBy:   r.AddedBy,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// handleListTasks returns tasks newest first, optionally filtered by
// status. Calendar events decorate the board ahead of the tasks when the
// view includes pending work.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	tasks, err := s.store.ListTasks(r.Context(), status, 0)
	if err != nil {
		sendJSONError(w, http.StatusInternalServerError, "listing tasks failed")
		return
	}

	items := make([]any, 0, len(tasks))
	if s.events != nil && (status == "" || status == store.TaskStatusPending) {
		for _, event := range s.events.UpcomingEvents(r.Context()) {
			items = append(items, event)
		}
	}
	for _, t := range tasks {
		items = append(items, toTaskResponse(t))
	}

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		sendJSONError(w, http.StatusBadRequest, "Title is required")
		return
	}

	user := auth.FromContext(r.Context())
	task := &store.Task{
		Title:       req.Title,
		Description: req.Description,
		AssignedBy:  user.Email,
	}
	if err := s.store.CreateTask(r.Context(), task); err != nil {
		sendJSONError(w, http.StatusInternalServerError, "creating task failed")
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	// Pointer fields distinguish absent keys from empty values: absent
	// fields keep their current state.
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := s.store.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		sendJSONError(w, http.StatusNotFound, "Task not found")
		return
	} else if err != nil {
		sendJSONError(w, http.StatusInternalServerError, "loading task failed")
		return
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	task.UpdatedAt = time.Now()

	if err := s.store.UpdateTask(r.Context(), task); err != nil {
		sendJSONError(w, http.StatusInternalServerError, "updating task failed")
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// handleDeleteTask deletes a task. Deleting an absent task is a no-op.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	if err := s.store.DeleteTask(r.Context(), id); err != nil {
		sendJSONError(w, http.StatusInternalServerError, "deleting task failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReads(w http.ResponseWriter, r *http.Request) {
	reads, err := s.store.ListReads(r.Context(), r.URL.Query().Get("status"), 0)
	if err != nil {
		sendJSONError(w, http.StatusInternalServerError, "listing reads failed")
		return
	}

	items := make([]readResponse, 0, len(reads))
	for _, item := range reads {
		items = append(items, toReadResponse(item))
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Author string `json:"author"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		sendJSONError(w, http.StatusBadRequest, "Title is required")
		return
	}

	user := auth.FromContext(r.Context())
	read := &store.Read{
		Title:   req.Title,
		URL:     req.URL,
		Author:  req.Author,
		Notes:   req.Notes,
		AddedBy: user.Email,
	}
	if err := s.store.CreateRead(r.Context(), read); err != nil {
		sendJSONError(w, http.StatusInternalServerError, "creating read failed")
		return
	}

	writeJSON(w, http.StatusCreated, toReadResponse(read))
}

func (s *Server) handleUpdateRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid read id")
		return
	}

	var req struct {
		Title  *string `json:"title"`
		URL    *string `json:"url"`
		Author *string `json:"author"`
		Notes  *string `json:"notes"`
		Status *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	read, err := s.store.GetRead(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		sendJSONError(w, http.StatusNotFound, "Read not found")
		return
	} else if err != nil {
		sendJSONError(w, http.StatusInternalServerError, "loading read failed")
		return
	}

	if req.Title != nil {
		read.Title = *req.Title
	}
	if req.URL != nil {
		read.URL = *req.URL
	}
	if req.Author != nil {
		read.Author = *req.Author
	}
	if req.Notes != nil {
		read.Notes = *req.Notes
	}
	if req.Status != nil {
		read.Status = *req.Status
	}
	read.UpdatedAt = time.Now()

	if err := s.store.UpdateRead(r.Context(), read); err != nil {
		sendJSONError(w, http.StatusInternalServerError, "updating read failed")
		return
	}

	writeJSON(w, http.StatusOK, toReadResponse(read))
}

func (s *Server) handleDeleteRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid read id")
		return
	}
	if err := s.store.DeleteRead(r.Context(), id); err != nil {
		sendJSONError(w, http.StatusInternalServerError, "deleting read failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		sendJSONError(w, http.StatusBadRequest, "Message required")
		return
	}

	user := auth.FromContext(r.Context())
	reply, err := s.chat.Chat(r.Context(), user.Email, req.Message)
	if err != nil {
		s.logger.Error("chat turn failed", "user", user.Email, "error", err)
		sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if reply.Actions == nil {
		reply.Actions = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, reply)
}

// chatHistoryItem is one stored conversation turn. HTML carries the
// markdown-rendered content for the dashboard.
type chatHistoryItem struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	UserEmail string `json:"user_email"`
	CreatedAt string `json:"created_at"`
	HTML      string `json:"html"`
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	user := auth.FromContext(r.Context())

	msgs, err := s.store.ListChatMessages(r.Context(), user.Email, 100)
	if err != nil {
		sendJSONError(w, http.StatusInternalServerError, "loading history failed")
		return
	}

	items := make([]chatHistoryItem, 0, len(msgs))
	for _, msg := range msgs {
		items = append(items, chatHistoryItem{
			Role:      msg.Role,
			Content:   msg.Content,
			UserEmail: msg.UserEmail,
			CreatedAt: msg.CreatedAt.Format(time.RFC3339),
			HTML:      s.renderMarkdown(msg.Content),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(content), &buf); err != nil {
		return ""
	}
	return buf.String()
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	user := auth.FromContext(r.Context())

	if err := s.store.ClearChatMessages(r.Context(), user.Email); err != nil {
		sendJSONError(w, http.StatusInternalServerError, "clearing history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleReadsStatus is an unauthenticated debug endpoint exposing read
// counts and the five most recent entries.
func (s *Server) handleReadsStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountReads(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	reads, err := s.store.ListReads(r.Context(), "", 5)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	recent := make([]map[string]any, 0, len(reads))
	for _, item := range reads {
		recent = append(recent, map[string]any{
			"id":     item.ID,
			"title":  item.Title,
			"status": item.Status,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count, "recent": recent})
}

// handleClearAllChats wipes every user's chat history. Guarded by the
// maintenance token; mismatches pretend the route does not exist.
func (s *Server) handleClearAllChats(w http.ResponseWriter, r *http.Request) {
	expected := s.config.MaintenanceToken
	token := r.PathValue("token")
	if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		http.NotFound(w, r)
		return
	}

	if err := s.store.ClearAllChatMessages(r.Context()); err != nil {
		sendJSONError(w, http.StatusInternalServerError, "clearing chats failed")
		return
	}

	s.logger.Info("all chat history cleared via maintenance endpoint")
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}
