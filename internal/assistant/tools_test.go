// ABOUTME: Tests for the tool executor and argument coercion.
// ABOUTME: Runs handlers directly against a sqlite store.

package assistant

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banrovegrie/makearjowork/internal/store"
)

func newTestExecutor(t *testing.T, searcher Searcher) (*executor, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return &executor{store: st, searcher: searcher, logger: slog.Default()}, st
}

func TestExecuteUnknownFunction(t *testing.T) {
	exec, _ := newTestExecutor(t, &fakeSearcher{})

	result := exec.execute(context.Background(), "launch_rocket", map[string]any{}, "alice@fydy.ai")
	assert.Equal(t, "error", result["type"])
	assert.Contains(t, result["message"], "launch_rocket")
}

func TestExecuteAddTaskRequiresTitle(t *testing.T) {
	exec, _ := newTestExecutor(t, &fakeSearcher{})

	result := exec.execute(context.Background(), "add_task", map[string]any{"title": "  "}, "alice@fydy.ai")
	assert.Equal(t, "error", result["type"])
}

func TestExecuteUpdateTaskKeepsAbsentFields(t *testing.T) {
	exec, st := newTestExecutor(t, &fakeSearcher{})

	task := &store.Task{Title: "Original", Description: "keep me", AssignedBy: "alice@fydy.ai"}
	require.NoError(t, st.CreateTask(context.Background(), task))

	result := exec.execute(context.Background(), "update_task", map[string]any{
		"id":     float64(task.ID),
		"status": store.TaskStatusInProgress,
	}, "alice@fydy.ai")
	assert.Equal(t, "updated", result["type"])

	got, err := st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
	assert.Equal(t, "keep me", got.Description)
	assert.Equal(t, store.TaskStatusInProgress, got.Status)
}

func TestExecuteUpdateReadNotFound(t *testing.T) {
	exec, _ := newTestExecutor(t, &fakeSearcher{})

	result := exec.execute(context.Background(), "update_read", map[string]any{"id": float64(42)}, "alice@fydy.ai")
	assert.Equal(t, "error", result["type"])
	assert.Contains(t, result["message"], "Read #42 not found")
}

func TestExecuteSearchArxivError(t *testing.T) {
	exec, _ := newTestExecutor(t, &fakeSearcher{err: errors.New("upstream down")})

	result := exec.execute(context.Background(), "search_arxiv", map[string]any{"query": "anything"}, "alice@fydy.ai")
	assert.Equal(t, "arxiv_result", result["type"])
	inner, ok := result["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "upstream down", inner["error"])
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want int64
		ok   bool
	}{
		{"float64", map[string]any{"id": float64(7)}, 7, true},
		{"int", map[string]any{"id": 7}, 7, true},
		{"int64", map[string]any{"id": int64(7)}, 7, true},
		{"numeric string", map[string]any{"id": "7"}, 7, true},
		{"bad string", map[string]any{"id": "seven"}, 0, false},
		{"missing", map[string]any{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := intArg(tt.args, "id")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
