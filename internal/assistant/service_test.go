// ABOUTME: Tests for the chat service and tool executor.
// ABOUTME: Scripts model turns with a fake client against a real sqlite store.

package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/banrovegrie/makearjowork/internal/arxiv"
	"github.com/banrovegrie/makearjowork/internal/persona"
	"github.com/banrovegrie/makearjowork/internal/store"
)

type fakeClient struct {
	responses []*genai.GenerateContentResponse
	calls     [][]*genai.Content
}

func (f *fakeClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls = append(f.calls, contents)
	if len(f.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type fakeSearcher struct {
	result *arxiv.Result
	err    error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (*arxiv.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func callResponse(name string, args map[string]any) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{
				FunctionCall: &genai.FunctionCall{Name: name, Args: args},
			}}},
		}},
	}
}

func newTestService(t *testing.T, client Client, searcher Searcher) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	loader := persona.NewLoader(filepath.Join(t.TempDir(), "missing-persona.json"))
	return NewService(client, st, searcher, loader), st
}

func TestChatPlainText(t *testing.T) {
	client := &fakeClient{responses: []*genai.GenerateContentResponse{
		textResponse("Got it, nothing to do."),
	}}
	svc, st := newTestService(t, client, &fakeSearcher{})

	reply, err := svc.Chat(context.Background(), "alice@fydy.ai", "just saying hi")
	require.NoError(t, err)
	assert.Equal(t, "Got it, nothing to do.", reply.Response)
	assert.Empty(t, reply.Actions)

	msgs, err := st.ListChatMessages(context.Background(), "alice@fydy.ai", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.ChatRoleUser, msgs[0].Role)
	assert.Equal(t, "just saying hi", msgs[0].Content)
	assert.Equal(t, store.ChatRoleAssistant, msgs[1].Role)
	assert.Equal(t, "Got it, nothing to do.", msgs[1].Content)
}

func TestChatEmptyMessage(t *testing.T) {
	svc, _ := newTestService(t, &fakeClient{}, &fakeSearcher{})

	_, err := svc.Chat(context.Background(), "alice@fydy.ai", "   ")
	assert.Error(t, err)
}

func TestChatAddTask(t *testing.T) {
	client := &fakeClient{responses: []*genai.GenerateContentResponse{
		callResponse("add_task", map[string]any{"title": "Write report", "description": "Q3 numbers"}),
		textResponse("Added it to my list."),
	}}
	svc, st := newTestService(t, client, &fakeSearcher{})

	reply, err := svc.Chat(context.Background(), "alice@fydy.ai", "add a task to write the report")
	require.NoError(t, err)
	assert.Equal(t, "Added it to my list.", reply.Response)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, "added", reply.Actions[0]["type"])

	tasks, err := st.ListTasks(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Write report", tasks[0].Title)
	assert.Equal(t, "Q3 numbers", tasks[0].Description)
	assert.Equal(t, "alice@fydy.ai", tasks[0].AssignedBy)
	assert.Equal(t, store.TaskStatusPending, tasks[0].Status)

	// The stored assistant turn carries the action summary.
	msgs, err := st.ListChatMessages(context.Background(), "alice@fydy.ai", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Added it to my list.\n[Added task: Write report]", msgs[1].Content)
}

func TestChatMarkTaskDone(t *testing.T) {
	client := &fakeClient{}
	svc, st := newTestService(t, client, &fakeSearcher{})

	task := &store.Task{Title: "Ship release", AssignedBy: "bob@fydy.ai"}
	require.NoError(t, st.CreateTask(context.Background(), task))

	client.responses = []*genai.GenerateContentResponse{
		callResponse("mark_task_done", map[string]any{"id": float64(task.ID)}),
		textResponse("Done."),
	}

	reply, err := svc.Chat(context.Background(), "bob@fydy.ai", "mark the release task done")
	require.NoError(t, err)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, "done", reply.Actions[0]["type"])

	got, err := st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskStatusDone, got.Status)
}

func TestChatSearchThenAddRead(t *testing.T) {
	searcher := &fakeSearcher{result: &arxiv.Result{
		Title:   "Attention Is All You Need",
		URL:     "http://arxiv.org/abs/1706.03762",
		Authors: "Ashish Vaswani, Noam Shazeer, Niki Parmar...",
	}}
	client := &fakeClient{responses: []*genai.GenerateContentResponse{
		callResponse("search_arxiv", map[string]any{"query": "attention is all you need"}),
		callResponse("add_read", map[string]any{
			"title": "Attention Is All You Need",
			"url":   "http://arxiv.org/abs/1706.03762",
		}),
		textResponse("Added the transformer paper."),
	}}
	svc, st := newTestService(t, client, searcher)

	reply, err := svc.Chat(context.Background(), "alice@fydy.ai", "add the transformer paper to my reading list")
	require.NoError(t, err)
	assert.Equal(t, "Added the transformer paper.", reply.Response)
	require.Len(t, reply.Actions, 2)
	assert.Equal(t, "arxiv_result", reply.Actions[0]["type"])
	assert.Equal(t, "read_added", reply.Actions[1]["type"])

	reads, err := st.ListReads(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, reads, 1)
	assert.Equal(t, "http://arxiv.org/abs/1706.03762", reads[0].URL)
	assert.Equal(t, store.ReadStatusUnread, reads[0].Status)

	msgs, err := st.ListChatMessages(context.Background(), "alice@fydy.ai", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Added the transformer paper.\n[Found on arxiv: Attention Is All You Need, Added to reading list: Attention Is All You Need]", msgs[1].Content)
}

func TestChatClarification(t *testing.T) {
	client := &fakeClient{responses: []*genai.GenerateContentResponse{
		callResponse("ask_clarification", map[string]any{"question": "Which task do you mean?"}),
		textResponse(""),
	}}
	svc, _ := newTestService(t, client, &fakeSearcher{})

	reply, err := svc.Chat(context.Background(), "alice@fydy.ai", "delete it")
	require.NoError(t, err)
	assert.Equal(t, "Which task do you mean?", reply.Response)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, "clarification", reply.Actions[0]["type"])
}

func TestChatToolRoundLimit(t *testing.T) {
	// A model that never stops calling tools runs out of rounds.
	client := &fakeClient{responses: []*genai.GenerateContentResponse{
		callResponse("add_task", map[string]any{"title": "a"}),
		callResponse("add_task", map[string]any{"title": "b"}),
		callResponse("add_task", map[string]any{"title": "c"}),
		callResponse("add_task", map[string]any{"title": "d"}),
		callResponse("add_task", map[string]any{"title": "e"}),
		callResponse("add_task", map[string]any{"title": "never reached"}),
	}}
	svc, st := newTestService(t, client, &fakeSearcher{})

	reply, err := svc.Chat(context.Background(), "alice@fydy.ai", "go wild")
	require.NoError(t, err)
	assert.Len(t, client.calls, 5)
	assert.Len(t, reply.Actions, 5)

	tasks, err := st.ListTasks(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, tasks, 5)
}

func TestChatFailedActionExcluded(t *testing.T) {
	client := &fakeClient{responses: []*genai.GenerateContentResponse{
		callResponse("delete_task", map[string]any{"id": float64(999)}),
		textResponse("That task doesn't exist."),
	}}
	svc, st := newTestService(t, client, &fakeSearcher{})

	reply, err := svc.Chat(context.Background(), "alice@fydy.ai", "delete task 999")
	require.NoError(t, err)
	assert.Empty(t, reply.Actions)

	// No action summary on the stored assistant message.
	msgs, err := st.ListChatMessages(context.Background(), "alice@fydy.ai", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "That task doesn't exist.", msgs[1].Content)
}

func TestChatHistoryIncluded(t *testing.T) {
	client := &fakeClient{responses: []*genai.GenerateContentResponse{
		textResponse("Still here."),
	}}
	svc, st := newTestService(t, client, &fakeSearcher{})

	require.NoError(t, st.AppendChatMessage(context.Background(), &store.ChatMessage{
		Role: store.ChatRoleUser, Content: "earlier question", UserEmail: "alice@fydy.ai",
	}))
	require.NoError(t, st.AppendChatMessage(context.Background(), &store.ChatMessage{
		Role: store.ChatRoleAssistant, Content: "earlier answer", UserEmail: "alice@fydy.ai",
	}))

	_, err := svc.Chat(context.Background(), "alice@fydy.ai", "follow-up")
	require.NoError(t, err)

	require.Len(t, client.calls, 1)
	contents := client.calls[0]
	require.Len(t, contents, 3)
	assert.Equal(t, genai.Role(genai.RoleUser), genai.Role(contents[0].Role))
	assert.Equal(t, "earlier question", contents[0].Parts[0].Text)
	assert.Equal(t, genai.Role(genai.RoleModel), genai.Role(contents[1].Role))
	assert.Equal(t, "follow-up", contents[2].Parts[0].Text)
}

func TestChatModelError(t *testing.T) {
	svc, st := newTestService(t, &fakeClient{}, &fakeSearcher{})

	_, err := svc.Chat(context.Background(), "alice@fydy.ai", "hello")
	require.Error(t, err)

	// Nothing is persisted when the model call fails.
	msgs, err := st.ListChatMessages(context.Background(), "alice@fydy.ai", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
