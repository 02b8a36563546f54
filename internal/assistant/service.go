// ABOUTME: Chat service running the Gemini function-calling loop
// ABOUTME: Persists conversation turns with a summary of actions performed

package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/banrovegrie/makearjowork/internal/persona"
	"github.com/banrovegrie/makearjowork/internal/store"
)

const (
	// maxToolRounds bounds chained function calls in a single chat turn.
	maxToolRounds = 5

	// contextLimit caps how many tasks, reads, and history rows feed the prompt.
	contextLimit = 20
)

// Reply is the outcome of one chat turn.
type Reply struct {
	Response string           `json:"response"`
	Actions  []map[string]any `json:"actions"`
}

// Service drives a conversation with the model, executing tool calls
// against the store as they come back.
type Service struct {
	client  Client
	store   store.Store
	persona *persona.Loader
	exec    *executor
	logger  *slog.Logger
}

// NewService wires the chat service together.
func NewService(client Client, st store.Store, searcher Searcher, loader *persona.Loader) *Service {
	logger := slog.Default().With("component", "assistant")
	return &Service{
		client:  client,
		store:   st,
		persona: loader,
		exec:    &executor{store: st, searcher: searcher, logger: logger},
		logger:  logger,
	}
}

// Chat runs one turn for the user: build context, call the model, execute
// any tool calls (up to maxToolRounds rounds), and persist both sides of
// the exchange.
func (s *Service) Chat(ctx context.Context, userEmail, message string) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message is required")
	}

	tasks, err := s.store.ListTasks(ctx, "", contextLimit)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	reads, err := s.store.ListReads(ctx, "", contextLimit)
	if err != nil {
		return nil, fmt.Errorf("loading reads: %w", err)
	}
	history, err := s.store.ListChatMessages(ctx, userEmail, contextLimit)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			buildSystemPrompt(s.persona.Load(), tasksContext(tasks), readsContext(reads)),
			genai.RoleUser,
		),
		Tools:           toolDeclarations(),
		Temperature:     genai.Ptr[float32](0.7),
		MaxOutputTokens: 2048,
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := genai.Role(genai.RoleModel)
		if msg.Role == store.ChatRoleUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	var (
		response string
		actions  []map[string]any
	)

	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.client.GenerateContent(ctx, contents, config)
		if err != nil {
			return nil, fmt.Errorf("generating response: %w", err)
		}

		var calls []*genai.FunctionCall
		var modelParts []*genai.Part
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					response += part.Text
				}
				if part.FunctionCall != nil {
					calls = append(calls, part.FunctionCall)
				}
				modelParts = append(modelParts, part)
			}
		}

		if len(calls) == 0 {
			break
		}

		var results []*genai.Part
		for _, call := range calls {
			args := call.Args
			if args == nil {
				args = map[string]any{}
			}

			// ask_clarification surfaces the question as the reply when the
			// model produced no text of its own.
			if call.Name == "ask_clarification" {
				if q := toString(args["question"]); q != "" && response == "" {
					response = q
				}
				actions = append(actions, map[string]any{"type": "clarification"})
				results = append(results, genai.NewPartFromFunctionResponse(call.Name, map[string]any{"status": "asked"}))
				continue
			}

			result := s.exec.execute(ctx, call.Name, args, userEmail)
			if result["type"] != "error" {
				actions = append(actions, result)
			}
			results = append(results, genai.NewPartFromFunctionResponse(call.Name, result))
		}

		if len(results) == 0 {
			break
		}

		// Extend the conversation with the model's turn and our tool results
		// so the next round sees what happened.
		contents = append(contents, genai.NewContentFromParts(modelParts, genai.RoleModel))
		contents = append(contents, genai.NewContentFromParts(results, genai.RoleUser))
	}

	if err := s.persistTurn(ctx, userEmail, message, response, actions); err != nil {
		s.logger.Warn("persisting chat turn failed", "user", userEmail, "error", err)
	}

	return &Reply{Response: response, Actions: actions}, nil
}

// persistTurn stores the user message and the assistant reply. The stored
// assistant message carries a bracketed summary of actions performed so
// future turns remember what already happened.
func (s *Service) persistTurn(ctx context.Context, userEmail, message, response string, actions []map[string]any) error {
	if err := s.store.AppendChatMessage(ctx, &store.ChatMessage{
		Role:      store.ChatRoleUser,
		Content:   message,
		UserEmail: userEmail,
	}); err != nil {
		return err
	}

	stored := strings.TrimSpace(response)
	if summary := summarizeActions(actions); summary != "" {
		if stored != "" {
			stored = stored + "\n" + summary
		} else {
			stored = summary
		}
	}
	if stored == "" {
		return nil
	}

	return s.store.AppendChatMessage(ctx, &store.ChatMessage{
		Role:      store.ChatRoleAssistant,
		Content:   stored,
		UserEmail: userEmail,
	})
}

// summarizeActions renders performed actions as "[Added task: X, ...]".
func summarizeActions(actions []map[string]any) string {
	var descriptions []string
	for _, action := range actions {
		switch action["type"] {
		case "added":
			descriptions = append(descriptions, fmt.Sprintf("Added task: %s", payloadField(action, "task", "title")))
		case "updated":
			descriptions = append(descriptions, fmt.Sprintf("Updated task #%v", payloadValue(action, "task", "id")))
		case "deleted":
			descriptions = append(descriptions, fmt.Sprintf("Deleted task: %s", payloadField(action, "task", "title")))
		case "done":
			descriptions = append(descriptions, fmt.Sprintf("Completed task: %s", payloadField(action, "task", "title")))
		case "read_added":
			descriptions = append(descriptions, fmt.Sprintf("Added to reading list: %s", payloadField(action, "read", "title")))
		case "read_updated":
			descriptions = append(descriptions, fmt.Sprintf("Updated read #%v", payloadValue(action, "read", "id")))
		case "read_deleted":
			descriptions = append(descriptions, fmt.Sprintf("Removed from reading list: %s", payloadField(action, "read", "title")))
		case "read_done":
			descriptions = append(descriptions, fmt.Sprintf("Marked as read: %s", payloadField(action, "read", "title")))
		case "arxiv_result":
			result, _ := action["result"].(map[string]any)
			if _, failed := result["error"]; !failed {
				title := toString(result["title"])
				if title == "" {
					title = "Unknown"
				}
				descriptions = append(descriptions, fmt.Sprintf("Found on arxiv: %s", title))
			}
		}
	}
	if len(descriptions) == 0 {
		return ""
	}
	return "[" + strings.Join(descriptions, ", ") + "]"
}

func payloadField(action map[string]any, payload, field string) string {
	return toString(payloadValue(action, payload, field))
}

func payloadValue(action map[string]any, payload, field string) any {
	m, _ := action[payload].(map[string]any)
	return m[field]
}
