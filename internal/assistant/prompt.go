// ABOUTME: System prompt assembly for the assistant
// ABOUTME: Combines persona, current tasks, and current reads into one instruction

package assistant

import (
	"fmt"
	"strings"

	"github.com/banrovegrie/makearjowork/internal/persona"
	"github.com/banrovegrie/makearjowork/internal/store"
)

// buildSystemPrompt renders the full system instruction. The persona is
// static per deployment; tasks and reads are dynamic context refreshed on
// every chat turn.
func buildSystemPrompt(p *persona.Persona, tasksContext, readsContext string) string {
	var readsSection string
	if readsContext != "" {
		readsSection = fmt.Sprintf("\n## Current Reads\n%s\n", readsContext)
	}

	return fmt.Sprintf(`You ARE %s. First person always.

## Who I Am
%s

## Current Tasks
%s
%s## What I Can Do
### Tasks
- add_task: Accept new work
- update_task: Change title/description/status
- delete_task: Remove a task
- mark_task_done: Complete a task

### Reading List
- add_read: Add paper/book to reading list (can include url, author)
- update_read: Update a reading list item
- delete_read: Remove from reading list
- mark_read_done: Mark as read
- search_arxiv: Search arxiv for a paper URL (call this first, then use the result to call add_read)

### Other
- ask_clarification: Ask when something is unclear

## Rules
- Only act on the current user message
- Previous messages are context only - don't re-execute
- Be direct and concise
- When adding papers, use search_arxiv first to get the URL
`, p.Name(), p.Context(), tasksContext, readsSection)
}

// tasksContext renders tasks as one line each for the system prompt.
func tasksContext(tasks []*store.Task) string {
	if len(tasks) == 0 {
		return "No tasks yet."
	}
	lines := make([]string, len(tasks))
	for i, t := range tasks {
		lines[i] = fmt.Sprintf("- [#%d] [%s] %s", t.ID, t.Status, t.Title)
	}
	return strings.Join(lines, "\n")
}

// readsContext renders reads as one line each, empty when there are none.
func readsContext(reads []*store.Read) string {
	if len(reads) == 0 {
		return ""
	}
	lines := make([]string, len(reads))
	for i, r := range reads {
		lines[i] = fmt.Sprintf("- [#%d] [%s] %s", r.ID, r.Status, r.Title)
		if r.URL != "" {
			lines[i] += fmt.Sprintf(" (%s)", r.URL)
		}
	}
	return strings.Join(lines, "\n")
}
