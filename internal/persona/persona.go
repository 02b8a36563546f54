// ABOUTME: Assistant persona loaded from a JSON file with mtime-based caching
// ABOUTME: Renders the identity/essence/voice sections of the system prompt

package persona

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Persona describes the assistant's identity and voice. Every field is
// optional; missing sections are simply omitted from the prompt.
type Persona struct {
	Identity struct {
		Name string `json:"name"`
	} `json:"identity"`
	Essence struct {
		WhoIAm       string `json:"who_i_am"`
		WhatDrivesMe string `json:"what_drives_me"`
	} `json:"essence"`
	Company struct {
		Mission string `json:"mission"`
	} `json:"company"`
	Voice struct {
		Style              string   `json:"style"`
		Characteristics    []string `json:"characteristics"`
		WhenToAskQuestions []string `json:"when_to_ask_questions"`
	} `json:"voice"`
	ContextNotes []string `json:"context_notes"`
}

// Name returns the persona's display name, defaulting to "Arjo".
func (p *Persona) Name() string {
	if p.Identity.Name != "" {
		return p.Identity.Name
	}
	return "Arjo"
}

// Context renders the persona for the system prompt: essence over
// credentials.
func (p *Persona) Context() string {
	var parts []string

	if p.Essence.WhoIAm != "" {
		parts = append(parts, p.Essence.WhoIAm)
	}
	if p.Essence.WhatDrivesMe != "" {
		parts = append(parts, "What drives me: "+p.Essence.WhatDrivesMe)
	}
	if p.Company.Mission != "" {
		parts = append(parts, "FYDY's mission: "+p.Company.Mission)
	}
	if len(p.Voice.Characteristics) > 0 {
		parts = append(parts, "How I communicate: "+strings.Join(p.Voice.Characteristics, "; "))
	}
	if len(p.Voice.WhenToAskQuestions) > 0 {
		parts = append(parts, "I ask questions when: "+strings.Join(p.Voice.WhenToAskQuestions, "; "))
	}
	if len(p.ContextNotes) > 0 {
		parts = append(parts, "Current context: "+strings.Join(p.ContextNotes, "; "))
	}

	return strings.Join(parts, "\n")
}

// Default returns the built-in persona used when no file is configured.
func Default() *Persona {
	var p Persona
	p.Identity.Name = "Arjo"
	p.Voice.Style = "friendly"
	p.Voice.Characteristics = []string{"Be helpful and direct"}
	return &p
}

// Loader reads a persona file and caches the result until the file's
// modification time changes, so edits show up without a restart.
type Loader struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	cached   *Persona
	loadedAt time.Time
}

// NewLoader creates a loader for the given path. An empty path always
// yields the default persona.
func NewLoader(path string) *Loader {
	return &Loader{
		path:   path,
		logger: slog.Default().With("component", "persona"),
	}
}

// Load returns the current persona. Unreadable or malformed files fall
// back to the default so a bad edit never breaks chat.
func (l *Loader) Load() *Persona {
	if l.path == "" {
		return Default()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Stat(l.path)
	if err != nil {
		return Default()
	}

	if l.cached != nil && !info.ModTime().After(l.loadedAt) {
		return l.cached
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		l.logger.Warn("reading persona file failed", "path", l.path, "error", err)
		return Default()
	}

	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		l.logger.Warn("parsing persona file failed", "path", l.path, "error", err)
		return Default()
	}

	l.cached = &p
	l.loadedAt = info.ModTime()
	return l.cached
}
