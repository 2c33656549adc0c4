// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package core holds the shared data model consumed across the agent
// control plane: identity, conversation history, recalled memory and
// retrieved knowledge. None of these types carry behavior beyond small
// constructors and validation — the engines in sibling packages own the
// logic that operates on them.
package core

import (
	"fmt"
	"time"
)

// Role is the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single function invocation requested by the assistant.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON-encoded argument object
}

// Message is one turn in a Conversation.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewMessage builds a Message stamped with the current time. id may be
// empty; callers that need stable identifiers should set it explicitly
// (e.g. via uuid.NewString()).
func NewMessage(id string, role Role, content string) Message {
	return Message{ID: id, Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// Validate checks the Tool-message invariant: a Tool message must carry a
// tool_call_id that references a prior Assistant tool call in the same
// conversation. Conversation.Append does not check this; callers appending
// Tool messages should call Validate first.
func (m Message) Validate(conv *Conversation) error {
	if m.Role != RoleTool {
		return nil
	}
	if m.ToolCallID == "" {
		return fmt.Errorf("core: tool message missing tool_call_id")
	}
	if conv == nil {
		return fmt.Errorf("core: tool message %q has no conversation to validate against", m.ToolCallID)
	}
	for _, prior := range conv.Messages {
		if prior.Role != RoleAssistant {
			continue
		}
		for _, tc := range prior.ToolCalls {
			if tc.ID == m.ToolCallID {
				return nil
			}
		}
	}
	return fmt.Errorf("core: tool message references unknown tool_call_id %q", m.ToolCallID)
}

// Conversation is an ordered sequence of Messages plus bookkeeping.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation with the given id.
func NewConversation(id string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
}

// Append adds a message and refreshes UpdatedAt. Callers sharing a
// Conversation across concurrent turns must serialize calls to Append
// themselves (e.g. with a per-conversation mutex) — Conversation itself
// holds no lock, matching one-owner-per-turn usage in the ReAct loop.
func (c *Conversation) Append(m Message) {
	c.Messages = append(c.Messages, m)
	c.UpdatedAt = time.Now().UTC()
}

// Identity is the immutable per-turn actor description fed into assembly.
type Identity struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	Personality  string `json:"personality,omitempty"`
}

// MemoryEntry is one recalled fact from long-term memory.
type MemoryEntry struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Tags         []string  `json:"tags,omitempty"`
	Source       string    `json:"source,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed,omitempty"`
	Score        float64   `json:"score,omitempty"` // transient, populated by search ranking
	Embedding    []float32 `json:"embedding,omitempty"`
}

// KnowledgeChunk is one retrieved passage from a RAG pipeline, assumed by
// the Context Assembler to already be sorted by Similarity descending.
type KnowledgeChunk struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

// MemoryQueryMode selects how a MemoryBackend ranks candidates.
type MemoryQueryMode string

const (
	MemoryModeKeyword MemoryQueryMode = "keyword"
	MemoryModeVector  MemoryQueryMode = "vector"
	MemoryModeHybrid  MemoryQueryMode = "hybrid"
)

// MemoryQuery parameterizes MemoryBackend.Search.
type MemoryQuery struct {
	Text     string
	Limit    int
	MinScore float64
	Tags     []string
	Mode     MemoryQueryMode
}

// ToolDefinition describes one callable tool the assembler may include in
// the assembled context and the loop may later dispatch to.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// MemoryBackend is the external collaborator interface the ReAct loop
// recalls from and optionally writes conversation summaries to. Concrete
// backends (SQLite, Postgres, a vector store) are out of the core's scope
// per spec.md §1; only this contract matters here.
type MemoryBackend interface {
	Store(entry MemoryEntry) (string, error)
	Search(query MemoryQuery) ([]MemoryEntry, error)
	Get(id string) (MemoryEntry, bool, error)
	Delete(id string) error
	Count() (int, error)
	Clear() error
}
