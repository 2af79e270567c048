package domain

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the model conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SessionStatus defines the current mode of a builder session.
type SessionStatus string

const (
	SessionIdle       SessionStatus = "idle"       // No model call in flight
	SessionGenerating SessionStatus = "generating" // Waiting for the model
	SessionFailed     SessionStatus = "failed"     // Last model call failed
)

// Session is the durable snapshot of one generator pipeline.
// Steps and Tree are owned by the reconciler; other components only append steps.
type Session struct {
	ID       string        `json:"id"`
	Prompt   string        `json:"prompt,omitempty"`
	Stack    string        `json:"stack,omitempty"`
	Status   SessionStatus `json:"status"`
	Steps    []Step        `json:"steps"`
	Tree     Tree          `json:"tree"`
	Messages []Message     `json:"messages,omitempty"`

	// LastError describes the last collaborator failure (model call).
	LastError string `json:"last_error,omitempty"`

	// Sealed holds the encrypted session when stored through the encryption middleware.
	Sealed string `json:"sealed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an empty idle session.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Status:    SessionIdle,
		Steps:     []Step{},
		Tree:      Tree{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot returns a deep copy of the session.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Steps != nil {
		c.Steps = make([]Step, len(s.Steps))
		copy(c.Steps, s.Steps)
	}
	if s.Messages != nil {
		c.Messages = make([]Message, len(s.Messages))
		copy(c.Messages, s.Messages)
	}
	c.Tree = cloneNodes(s.Tree)
	return &c
}

func cloneNodes(nodes []FileNode) []FileNode {
	if nodes == nil {
		return nil
	}
	out := make([]FileNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Children = cloneNodes(n.Children)
	}
	return out
}
