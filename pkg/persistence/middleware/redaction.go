package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

// DefaultSecretPatterns match common credentials users paste into prompts.
var DefaultSecretPatterns = []string{
	`AIza[0-9A-Za-z_\-]{35}`,     // Google API key
	`sk-[A-Za-z0-9_\-]{20,}`,     // OpenAI-style secret key
	`gh[pousr]_[A-Za-z0-9]{36,}`, // GitHub token
	`AKIA[0-9A-Z]{16}`,           // AWS access key id
	`(?i)password\s*[:=]\s*\S+`,  // inline password assignment
}

type redactionMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware masks matches of patterns in the conversation (prompt and messages)
// before it is persisted. Generated files are left untouched.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, session *domain.Session) error {
	// Work on a copy; the caller keeps the unmasked session in memory.
	cloned := session.Snapshot()
	cloned.Prompt = m.mask(cloned.Prompt)
	for i := range cloned.Messages {
		cloned.Messages[i].Content = m.mask(cloned.Messages[i].Content)
	}
	return m.next.Save(ctx, cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactionMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}
