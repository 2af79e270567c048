package thunder

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/filetree"
	"github.com/aretw0/thunder/pkg/mount"
	"github.com/aretw0/thunder/pkg/prompts"
	"github.com/aretw0/thunder/pkg/sandbox"
	"github.com/aretw0/thunder/pkg/steps"
	"github.com/google/uuid"
)

// Template asks the model which stack fits prompt and returns its template.
// Answers outside the template library yield domain.ErrTemplateNotFound.
func (b *Builder) Template(ctx context.Context, prompt string) (*domain.Template, error) {
	if b.generator == nil {
		return nil, ErrNoGenerator
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("empty prompt")
	}

	answer, err := b.generator.Generate(ctx, prompts.Classify, []domain.Message{
		{Role: domain.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: classify prompt: %w", domain.ErrGeneration, err)
	}

	stack := normalizeStack(answer)
	b.logger.Debug("Classified prompt", "stack", stack)
	return b.templates.Template(ctx, stack)
}

// normalizeStack reduces a one-word model answer ("React.", "`node`") to a stack name.
func normalizeStack(answer string) string {
	return strings.ToLower(strings.TrimFunc(answer, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

// Chat is a stateless model call under the artifact system prompt.
func (b *Builder) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	if b.generator == nil {
		return "", ErrNoGenerator
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages")
	}
	reply, err := b.generator.Generate(ctx, prompts.System(), messages)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	return reply, nil
}

// Start creates a session for prompt. The starter files of the chosen template
// are reconciled first, then the model reply is merged and reconciled on top.
// When the model call fails the session is still saved with status failed,
// and returned along with the error.
func (b *Builder) Start(ctx context.Context, prompt string) (*domain.Session, error) {
	tpl, err := b.Template(ctx, prompt)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	genCtx, done, err := b.begin(ctx, id)
	if err != nil {
		return nil, err
	}
	defer done()

	s := domain.NewSession(id)
	s.Prompt = prompt
	s.Stack = tpl.Stack
	s.Status = domain.SessionGenerating
	for _, ui := range tpl.UIPrompts {
		s.Steps = steps.MergeDocument(s.Steps, b.parser.ParseDocument(ui))
	}
	b.reconcile(ctx, s)

	for _, p := range tpl.Prompts {
		s.Messages = append(s.Messages, domain.Message{Role: domain.RoleUser, Content: p})
	}
	s.Messages = append(s.Messages, domain.Message{Role: domain.RoleUser, Content: prompt})

	if err := b.manager.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	b.logger.Info("Session started", "session_id", id, "stack", tpl.Stack, "steps", len(s.Steps))

	return b.generate(ctx, genCtx, id, s.Messages)
}

// Continue sends a follow-up message with the whole conversation and merges the reply.
func (b *Builder) Continue(ctx context.Context, sessionID, message string) (*domain.Session, error) {
	if b.generator == nil {
		return nil, ErrNoGenerator
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("empty message")
	}

	genCtx, done, err := b.begin(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer done()

	s, err := b.manager.Update(ctx, sessionID, func(s *domain.Session) error {
		s.Messages = append(s.Messages, domain.Message{Role: domain.RoleUser, Content: message})
		s.Status = domain.SessionGenerating
		s.LastError = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.generate(ctx, genCtx, sessionID, s.Messages)
}

// generate runs the model call outside the session lock and folds the reply in.
// On failure the session is marked failed and returned with the error.
func (b *Builder) generate(ctx, genCtx context.Context, sessionID string, history []domain.Message) (*domain.Session, error) {
	if b.generator == nil {
		return nil, ErrNoGenerator
	}

	reply, genErr := b.generator.Generate(genCtx, prompts.System(), history)
	if genErr != nil {
		b.logger.Error("Model call failed", "session_id", sessionID, "err", genErr)
		failed, err := b.manager.Update(ctx, sessionID, func(s *domain.Session) error {
			s.Status = domain.SessionFailed
			s.LastError = genErr.Error()
			return nil
		})
		if err != nil {
			b.logger.Warn("Failed to record model failure", "session_id", sessionID, "err", err)
		}
		return failed, fmt.Errorf("%w: %w", domain.ErrGeneration, genErr)
	}

	return b.manager.Update(ctx, sessionID, func(s *domain.Session) error {
		s.Messages = append(s.Messages, domain.Message{Role: domain.RoleAssistant, Content: reply})
		s.Steps = steps.MergeDocument(s.Steps, b.parser.ParseDocument(reply))
		s.Status = domain.SessionIdle
		b.reconcile(ctx, s)
		return nil
	})
}

// Ingest merges raw model text into a session without calling the model.
// The conversation is left untouched.
func (b *Builder) Ingest(ctx context.Context, sessionID, text string) (*domain.Session, error) {
	return b.manager.Update(ctx, sessionID, func(s *domain.Session) error {
		s.Steps = steps.MergeDocument(s.Steps, b.parser.ParseDocument(text))
		b.reconcile(ctx, s)
		return nil
	})
}

// RecordCommand notes a terminal command in the conversation so the model sees it next turn.
func (b *Builder) RecordCommand(ctx context.Context, sessionID, command string) (*domain.Session, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}
	return b.manager.Update(ctx, sessionID, func(s *domain.Session) error {
		s.Messages = append(s.Messages, domain.Message{Role: domain.RoleUser, Content: "Terminal command: " + command})
		return nil
	})
}

// Exec records command and runs it in the session sandbox, copying its output to w.
func (b *Builder) Exec(ctx context.Context, sessionID, command string, w io.Writer) (int, error) {
	if b.spawner == nil {
		return -1, ErrNoSandbox
	}
	sp, err := b.spawner(sessionID)
	if err != nil {
		return -1, err
	}
	if _, err := b.RecordCommand(ctx, sessionID, command); err != nil {
		return -1, err
	}
	return sandbox.Run(ctx, sp, command, w)
}

// Files searches the files of a session. An empty query lists every file.
func (b *Builder) Files(ctx context.Context, sessionID, query string) ([]domain.FileNode, error) {
	s, err := b.manager.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return filetree.Search(s.Tree, query), nil
}

// Mount returns the mount projection of a session tree.
func (b *Builder) Mount(ctx context.Context, sessionID string) (mount.Descriptor, error) {
	s, err := b.manager.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return mount.Project(s.Tree, b.mountOpts...), nil
}

// Remount re-sends the current tree of a session to the sandbox outbox.
func (b *Builder) Remount(ctx context.Context, sessionID string) error {
	if b.outbox == nil {
		return ErrNoSandbox
	}
	d, err := b.Mount(ctx, sessionID)
	if err != nil {
		return err
	}
	if !b.outbox.Submit(sandbox.MountCommand{SessionID: sessionID, Descriptor: d}) {
		return fmt.Errorf("mount queue closed")
	}
	return nil
}

func (b *Builder) reconcile(ctx context.Context, s *domain.Session) {
	res := b.reconciler.Reconcile(ctx, s.ID, s.Steps, s.Tree)
	if !res.Changed {
		return
	}
	s.Steps, s.Tree = res.Steps, res.Tree
	if len(res.Errors) > 0 {
		b.logger.Warn("Steps failed", "session_id", s.ID, "failed", len(res.Errors))
	}
}
