package parser

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Default tag names of the action markup dialect.
const (
	DefaultArtifactTag = "boltArtifact"
	DefaultActionTag   = "boltAction"
)

// Artifact is one outer container block and the actions it holds, in source order.
type Artifact struct {
	ID      string
	Title   string
	Actions []domain.Action
}

// Diagnostic records a tag that was skipped during parsing.
type Diagnostic struct {
	Offset int    `json:"offset"` // Byte offset of the offending tag in the input
	Tag    string `json:"tag"`    // Tag name as configured
	Reason string `json:"reason"`
}

// Document is the structured result of a parse.
type Document struct {
	Artifacts   []Artifact
	Diagnostics []Diagnostic
}

// Actions flattens the actions of every artifact, preserving order.
func (d Document) Actions() []domain.Action {
	var out []domain.Action
	for _, a := range d.Artifacts {
		out = append(out, a.Actions...)
	}
	return out
}

func (d *Document) skip(offset int, tag, reason string) {
	d.Diagnostics = append(d.Diagnostics, Diagnostic{Offset: offset, Tag: tag, Reason: reason})
}

// Parser extracts build actions from free-form model output.
// It never executes content and never fails: malformed tags are skipped.
type Parser struct {
	artifactTag      string
	actionTag        string
	markdownFallback bool
	logger           *slog.Logger
}

// Option configures the Parser.
type Option func(*Parser)

// WithTags overrides the outer and inner tag names (matched case-insensitively).
func WithTags(artifact, action string) Option {
	return func(p *Parser) {
		if artifact != "" {
			p.artifactTag = artifact
		}
		if action != "" {
			p.actionTag = action
		}
	}
}

// WithMarkdownFallback enables fenced-code-block extraction when a document has no artifact.
func WithMarkdownFallback() Option {
	return func(p *Parser) {
		p.markdownFallback = true
	}
}

// WithLogger sets a logger for skipped tags (debug level).
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// New creates a Parser for the default dialect.
func New(opts ...Option) *Parser {
	p := &Parser{
		artifactTag: DefaultArtifactTag,
		actionTag:   DefaultActionTag,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New()

// Parse extracts actions with the default parser.
func Parse(text string) []domain.Action {
	return defaultParser.Parse(text)
}

// ParseDocument extracts artifacts and diagnostics with the default parser.
func ParseDocument(text string) Document {
	return defaultParser.ParseDocument(text)
}

// Parse returns the well-formed actions found in text, in source order.
func (p *Parser) Parse(text string) []domain.Action {
	return p.ParseDocument(text).Actions()
}

// ParseDocument scans text for artifact blocks and their actions.
// An artifact without a closing tag (truncated stream) is parsed to end of input.
func (p *Parser) ParseDocument(text string) Document {
	var doc Document
	lower := asciiLower(text)
	artifactTag := asciiLower(p.artifactTag)

	pos := 0
	for pos < len(text) {
		open := findOpen(lower, artifactTag, pos)
		if open < 0 {
			break
		}
		end := tagEnd(text, open)
		if end < 0 {
			doc.skip(open, p.artifactTag, "unterminated artifact tag")
			break
		}

		var meta artifactAttrs
		if attrs, ok := tagAttributes(text[open:end]); ok {
			_ = mapstructure.Decode(attrs, &meta)
		}

		bodyEnd, next := len(text), len(text)
		if closeStart, closeEnd := findClose(lower, artifactTag, end); closeStart >= 0 {
			bodyEnd, next = closeStart, closeEnd
		} else {
			doc.skip(open, p.artifactTag, "artifact not closed, parsed to end of input")
		}

		doc.Artifacts = append(doc.Artifacts, Artifact{
			ID:      meta.ID,
			Title:   meta.Title,
			Actions: p.parseActions(text[:bodyEnd], lower[:bodyEnd], end, &doc),
		})
		pos = next
	}

	if len(doc.Artifacts) == 0 && p.markdownFallback {
		if actions := extractMarkdownActions([]byte(text)); len(actions) > 0 {
			doc.Artifacts = append(doc.Artifacts, Artifact{Actions: actions})
		}
	}

	for _, d := range doc.Diagnostics {
		p.logger.Debug("Skipped markup tag", "tag", d.Tag, "offset", d.Offset, "reason", d.Reason)
	}
	return doc
}

func (p *Parser) parseActions(text, lower string, from int, doc *Document) []domain.Action {
	actionTag := asciiLower(p.actionTag)
	var actions []domain.Action

	pos := from
	for pos < len(text) {
		open := findOpen(lower, actionTag, pos)
		if open < 0 {
			break
		}
		end := tagEnd(text, open)
		if end < 0 {
			doc.skip(open, p.actionTag, "unterminated action tag")
			break
		}
		openTag := text[open:end]

		body := ""
		next := end
		if !isSelfClosing(openTag) {
			closeStart, closeEnd := findClose(lower, actionTag, end)
			sibling := findOpen(lower, actionTag, end)
			if closeStart < 0 || (sibling >= 0 && sibling < closeStart) {
				doc.skip(open, p.actionTag, "action not closed")
				pos = end
				continue
			}
			body = text[end:closeStart]
			next = closeEnd
		}

		action, err := buildAction(openTag, body)
		if err != nil {
			doc.skip(open, p.actionTag, err.Error())
		} else {
			actions = append(actions, action)
		}
		pos = next
	}
	return actions
}

type artifactAttrs struct {
	ID    string `mapstructure:"id"`
	Title string `mapstructure:"title"`
}

// actionAttrs mirrors the (lowercased) attributes of an action tag.
type actionAttrs struct {
	Type     string `mapstructure:"type"`
	FilePath string `mapstructure:"filepath"`
	Path     string `mapstructure:"path"`
	Title    string `mapstructure:"title"`
}

func buildAction(openTag, body string) (domain.Action, error) {
	attrs, ok := tagAttributes(openTag)
	if !ok {
		return nil, fmt.Errorf("unreadable tag")
	}
	var meta actionAttrs
	if err := mapstructure.Decode(attrs, &meta); err != nil {
		return nil, fmt.Errorf("bad attributes: %v", err)
	}

	rawPath := meta.FilePath
	if rawPath == "" {
		rawPath = meta.Path
	}

	kind := strings.ToLower(strings.TrimSpace(meta.Type))
	switch kind {
	case "file", "edit":
		clean, err := domain.CleanPath(rawPath)
		if err != nil {
			return nil, err
		}
		content := fileBody(body)
		if kind == "edit" {
			return domain.EditFile{Path: clean, Content: content, Title: meta.Title}, nil
		}
		return domain.CreateFile{Path: clean, Content: content, Title: meta.Title}, nil

	case "folder", "directory", "dir":
		clean, err := domain.CleanPath(rawPath)
		if err != nil {
			return nil, err
		}
		return domain.CreateFolder{Path: clean, Title: meta.Title}, nil

	case "delete", "remove":
		clean, err := domain.CleanPath(rawPath)
		if err != nil {
			return nil, err
		}
		return domain.DeleteFile{Path: clean, Title: meta.Title}, nil

	case "shell", "run", "command":
		command := strings.TrimSpace(unwrapCDATA(body))
		if command == "" {
			return nil, fmt.Errorf("empty command")
		}
		return domain.RunScript{Command: command, Title: meta.Title}, nil

	case "":
		return nil, fmt.Errorf("missing type attribute")
	default:
		return nil, fmt.Errorf("unknown action type %q", meta.Type)
	}
}

// fileBody strips markup-induced blank lines around the payload.
// Indentation of the first line and all inner whitespace are kept.
func fileBody(body string) string {
	body = unwrapCDATA(body)
	for {
		nl := strings.IndexByte(body, '\n')
		if nl < 0 || strings.TrimSpace(body[:nl]) != "" {
			break
		}
		body = body[nl+1:]
	}
	return strings.TrimRight(body, " \t\r\n")
}

func unwrapCDATA(body string) string {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "<![CDATA[") && strings.HasSuffix(trimmed, "]]>") {
		return trimmed[len("<![CDATA[") : len(trimmed)-len("]]>")]
	}
	return body
}
