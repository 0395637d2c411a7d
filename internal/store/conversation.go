package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xonecas/forge/internal/domain"
)

// ConversationStore implements domain.ConversationRepository as a single
// JSON-blob-per-row table, the same shape the teacher used for sessions
// before per-message rows existed: Context is a tagged-variant list that
// doesn't map cleanly onto flat per-message rows, so each Conversation is
// serialized whole and stored as one row, following snapshot.Store's
// New(db)/Migrate(db) split.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore wraps db, assuming the conversations table already
// exists (see MigrateConversations).
func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// MigrateConversations creates the conversations table if it does not
// already exist.
func MigrateConversations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			context    TEXT NOT NULL,
			metrics    TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate conversations: %w", err)
	}
	return nil
}

// Upsert implements domain.ConversationRepository.
func (s *ConversationStore) Upsert(ctx context.Context, conv *domain.Conversation) error {
	ctxJSON, err := marshalContext(conv.Context)
	if err != nil {
		return fmt.Errorf("marshal context for %s: %w", conv.ID, err)
	}
	metricsJSON, err := json.Marshal(conv.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics for %s: %w", conv.ID, err)
	}

	now := time.Now()
	createdAt := conv.Metadata.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	conv.Metadata.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, context, metrics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			context = excluded.context,
			metrics = excluded.metrics,
			updated_at = excluded.updated_at`,
		string(conv.ID), conv.Title, string(ctxJSON), string(metricsJSON),
		createdAt.Unix(), conv.Metadata.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert conversation %s: %w", conv.ID, err)
	}
	conv.Metadata.CreatedAt = createdAt
	return nil
}

// Get implements domain.ConversationRepository.
func (s *ConversationStore) Get(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	var title, ctxJSON, metricsJSON string
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT title, context, metrics, created_at, updated_at FROM conversations WHERE id = ?`,
		string(id),
	).Scan(&title, &ctxJSON, &metricsJSON, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return rowToConversation(id, title, ctxJSON, metricsJSON, created, updated)
}

// List implements domain.ConversationRepository, returning the most recently
// updated conversations first.
func (s *ConversationStore) List(ctx context.Context, limit int) ([]*domain.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, context, metrics, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Conversation
	for rows.Next() {
		var id, title, ctxJSON, metricsJSON string
		var created, updated int64
		if err := rows.Scan(&id, &title, &ctxJSON, &metricsJSON, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conv, err := rowToConversation(domain.ConversationID(id), title, ctxJSON, metricsJSON, created, updated)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// Last implements domain.ConversationRepository.
func (s *ConversationStore) Last(ctx context.Context) (*domain.Conversation, error) {
	convs, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, fmt.Errorf("%w: no conversations recorded", domain.ErrNotFound)
	}
	return convs[0], nil
}

// Delete implements domain.ConversationRepository.
func (s *ConversationStore) Delete(ctx context.Context, id domain.ConversationID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	return nil
}

func rowToConversation(id domain.ConversationID, title, ctxJSON, metricsJSON string, created, updated int64) (*domain.Conversation, error) {
	c, err := unmarshalContext([]byte(ctxJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal context for %s: %w", id, err)
	}
	var metrics domain.ConversationMetrics
	if err := json.Unmarshal([]byte(metricsJSON), &metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics for %s: %w", id, err)
	}
	return &domain.Conversation{
		ID:      id,
		Title:   title,
		Context: c,
		Metrics: metrics,
		Metadata: domain.ConversationMetadata{
			CreatedAt: time.Unix(created, 0),
			UpdatedAt: time.Unix(updated, 0),
		},
	}, nil
}

// wireContext mirrors domain.Context but holds Messages as tagged envelopes,
// since json can't round-trip a []domain.ContextMessage interface slice on
// its own.
type wireContext struct {
	Messages    []wireMessage          `json:"messages"`
	Tools       []domain.ToolDefinition `json:"tools,omitempty"`
	ToolChoice  domain.ToolChoice       `json:"toolChoice"`
	Temperature *float64                `json:"temperature,omitempty"`
	TopP        *float64                `json:"topP,omitempty"`
	TopK        *int                    `json:"topK,omitempty"`
	MaxTokens   *int                    `json:"maxTokens,omitempty"`
	Reasoning   *domain.ReasoningConfig `json:"reasoning,omitempty"`
	Usage       *domain.Usage           `json:"usage,omitempty"`
	Stream      *bool                   `json:"stream,omitempty"`
}

type wireMessage struct {
	Kind  string               `json:"kind"`
	Text  *domain.TextMessage  `json:"text,omitempty"`
	Tool  *domain.ToolMessage  `json:"tool,omitempty"`
	Image *domain.ImageMessage `json:"image,omitempty"`
}

func marshalContext(c *domain.Context) ([]byte, error) {
	if c == nil {
		c = &domain.Context{}
	}
	w := wireContext{
		Tools: c.Tools, ToolChoice: c.ToolChoice, Temperature: c.Temperature,
		TopP: c.TopP, TopK: c.TopK, MaxTokens: c.MaxTokens,
		Reasoning: c.Reasoning, Usage: c.Usage, Stream: c.Stream,
	}
	for _, m := range c.Messages {
		switch msg := m.(type) {
		case domain.TextMessage:
			w.Messages = append(w.Messages, wireMessage{Kind: "text", Text: &msg})
		case domain.ToolMessage:
			w.Messages = append(w.Messages, wireMessage{Kind: "tool", Tool: &msg})
		case domain.ImageMessage:
			w.Messages = append(w.Messages, wireMessage{Kind: "image", Image: &msg})
		default:
			return nil, fmt.Errorf("unsupported context message type %T", m)
		}
	}
	return json.Marshal(w)
}

func unmarshalContext(data []byte) (*domain.Context, error) {
	var w wireContext
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	c := &domain.Context{
		Tools: w.Tools, ToolChoice: w.ToolChoice, Temperature: w.Temperature,
		TopP: w.TopP, TopK: w.TopK, MaxTokens: w.MaxTokens,
		Reasoning: w.Reasoning, Usage: w.Usage, Stream: w.Stream,
	}
	for _, wm := range w.Messages {
		switch wm.Kind {
		case "text":
			if wm.Text != nil {
				c.Messages = append(c.Messages, *wm.Text)
			}
		case "tool":
			if wm.Tool != nil {
				c.Messages = append(c.Messages, *wm.Tool)
			}
		case "image":
			if wm.Image != nil {
				c.Messages = append(c.Messages, *wm.Image)
			}
		default:
			return nil, fmt.Errorf("unknown stored message kind %q", wm.Kind)
		}
	}
	return c, nil
}
