// Package transcript keeps a PostgreSQL copy of chat turns so web clients can
// list and reopen earlier conversations.
package transcript

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

const (
	DefaultListLimit = 15
	maxListLimit     = 100

	titleRuneLimit   = 30
	previewRuneLimit = 30

	RoleUser = "user"
	RoleBot  = "bot"
)

var ErrNotFound = errors.New("transcript: not found")

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	db Querier
}

func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// AppendTurn adds one user message and the bot reply to the transcript with
// the given id, creating the transcript on its first turn.
func (s *Store) AppendTurn(ctx context.Context, chatID, userText, botText string) error {
	id := strings.TrimSpace(chatID)
	if id == "" {
		return oops.In("transcript").Errorf("chat id is required")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return oops.In("transcript").With("chat_id", id).Wrapf(err, "begin")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(
		ctx,
		`INSERT INTO "ChatTranscript" (id, title, "createdAt", "updatedAt")
		 VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (id) DO UPDATE SET "updatedAt" = NOW()`,
		id,
		deriveTitle(userText),
	); err != nil {
		return oops.In("transcript").With("chat_id", id).Wrapf(err, "upsert transcript")
	}

	if _, err := tx.Exec(
		ctx,
		`INSERT INTO "ChatTranscriptMessage" (id, "transcriptId", role, content, "createdAt")
		 VALUES ($1, $2, $3, $4, NOW()), ($5, $2, $6, $7, NOW())`,
		uuid.NewString(),
		id,
		RoleUser,
		userText,
		uuid.NewString(),
		RoleBot,
		botText,
	); err != nil {
		return oops.In("transcript").With("chat_id", id).Wrapf(err, "insert messages")
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.In("transcript").With("chat_id", id).Wrapf(err, "commit")
	}
	return nil
}

// ListRecent returns the most recently updated transcripts, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.Query(
		ctx,
		`SELECT
			t.id,
			t.title,
			t."updatedAt",
			(
				SELECT COUNT(*)::int
				FROM "ChatTranscriptMessage" m
				WHERE m."transcriptId" = t.id
			) AS message_count,
			(
				SELECT m.content
				FROM "ChatTranscriptMessage" m
				WHERE m."transcriptId" = t.id
				ORDER BY m.seq DESC
				OFFSET 1 LIMIT 1
			) AS prior_content,
			(
				SELECT m.content
				FROM "ChatTranscriptMessage" m
				WHERE m."transcriptId" = t.id
				ORDER BY m.seq DESC
				LIMIT 1
			) AS last_content
		 FROM "ChatTranscript" t
		 ORDER BY t."updatedAt" DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, oops.In("transcript").Wrapf(err, "list transcripts")
	}
	defer rows.Close()

	items := make([]Summary, 0, limit)
	for rows.Next() {
		var (
			item         Summary
			priorContent *string
			lastContent  *string
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.UpdatedAt, &item.MessageCount, &priorContent, &lastContent); err != nil {
			return nil, oops.In("transcript").Wrapf(err, "scan transcript")
		}
		item.UpdatedAt = item.UpdatedAt.UTC()
		item.Preview = buildPreview(priorContent, lastContent)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("transcript").Wrapf(err, "list transcripts")
	}
	return items, nil
}

func (s *Store) Messages(ctx context.Context, chatID string) ([]Message, error) {
	id := strings.TrimSpace(chatID)

	var exists bool
	if err := s.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM "ChatTranscript" WHERE id = $1)`,
		id,
	).Scan(&exists); err != nil {
		return nil, oops.In("transcript").With("chat_id", id).Wrapf(err, "lookup transcript")
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.db.Query(
		ctx,
		`SELECT id, role, content, "createdAt"
		 FROM "ChatTranscriptMessage"
		 WHERE "transcriptId" = $1
		 ORDER BY seq ASC`,
		id,
	)
	if err != nil {
		return nil, oops.In("transcript").With("chat_id", id).Wrapf(err, "load messages")
	}
	defer rows.Close()

	messages := make([]Message, 0, 16)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, oops.In("transcript").With("chat_id", id).Wrapf(err, "scan message")
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("transcript").With("chat_id", id).Wrapf(err, "load messages")
	}
	return messages, nil
}

// Delete removes the transcript and, through the foreign key, its messages.
func (s *Store) Delete(ctx context.Context, chatID string) error {
	id := strings.TrimSpace(chatID)
	tag, err := s.db.Exec(ctx, `DELETE FROM "ChatTranscript" WHERE id = $1`, id)
	if err != nil {
		return oops.In("transcript").With("chat_id", id).Wrapf(err, "delete transcript")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func deriveTitle(firstUserInput string) string {
	normalized := strings.Join(strings.Fields(firstUserInput), " ")
	if normalized == "" {
		return "New conversation"
	}
	return truncateRunes(normalized, titleRuneLimit)
}

func buildPreview(prior, last *string) string {
	parts := make([]string, 0, 2)
	for _, content := range []*string{prior, last} {
		if content == nil {
			continue
		}
		normalized := strings.Join(strings.Fields(*content), " ")
		if normalized == "" {
			continue
		}
		parts = append(parts, truncateRunes(normalized, previewRuneLimit))
	}
	if len(parts) == 0 {
		return "No messages yet"
	}
	return strings.Join(parts, " | ")
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit]) + "..."
}
