package transcript

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS "ChatTranscript" (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		"createdAt" TIMESTAMP(3) NOT NULL DEFAULT NOW(),
		"updatedAt" TIMESTAMP(3) NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS "ChatTranscriptMessage" (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		"transcriptId" TEXT NOT NULL REFERENCES "ChatTranscript"(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		"createdAt" TIMESTAMP(3) NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS "ChatTranscript_updatedAt_idx" ON "ChatTranscript" ("updatedAt" DESC)`,
	`CREATE INDEX IF NOT EXISTS "ChatTranscriptMessage_transcriptId_seq_idx" ON "ChatTranscriptMessage" ("transcriptId", seq)`,
}

var requiredColumns = []struct {
	table  string
	column string
}{
	{table: "ChatTranscript", column: "title"},
	{table: "ChatTranscript", column: "updatedAt"},
	{table: "ChatTranscriptMessage", column: "transcriptId"},
	{table: "ChatTranscriptMessage", column: "seq"},
}

// EnsureSchema creates the transcript tables when missing and then checks
// that the columns the store relies on are present.
func EnsureSchema(ctx context.Context, db Querier) error {
	if db == nil {
		return fmt.Errorf("database pool is nil")
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return oops.In("transcript").Wrapf(err, "apply schema")
		}
	}

	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, db, item.table, item.column)
		if err != nil {
			return oops.In("transcript").Wrapf(err, "failed checking schema for %s.%s", item.table, item.column)
		}
		if !ok {
			return oops.In("transcript").Errorf("required column %s.%s is missing", item.table, item.column)
		}
	}
	return nil
}

func columnExists(ctx context.Context, db Querier, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := db.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
