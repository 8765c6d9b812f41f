package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"worklog/api/internal/document"
	"worklog/api/internal/logging"
)

const notifyChannel = "app_document_changes"

type PostgresStore struct {
	db          *sql.DB
	databaseURL string
	documentID  string
}

func NewPostgresStore(db *sql.DB, databaseURL, documentID string) *PostgresStore {
	return &PostgresStore{db: db, databaseURL: databaseURL, documentID: documentID}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Read(ctx context.Context) (document.Document, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM app_documents WHERE id=$1`, s.documentID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Document{}, ErrNotFound
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("read document: %w", err)
	}
	return document.Decode(payload)
}

func (s *PostgresStore) Write(ctx context.Context, doc document.Document) error {
	payload, err := doc.Encode()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_documents (id, payload, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`, s.documentID, string(payload))
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// Subscribe listens on a dedicated connection; pooled database/sql connections cannot hold LISTEN.
func (s *PostgresStore) Subscribe(ctx context.Context, onChange func(document.Document)) (*Subscription, error) {
	conn, err := pgx.Connect(ctx, s.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	return StartSubscription(ctx, func(ctx context.Context) error {
		defer conn.Close(context.Background())
		for {
			notification, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("wait for notification: %w", err)
			}
			if notification.Payload != s.documentID {
				continue
			}
			doc, err := s.Read(ctx)
			if err != nil {
				logging.Warn("change feed read failed", "document_id", s.documentID, "error", err)
				continue
			}
			onChange(doc)
		}
	}), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
