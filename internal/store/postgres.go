package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontract "emailai/contracts/mq"
	"emailai/internal/model"
	"emailai/pkg/metrics"
	"emailai/pkg/mq"
	"emailai/pkg/otel"
	"emailai/pkg/outbox"
	"emailai/pkg/trace"
)

const pgSystem = "postgresql"

const emailColumns = `
	id, subject, sender_name, sender_email, content, received_at,
	sentiment, urgency, category, status, contacts, requests, ai_draft
`

// PostgresStore emails 表的 pgx 实现；Patch 同事务写入 email.updated outbox 事件
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

func NewPostgresStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger, now: time.Now}
}

// Ping 就绪检查
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// List returns all emails of ownerID, newest first.
func (s *PostgresStore) List(ctx context.Context, ownerID string) ([]model.Email, error) {
	query := `SELECT ` + emailColumns + `
		FROM emails
		WHERE user_id = $1
		ORDER BY received_at DESC
	`

	start := time.Now()
	var emails []model.Email
	err := otel.WithDBSpan(ctx, pgSystem, "select", query, func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, query, ownerID)
		if err != nil {
			return err
		}
		emails, err = pgx.CollectRows(rows, scanPgEmail)
		return err
	})
	metrics.RecordDBQueryDuration("select", "emails", time.Since(start))

	if err != nil {
		s.logger.Error("Failed to list emails",
			zap.String("user_id", ownerID),
			zap.String("error_kind", errorKind(err)),
			zap.Error(err),
		)
		return nil, classify("list emails", err)
	}
	if emails == nil {
		emails = []model.Email{}
	}
	return emails, nil
}

// Patch 更新 (id, owner) 对应的行并返回更新后的行；没有匹配行时返回 ErrNotFound
func (s *PostgresStore) Patch(ctx context.Context, id, ownerID string, patch model.EmailPatch) (model.Email, error) {
	var status *string
	if patch.Status != nil {
		v := string(*patch.Status)
		status = &v
	}

	query := `
		UPDATE emails
		SET status = COALESCE($3::text, status),
		    ai_draft = CASE WHEN $4::boolean THEN $5::text ELSE ai_draft END,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + emailColumns

	start := time.Now()
	var updated model.Email
	err := otel.WithDBSpan(ctx, pgSystem, "update", query, func(ctx context.Context) error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		rows, err := tx.Query(ctx, query, id, ownerID, status, patch.SetAIDraft, patch.AIDraft)
		if err != nil {
			return err
		}
		updated, err = pgx.CollectExactlyOneRow(rows, scanPgEmail)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		if err != nil {
			return err
		}

		payload := s.updatedEvent(ctx, updated, ownerID, patch)
		if err := outbox.InsertEventInTx(ctx, tx, "email", updated.ID, mq.RoutingKeyEmailUpdated, payload); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	metrics.RecordDBQueryDuration("update", "emails", time.Since(start))

	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Error("Failed to patch email",
				zap.String("email_id", id),
				zap.String("user_id", ownerID),
				zap.String("error_kind", errorKind(err)),
				zap.Error(err),
			)
		}
		return model.Email{}, classify("patch email", err)
	}

	s.logger.Info("Email patched",
		zap.String("email_id", id),
		zap.String("user_id", ownerID),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *PostgresStore) updatedEvent(ctx context.Context, e model.Email, ownerID string, patch model.EmailPatch) mqcontract.EmailUpdatedPayload {
	return mqcontract.EmailUpdatedPayload{
		EventID:        uuid.NewString(),
		EmailID:        e.ID,
		UserID:         ownerID,
		Status:         string(e.Status),
		AIDraftChanged: patch.SetAIDraft,
		UpdatedAt:      s.now().UTC(),
		TraceID:        trace.FromContext(ctx),
	}
}

// Insert 批量写入（seed 使用），id 为空时生成 UUID
func (s *PostgresStore) Insert(ctx context.Context, ownerID string, emails []model.Email) error {
	query := `
		INSERT INTO emails (id, user_id, subject, sender_name, sender_email, content, received_at,
		                    sentiment, urgency, category, status, contacts, requests, ai_draft)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, e := range emails {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		batch.Queue(query,
			e.ID, ownerID, e.Subject, e.Sender.Name, e.Sender.Email, e.Content, e.ReceivedAt,
			string(e.Sentiment), string(e.Urgency), string(e.Category), string(e.Status),
			e.Contacts, e.Requests, e.AIDraft,
		)
	}

	err := otel.WithDBSpan(ctx, pgSystem, "insert", query, func(ctx context.Context) error {
		return s.db.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return classify("insert emails", err)
	}
	return nil
}

func scanPgEmail(row pgx.CollectableRow) (model.Email, error) {
	var e model.Email
	var sentiment, urgency, category, status string
	err := row.Scan(
		&e.ID,
		&e.Subject,
		&e.Sender.Name,
		&e.Sender.Email,
		&e.Content,
		&e.ReceivedAt,
		&sentiment,
		&urgency,
		&category,
		&status,
		&e.Contacts,
		&e.Requests,
		&e.AIDraft,
	)
	if err != nil {
		return model.Email{}, err
	}
	e.Sentiment = model.Sentiment(sentiment)
	e.Urgency = model.Urgency(urgency)
	e.Category = model.Category(category)
	e.Status = model.Status(status)
	return normalize(e)
}
