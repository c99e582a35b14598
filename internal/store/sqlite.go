package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"emailai/internal/model"
	"emailai/pkg/metrics"
	"emailai/pkg/otel"
)

const sqliteSystem = "sqlite"

// sqliteTimeLayout 定宽，保证 ORDER BY received_at 与时间顺序一致
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore 本地模式与测试使用的 EmailStore 实现
type SQLiteStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

type emailRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Subject     string         `db:"subject"`
	SenderName  string         `db:"sender_name"`
	SenderEmail string         `db:"sender_email"`
	Content     string         `db:"content"`
	ReceivedAt  string         `db:"received_at"`
	Sentiment   string         `db:"sentiment"`
	Urgency     string         `db:"urgency"`
	Category    string         `db:"category"`
	Status      string         `db:"status"`
	Contacts    string         `db:"contacts"`
	Requests    string         `db:"requests"`
	AIDraft     sql.NullString `db:"ai_draft"`
	UpdatedAt   string         `db:"updated_at"`
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs pending migrations.
// ":memory:" 只允许单连接，否则每个连接各有一份库
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping 就绪检查
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate 检查当前 schema 版本并依次执行未应用的迁移，可重复调用
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	currentVersion := 0

	var tableCount int
	err := s.db.GetContext(ctx, &tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.GetContext(ctx, &currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range sqliteMigrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		s.logger.Info("Applied sqlite migration", zap.Int("version", m.version))
	}
	return nil
}

// List returns all emails of ownerID, newest first.
func (s *SQLiteStore) List(ctx context.Context, ownerID string) ([]model.Email, error) {
	const query = `SELECT * FROM emails WHERE user_id = ? ORDER BY received_at DESC`

	start := time.Now()
	var rows []emailRow
	err := otel.WithDBSpan(ctx, sqliteSystem, "select", query, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &rows, query, ownerID)
	})
	metrics.RecordDBQueryDuration("select", "emails", time.Since(start))
	if err != nil {
		s.logger.Error("Failed to list emails", zap.String("user_id", ownerID), zap.Error(err))
		return nil, classify("list emails", err)
	}

	emails := make([]model.Email, 0, len(rows))
	for _, r := range rows {
		e, err := r.toModel()
		if err != nil {
			return nil, classify("list emails", err)
		}
		emails = append(emails, e)
	}
	return emails, nil
}

// Patch 更新 (id, owner) 对应的行并返回更新后的行
func (s *SQLiteStore) Patch(ctx context.Context, id, ownerID string, patch model.EmailPatch) (model.Email, error) {
	const query = `
		UPDATE emails
		SET status = COALESCE(?, status),
		    ai_draft = CASE WHEN ? THEN ? ELSE ai_draft END,
		    updated_at = ?
		WHERE id = ? AND user_id = ?`

	var status *string
	if patch.Status != nil {
		v := string(*patch.Status)
		status = &v
	}

	start := time.Now()
	var updated emailRow
	err := otel.WithDBSpan(ctx, sqliteSystem, "update", query, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck

		res, err := tx.ExecContext(ctx, query,
			status, patch.SetAIDraft, patch.AIDraft, formatTime(time.Now()), id, ownerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.ErrNotFound
		}

		if err := tx.GetContext(ctx, &updated,
			`SELECT * FROM emails WHERE id = ? AND user_id = ?`, id, ownerID); err != nil {
			return err
		}
		return tx.Commit()
	})
	metrics.RecordDBQueryDuration("update", "emails", time.Since(start))
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Error("Failed to patch email",
				zap.String("email_id", id),
				zap.String("user_id", ownerID),
				zap.Error(err),
			)
		}
		return model.Email{}, classify("patch email", err)
	}

	e, err := updated.toModel()
	if err != nil {
		return model.Email{}, classify("patch email", err)
	}
	return e, nil
}

// Insert 写入邮件（seed 使用），id 为空时生成 UUID，已存在的 id 跳过
func (s *SQLiteStore) Insert(ctx context.Context, ownerID string, emails []model.Email) error {
	if len(emails) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `
		INSERT OR IGNORE INTO emails (
			id, user_id, subject, sender_name, sender_email, content, received_at,
			sentiment, urgency, category, status, contacts, requests, ai_draft, updated_at
		) VALUES (
			:id, :user_id, :subject, :sender_name, :sender_email, :content, :received_at,
			:sentiment, :urgency, :category, :status, :contacts, :requests, :ai_draft, :updated_at
		)`

	for _, e := range emails {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		row, err := fromModel(ownerID, e)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("inserting email %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

func (r emailRow) toModel() (model.Email, error) {
	receivedAt, err := time.Parse(time.RFC3339Nano, r.ReceivedAt)
	if err != nil {
		return model.Email{}, fmt.Errorf("parsing received_at of %s: %w", r.ID, err)
	}

	e := model.Email{
		ID:         r.ID,
		Subject:    r.Subject,
		Sender:     model.Sender{Name: r.SenderName, Email: r.SenderEmail},
		Content:    r.Content,
		ReceivedAt: receivedAt,
		Sentiment:  model.Sentiment(r.Sentiment),
		Urgency:    model.Urgency(r.Urgency),
		Category:   model.Category(r.Category),
		Status:     model.Status(r.Status),
	}
	if err := json.Unmarshal([]byte(r.Contacts), &e.Contacts); err != nil {
		return model.Email{}, fmt.Errorf("unmarshaling contacts of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Requests), &e.Requests); err != nil {
		return model.Email{}, fmt.Errorf("unmarshaling requests of %s: %w", r.ID, err)
	}
	if r.AIDraft.Valid {
		d := r.AIDraft.String
		e.AIDraft = &d
	}
	return normalize(e)
}

func fromModel(ownerID string, e model.Email) (emailRow, error) {
	if err := e.Validate(); err != nil {
		return emailRow{}, err
	}

	contacts, err := json.Marshal(nonNil(e.Contacts))
	if err != nil {
		return emailRow{}, fmt.Errorf("marshaling contacts: %w", err)
	}
	requests, err := json.Marshal(nonNil(e.Requests))
	if err != nil {
		return emailRow{}, fmt.Errorf("marshaling requests: %w", err)
	}

	row := emailRow{
		ID:          e.ID,
		UserID:      ownerID,
		Subject:     e.Subject,
		SenderName:  e.Sender.Name,
		SenderEmail: e.Sender.Email,
		Content:     e.Content,
		ReceivedAt:  formatTime(e.ReceivedAt),
		Sentiment:   string(e.Sentiment),
		Urgency:     string(e.Urgency),
		Category:    string(e.Category),
		Status:      string(e.Status),
		Contacts:    string(contacts),
		Requests:    string(requests),
		UpdatedAt:   formatTime(time.Now()),
	}
	if e.AIDraft != nil {
		row.AIDraft = sql.NullString{String: *e.AIDraft, Valid: true}
	}
	return row, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
