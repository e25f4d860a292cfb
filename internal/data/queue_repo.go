package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/gitgauge/gitgauge/internal/core"
	"github.com/gitgauge/gitgauge/internal/data/pgxutil"
	"github.com/gitgauge/gitgauge/internal/domain/model"
)

var (
	// ErrMessageNotFound is returned when a queue message is not found.
	ErrMessageNotFound = errors.New("queue message not found")
)

// QueueRepoConfig holds configuration options for the queue repository.
type QueueRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// QueueRepo provides the durable queue operations consumed by the dispatcher:
// read with a visibility timeout, delete, and archive. Visibility is a
// timestamp column; a claimed message simply has its visible_at pushed past
// the timeout, so a crashed consumer's claim expires on its own.
type QueueRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.QueueRepository = (*QueueRepo)(nil)

// NewQueueRepo creates a new QueueRepo instance with the given database connection and configuration.
func NewQueueRepo(db *sql.DB, cfg QueueRepoConfig) *QueueRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &QueueRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

// SQL used by Read to atomically claim visible messages.
const claimMessagesSQL = `
  WITH cte AS (
    SELECT id FROM queue_messages
    WHERE queue = $1 AND visible_at <= $2
    ORDER BY created_at ASC
    LIMIT $3
    FOR UPDATE SKIP LOCKED
  )
  UPDATE queue_messages m
  SET visible_at = $4,
      read_count = m.read_count + 1
  FROM cte
  WHERE m.id = cte.id
  RETURNING m.id, m.queue, m.payload, m.read_count, m.visible_at, m.created_at`

// Read claims up to MaxMessages visible messages, hiding each until the
// visibility timeout lapses. Claimed messages are released only by Delete or
// Archive; an expired claim makes the message re-deliverable.
func (r *QueueRepo) Read(ctx context.Context, params core.ReadParams) ([]*model.QueueMessage, error) {
	if params.Queue == "" {
		return nil, errors.New("queue name is required")
	}
	maxMessages := params.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 1
	}
	visibility := params.VisibilityTimeout
	if visibility <= 0 {
		return nil, errors.New("visibility timeout must be positive")
	}

	var messages []*model.QueueMessage
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			currentTime := r.timeProvider.Now().UTC()
			rows, qerr := tx.Query(
				ctx,
				claimMessagesSQL,
				params.Queue,
				currentTime,
				maxMessages,
				currentTime.Add(visibility),
			)
			if qerr != nil {
				return fmt.Errorf("claim messages: %w", qerr)
			}
			defer rows.Close()

			for rows.Next() {
				msg, serr := scanQueueMessage(rows)
				if serr != nil {
					return fmt.Errorf("scan message: %w", serr)
				}
				messages = append(messages, msg)
			}
			return rows.Err()
		},
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Delete permanently removes a message from the queue.
func (r *QueueRepo) Delete(ctx context.Context, queue, msgID string) error {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM queue_messages
		WHERE queue = $1 AND id = $2
	`, queue, msgID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Archive moves a message into queue_messages_archive in one transaction,
// preserving it for inspection instead of silently discarding it.
func (r *QueueRepo) Archive(ctx context.Context, queue, msgID string) error {
	return pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			currentTime := r.timeProvider.Now().UTC()
			res, err := tx.ExecContext(ctx, `
				INSERT INTO queue_messages_archive (id, queue, payload, read_count, created_at, archived_at)
				SELECT id, queue, payload, read_count, created_at, $3
				FROM queue_messages
				WHERE queue = $1 AND id = $2
			`, queue, msgID, currentTime)
			if err != nil {
				return fmt.Errorf("copy message to archive: %w", err)
			}
			rowsAffected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("archive rows affected: %w", err)
			}
			if rowsAffected == 0 {
				return ErrMessageNotFound
			}

			if _, err = tx.ExecContext(ctx, `
				DELETE FROM queue_messages
				WHERE queue = $1 AND id = $2
			`, queue, msgID); err != nil {
				return fmt.Errorf("remove archived message: %w", err)
			}
			return nil
		},
	})
}

// EnqueueInTx inserts a message within an existing pgx transaction and sends
// a wake notification so an idle dispatch loop picks it up promptly.
func EnqueueInTx(ctx context.Context, tx pgx.Tx, queue string, payload []byte) (string, error) {
	if queue == "" {
		return "", errors.New("queue name is required")
	}
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	var msgID string
	if err := tx.QueryRow(ctx, `
		INSERT INTO queue_messages (queue, payload)
		VALUES ($1, $2)
		RETURNING id
	`, queue, payload).Scan(&msgID); err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}

	channel := wakeChannel(queue)
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, channel, msgID); err != nil {
		return "", fmt.Errorf("send wake notification: %w", err)
	}
	return msgID, nil
}

// WaitForWake blocks until a message lands on the queue or ctx ends.
func (r *QueueRepo) WaitForWake(ctx context.Context, queue string) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			_ = cerr
		}
	}()

	channel := wakeChannel(queue)
	quoted := pgx.Identifier{channel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", channel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

func wakeChannel(queue string) string {
	return "queue_wake_" + queue
}

type queueRowScanner interface {
	Scan(dest ...any) error
}

func scanQueueMessage(scanner queueRowScanner) (*model.QueueMessage, error) {
	msg := &model.QueueMessage{}
	var payload []byte
	var visibleAt, createdAt time.Time
	if err := scanner.Scan(
		&msg.ID,
		&msg.Queue,
		&payload,
		&msg.ReadCount,
		&visibleAt,
		&createdAt,
	); err != nil {
		return nil, err
	}
	msg.Payload = cloneJSON(payload)
	msg.VisibleAt = visibleAt.UTC()
	msg.CreatedAt = createdAt.UTC()
	return msg, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}
