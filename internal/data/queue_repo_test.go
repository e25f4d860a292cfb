package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgauge/gitgauge/internal/core"
	"github.com/gitgauge/gitgauge/internal/data/pgxutil"
	"github.com/gitgauge/gitgauge/internal/testutil"
)

const testQueueName = "repo_analysis_queue"

// enqueueMessage inserts a message through the production enqueue path and
// returns its id.
func enqueueMessage(t *testing.T, db *sql.DB, queue string, payload []byte) string {
	t.Helper()
	var msgID string
	err := pgxutil.WithPgxTx(context.Background(), db, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			id, err := EnqueueInTx(context.Background(), tx, queue, payload)
			msgID = id
			return err
		},
	})
	require.NoError(t, err)
	return msgID
}

// insertMessage inserts a message with explicit timestamps so tests can
// control visibility and ordering directly.
func insertMessage(t *testing.T, db *sql.DB, queue string, payload []byte, visibleAt, createdAt time.Time) string {
	t.Helper()
	var msgID string
	err := db.QueryRowContext(context.Background(), `
		INSERT INTO queue_messages (queue, payload, visible_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, queue, payload, visibleAt, createdAt).Scan(&msgID)
	require.NoError(t, err)
	return msgID
}

func TestQueueRepo_ReadValidation(t *testing.T) {
	repo := NewQueueRepo(nil, QueueRepoConfig{})

	_, err := repo.Read(context.Background(), core.ReadParams{
		VisibilityTimeout: time.Minute,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue name is required")

	_, err = repo.Read(context.Background(), core.ReadParams{
		Queue: testQueueName,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "visibility timeout must be positive")
}

func TestEnqueueInTx_RequiresQueueName(t *testing.T) {
	_, err := EnqueueInTx(context.Background(), nil, "", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue name is required")
}

func TestQueueRepo_Integration_ReadClaimsAndHides(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		// Start the clock comfortably ahead of the database's now() so a
		// freshly enqueued message is already visible to the repo.
		timeProvider := NewFixedTimeProvider(time.Now().UTC().Add(time.Minute))
		repo := NewQueueRepo(db, QueueRepoConfig{TimeProvider: timeProvider})

		payload := []byte(`{"repository": "octocat/hello-world", "user_id": "user-1"}`)
		msgID := enqueueMessage(t, db, testQueueName, payload)

		params := core.ReadParams{
			Queue:             testQueueName,
			VisibilityTimeout: 30 * time.Second,
			MaxMessages:       1,
		}

		claimed, err := repo.Read(context.Background(), params)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, msgID, claimed[0].ID)
		assert.Equal(t, testQueueName, claimed[0].Queue)
		assert.JSONEq(t, string(payload), string(claimed[0].Payload))
		assert.Equal(t, 1, claimed[0].ReadCount)
		// Postgres stores microseconds, so compare with a tolerance.
		assert.WithinDuration(t, timeProvider.Now().UTC().Add(30*time.Second), claimed[0].VisibleAt, time.Millisecond)

		// Claimed messages stay hidden until the visibility timeout lapses.
		hidden, err := repo.Read(context.Background(), params)
		require.NoError(t, err)
		assert.Empty(t, hidden)

		// Once the claim expires the message is re-deliverable with an
		// incremented read count.
		timeProvider.AddTime(31 * time.Second)
		redelivered, err := repo.Read(context.Background(), params)
		require.NoError(t, err)
		require.Len(t, redelivered, 1)
		assert.Equal(t, msgID, redelivered[0].ID)
		assert.Equal(t, 2, redelivered[0].ReadCount)
	})
}

func TestQueueRepo_Integration_ReadFIFO(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		base := testutil.TestTime()
		timeProvider := NewFixedTimeProvider(base)
		repo := NewQueueRepo(db, QueueRepoConfig{TimeProvider: timeProvider})

		first := insertMessage(t, db, testQueueName, []byte(`{"n": 1}`), base.Add(-3*time.Minute), base.Add(-3*time.Minute))
		second := insertMessage(t, db, testQueueName, []byte(`{"n": 2}`), base.Add(-2*time.Minute), base.Add(-2*time.Minute))
		third := insertMessage(t, db, testQueueName, []byte(`{"n": 3}`), base.Add(-time.Minute), base.Add(-time.Minute))

		claimed, err := repo.Read(context.Background(), core.ReadParams{
			Queue:             testQueueName,
			VisibilityTimeout: time.Minute,
			MaxMessages:       2,
		})
		require.NoError(t, err)
		require.Len(t, claimed, 2)
		assert.Equal(t, first, claimed[0].ID)
		assert.Equal(t, second, claimed[1].ID)

		remaining, err := repo.Read(context.Background(), core.ReadParams{
			Queue:             testQueueName,
			VisibilityTimeout: time.Minute,
		})
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, third, remaining[0].ID)
	})
}

func TestQueueRepo_Integration_ReadEmptyQueue(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewQueueRepo(db, QueueRepoConfig{})

		messages, err := repo.Read(context.Background(), core.ReadParams{
			Queue:             testQueueName,
			VisibilityTimeout: time.Minute,
		})
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}

func TestQueueRepo_Integration_ConcurrentClaim(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		timeProvider := NewFixedTimeProvider(time.Now().UTC().Add(time.Minute))
		repo := NewQueueRepo(db, QueueRepoConfig{TimeProvider: timeProvider})

		msgID := enqueueMessage(t, db, testQueueName, []byte(`{"repository": "octocat/hello-world"}`))

		results := make(chan int, 2)
		for range 2 {
			go func() {
				claimed, err := repo.Read(context.Background(), core.ReadParams{
					Queue:             testQueueName,
					VisibilityTimeout: time.Minute,
				})
				if err != nil {
					results <- -1
					return
				}
				results <- len(claimed)
			}()
		}

		var total int
		for range 2 {
			select {
			case n := <-results:
				require.NotEqual(t, -1, n, "concurrent read failed")
				total += n
			case <-time.After(5 * time.Second):
				t.Fatal("test timed out")
			}
		}

		// SKIP LOCKED guarantees a single claimant per message.
		assert.Equal(t, 1, total)

		claimed, err := repo.Read(context.Background(), core.ReadParams{
			Queue:             testQueueName,
			VisibilityTimeout: time.Minute,
		})
		require.NoError(t, err)
		assert.Empty(t, claimed, "message %s should stay hidden", msgID)
	})
}

func TestQueueRepo_Integration_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewQueueRepo(db, QueueRepoConfig{})

		msgID := enqueueMessage(t, db, testQueueName, []byte(`{"repository": "octocat/hello-world"}`))

		require.ErrorIs(t, repo.Delete(context.Background(), "other_queue", msgID), ErrMessageNotFound)

		require.NoError(t, repo.Delete(context.Background(), testQueueName, msgID))
		require.ErrorIs(t, repo.Delete(context.Background(), testQueueName, msgID), ErrMessageNotFound)
	})
}

func TestQueueRepo_Integration_Archive(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		timeProvider := NewFixedTimeProvider(time.Now().UTC().Add(time.Minute))
		repo := NewQueueRepo(db, QueueRepoConfig{TimeProvider: timeProvider})

		payload := []byte(`{"repository": "octocat/hello-world"}`)
		msgID := enqueueMessage(t, db, testQueueName, payload)

		// Claim once so the archived row carries the read count.
		claimed, err := repo.Read(context.Background(), core.ReadParams{
			Queue:             testQueueName,
			VisibilityTimeout: time.Minute,
		})
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		require.NoError(t, repo.Archive(context.Background(), testQueueName, msgID))

		var (
			archivedPayload json.RawMessage
			readCount       int
			archivedAt      time.Time
		)
		err = db.QueryRowContext(context.Background(), `
			SELECT payload, read_count, archived_at
			FROM queue_messages_archive
			WHERE queue = $1 AND id = $2
		`, testQueueName, msgID).Scan(&archivedPayload, &readCount, &archivedAt)
		require.NoError(t, err)
		assert.JSONEq(t, string(payload), string(archivedPayload))
		assert.Equal(t, 1, readCount)
		assert.WithinDuration(t, timeProvider.Now().UTC(), archivedAt.UTC(), time.Millisecond)

		var remaining int
		err = db.QueryRowContext(context.Background(), `
			SELECT COUNT(*) FROM queue_messages WHERE id = $1
		`, msgID).Scan(&remaining)
		require.NoError(t, err)
		assert.Zero(t, remaining)

		require.ErrorIs(t, repo.Archive(context.Background(), testQueueName, msgID), ErrMessageNotFound)
	})
}

func TestQueueRepo_Integration_EnqueueDefaultsEmptyPayload(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		msgID := enqueueMessage(t, db, testQueueName, nil)

		var payload json.RawMessage
		err := db.QueryRowContext(context.Background(), `
			SELECT payload FROM queue_messages WHERE id = $1
		`, msgID).Scan(&payload)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(payload))
	})
}
