package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"iris.app/engage/core/db"
	"iris.app/engage/internal/model"
)

type turnLogStore struct {
	db *db.DB
}

// NewTurnLogStore creates the Postgres-backed cold tier.
func NewTurnLogStore(database *db.DB) TurnLogStore {
	return &turnLogStore{db: database}
}

func (s *turnLogStore) Append(ctx context.Context, conversationID, userID string, turns []model.Turn, decision *model.DecisionRecord) error {
	if len(turns) == 0 {
		return nil
	}

	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, turn := range turns {
			var decisionJSON []byte
			if turn.Sender == model.SenderAssistant && decision != nil {
				raw, err := json.Marshal(decision)
				if err != nil {
					return fmt.Errorf("encoding decision record: %w", err)
				}
				decisionJSON = raw
			}

			_, err := tx.Exec(ctx,
				`INSERT INTO conversation_events
				   (id, conversation_id, user_id, sender, text, language, intent,
				    sentiment, confidence, decision_type, decision, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				turn.ID, conversationID, userID, string(turn.Sender), turn.Text,
				turn.Language, turn.Intent, string(turn.Sentiment), turn.Confidence,
				string(turn.DecisionType), decisionJSON, turn.Timestamp,
			)
			if err != nil {
				return fmt.Errorf("inserting conversation event %d: %w", turn.ID, err)
			}
		}
		return nil
	})
}

func (s *turnLogStore) ListRecent(ctx context.Context, conversationID string, limit int, since time.Time) ([]model.Turn, error) {
	rows, err := s.db.Pool().Query(ctx,
		`SELECT id, sender, text, language, intent, sentiment, confidence, decision_type, created_at
		   FROM conversation_events
		  WHERE conversation_id = $1 AND created_at >= $2
		  ORDER BY created_at DESC, id DESC
		  LIMIT $3`,
		conversationID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying conversation events: %w", err)
	}
	defer rows.Close()

	turns := make([]model.Turn, 0, limit)
	for rows.Next() {
		var (
			t            model.Turn
			sender       string
			sentiment    string
			decisionType string
		)
		if err := rows.Scan(&t.ID, &sender, &t.Text, &t.Language, &t.Intent,
			&sentiment, &t.Confidence, &decisionType, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning conversation event: %w", err)
		}
		t.Sender = model.Sender(sender)
		t.Sentiment = model.Sentiment(sentiment)
		t.DecisionType = model.Type(decisionType)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading conversation events: %w", err)
	}

	// Query returns newest first; callers want chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
