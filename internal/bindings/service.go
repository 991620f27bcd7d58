// Package bindings stores the chat-identity to forum-account mapping.
package bindings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forumgram/forumgram/internal/db"
	"github.com/forumgram/forumgram/internal/db/sqlc"
)

const maxBindRetries = 2

// Service manages bindings with atomic two-way upsert and lookups in both
// directions.
type Service struct {
	pool    *pgxpool.Pool
	queries *sqlc.Queries
	logger  *slog.Logger
}

// NewService creates a binding service.
func NewService(log *slog.Logger, pool *pgxpool.Pool, queries *sqlc.Queries) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:    pool,
		queries: queries,
		logger:  log.With(slog.String("service", "bindings")),
	}
}

// Bind upserts the (externalID, localID) pair. Any existing binding holding
// either key is removed in the same transaction, so the 1:1 invariant holds
// and a rebind is last-write-wins. The write is committed before Bind
// returns.
func (s *Service) Bind(ctx context.Context, externalID, localID string) (Binding, error) {
	externalID = strings.TrimSpace(externalID)
	localID = strings.TrimSpace(localID)
	if externalID == "" || localID == "" {
		return Binding{}, ErrInvalidArgument
	}
	if s.queries == nil || s.pool == nil {
		return Binding{}, errors.New("bindings service not configured")
	}

	// Two concurrent rebinds can race between the delete and the insert;
	// the loser hits a unique violation and replays once against the
	// winner's committed state.
	var lastErr error
	for range maxBindRetries {
		binding, err := s.bindOnce(ctx, externalID, localID)
		if err == nil {
			return binding, nil
		}
		if !db.IsUniqueViolation(err) {
			return Binding{}, err
		}
		lastErr = err
	}
	return Binding{}, fmt.Errorf("bind %s: %w", externalID, lastErr)
}

func (s *Service) bindOnce(ctx context.Context, externalID, localID string) (Binding, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Binding{}, fmt.Errorf("begin bind tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	qtx := s.queries.WithTx(tx)

	displaced := ""
	if prior, err := qtx.GetBindingByExternalID(ctx, externalID); err == nil {
		if prior.LocalID == localID {
			// Same pair already bound; nothing to rewrite.
			if err := tx.Commit(ctx); err != nil {
				return Binding{}, fmt.Errorf("commit bind tx: %w", err)
			}
			return toBinding(prior), nil
		}
		displaced = prior.LocalID
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Binding{}, fmt.Errorf("load prior binding: %w", err)
	}

	if err := qtx.DeleteBindingsForPair(ctx, sqlc.DeleteBindingsForPairParams{
		ExternalID: externalID,
		LocalID:    localID,
	}); err != nil {
		return Binding{}, fmt.Errorf("clear conflicting bindings: %w", err)
	}

	row, err := qtx.CreateBinding(ctx, sqlc.CreateBindingParams{
		ID:         db.NewUUID(),
		ExternalID: externalID,
		LocalID:    localID,
	})
	if err != nil {
		return Binding{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Binding{}, fmt.Errorf("commit bind tx: %w", err)
	}

	if displaced != "" {
		s.logger.Info("binding rewritten",
			slog.String("external_id", externalID),
			slog.String("old_local_id", displaced),
			slog.String("new_local_id", localID),
		)
	}
	return toBinding(row), nil
}

// LookupLocal returns the forum account id bound to the chat identity.
// The second result reports whether a binding exists.
func (s *Service) LookupLocal(ctx context.Context, externalID string) (string, bool, error) {
	if s.queries == nil {
		return "", false, errors.New("bindings service not configured")
	}
	row, err := s.queries.GetBindingByExternalID(ctx, strings.TrimSpace(externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.LocalID, true, nil
}

// LookupExternal is the reverse lookup: forum account id to chat identity.
func (s *Service) LookupExternal(ctx context.Context, localID string) (string, bool, error) {
	if s.queries == nil {
		return "", false, errors.New("bindings service not configured")
	}
	row, err := s.queries.GetBindingByLocalID(ctx, strings.TrimSpace(localID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.ExternalID, true, nil
}

func toBinding(row sqlc.Binding) Binding {
	return Binding{
		ID:         row.ID.String(),
		ExternalID: row.ExternalID,
		LocalID:    row.LocalID,
		CreatedAt:  db.TimeFromPg(row.CreatedAt),
		UpdatedAt:  db.TimeFromPg(row.UpdatedAt),
	}
}
