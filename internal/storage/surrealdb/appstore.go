// Package surrealdb implements the per-user cloud document store on SurrealDB.
// Each user has one record in the app_data table holding the JSON-encoded
// data set and a version that increments on every write.
package surrealdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/models"
)

const (
	table = "app_data"

	// DefaultPollInterval is how often a subscription checks for new versions.
	DefaultPollInterval = 2 * time.Second
)

// Store implements interfaces.RemoteStore using SurrealDB.
type Store struct {
	db           *surrealdb.DB
	logger       *common.Logger
	pollInterval time.Duration
}

// Connect opens a SurrealDB connection described by cfg and makes sure the
// app_data table exists.
func Connect(ctx context.Context, logger *common.Logger, cfg common.RemoteConfig) (*Store, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	store, err := NewStore(ctx, db, logger, cfg.GetPollInterval())
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("Remote store connected")
	return store, nil
}

// NewStore wraps an already selected SurrealDB connection.
func NewStore(ctx context.Context, db *surrealdb.DB, logger *common.Logger, pollInterval time.Duration) (*Store, error) {
	sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
	if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
		return nil, fmt.Errorf("failed to define table %s: %w", table, err)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Store{db: db, logger: logger, pollInterval: pollInterval}, nil
}

func recordID(userID string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(table, userID)
}

// FetchOnce reads the user's document. It returns nil, nil when the user
// has never written one.
func (s *Store) FetchOnce(ctx context.Context, userID string) (*models.Snapshot, error) {
	if userID == "" {
		return nil, errors.New("remote store: empty user id")
	}
	rec, err := surrealdb.Select[models.UserRecord](ctx, s.db, recordID(userID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cloud data for %s: %w", userID, err)
	}
	if rec == nil || rec.Value == "" {
		return nil, nil
	}
	return decodeSnapshot(rec)
}

// WriteThrough replaces the user's document and returns the new version.
func (s *Store) WriteThrough(ctx context.Context, userID string, data *models.AppData) (int, error) {
	if userID == "" {
		return 0, errors.New("remote store: empty user id")
	}
	if data == nil {
		return 0, errors.New("remote store: nil data")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode cloud data: %w", err)
	}

	sql := `UPSERT $rid SET
		user_id = $user_id,
		subject = $subject,
		key = $key,
		value = $value,
		version = (version ?? 0) + 1,
		datetime = $now
	RETURN AFTER`
	vars := map[string]any{
		"rid":     recordID(userID),
		"user_id": userID,
		"subject": models.SubjectAppData,
		"key":     models.KeyCurrent,
		"value":   string(raw),
		"now":     time.Now().UTC(),
	}

	results, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to write cloud data for %s: %w", userID, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, fmt.Errorf("cloud write for %s returned no record", userID)
	}
	version := (*results)[0].Result[0].Version

	s.logger.Debug().Str("user_id", userID).Int("version", version).Msg("Cloud data written")
	return version, nil
}

// Subscribe polls the user's document and sends every version newer than
// the last one seen, starting with the current one. The channel is closed
// when ctx is cancelled.
func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan models.Snapshot, error) {
	if userID == "" {
		return nil, errors.New("remote store: empty user id")
	}
	first, err := s.FetchOnce(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(chan models.Snapshot, 1)
	go func() {
		defer close(out)

		seen := 0
		send := func(snap *models.Snapshot) bool {
			if snap == nil || snap.Version <= seen {
				return true
			}
			select {
			case out <- *snap:
				seen = snap.Version
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !send(first) {
			return
		}

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap, err := s.FetchOnce(ctx, userID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.Warn().Err(err).Str("user_id", userID).Msg("Cloud poll failed")
					continue
				}
				if !send(snap) {
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the SurrealDB connection.
func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

func decodeSnapshot(rec *models.UserRecord) (*models.Snapshot, error) {
	var data models.AppData
	if err := json.Unmarshal([]byte(rec.Value), &data); err != nil {
		return nil, fmt.Errorf("failed to decode cloud data for %s: %w", rec.UserID, err)
	}
	return &models.Snapshot{Data: data, Version: rec.Version, UpdatedAt: rec.DateTime}, nil
}

func isNotFoundError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}
