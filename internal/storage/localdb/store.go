// Package localdb keeps the device-local copy of the application data in
// BadgerHold. It is the fallback when no user is signed in and the first
// thing written on every save.
package localdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/models"
)

// Store implements interfaces.LocalStore using BadgerHold.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
	now    func() time.Time
}

// NewStore opens (creating if needed) the local store at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local store path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("Local store opened")
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

const keySep = "\x00"

func recordKey() string {
	return models.LocalUserID + keySep + models.SubjectAppData + keySep + models.KeyCurrent
}

// Load returns the stored data, or the defaults when nothing has been saved
// yet or the stored document cannot be decoded. Decoding fills in any
// collections missing from older documents.
func (s *Store) Load(_ context.Context) (*models.AppData, error) {
	var rec models.UserRecord
	if err := s.db.Get(recordKey(), &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			s.logger.Debug().Msg("No local data, using defaults")
			d := models.DefaultAppData()
			return &d, nil
		}
		return nil, fmt.Errorf("failed to read local data: %w", err)
	}

	var data models.AppData
	if err := json.Unmarshal([]byte(rec.Value), &data); err != nil {
		s.logger.Warn().Err(err).Int("version", rec.Version).Msg("Local data is unreadable, using defaults")
		d := models.DefaultAppData()
		return &d, nil
	}
	return &data, nil
}

// Save replaces the stored data, bumping the record version.
func (s *Store) Save(_ context.Context, data *models.AppData) error {
	if data == nil {
		return errors.New("local store: nil data")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode local data: %w", err)
	}

	key := recordKey()
	rec := models.UserRecord{
		UserID:   models.LocalUserID,
		Subject:  models.SubjectAppData,
		Key:      models.KeyCurrent,
		Value:    string(raw),
		Version:  1,
		DateTime: s.now(),
	}
	var existing models.UserRecord
	if err := s.db.Get(key, &existing); err == nil {
		rec.Version = existing.Version + 1
	}

	if err := s.db.Upsert(key, rec); err != nil {
		return fmt.Errorf("failed to save local data: %w", err)
	}
	return nil
}

// version returns the version of the stored record, or 0 when none exists.
func (s *Store) version() int {
	var rec models.UserRecord
	if err := s.db.Get(recordKey(), &rec); err != nil {
		return 0
	}
	return rec.Version
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
