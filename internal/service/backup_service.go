package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"familyphotos/internal/database"
	"familyphotos/internal/schema"
)

// BackupVersion is written into every export and checked on import
const BackupVersion = "1"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string                     `json:"version"`
	ExportedAt   time.Time                  `json:"exportedAt"`
	DatabaseType string                     `json:"databaseType"`
	Collections  map[string]json.RawMessage `json:"collections"`
}

// ImportStats counts restored and skipped records per model
type ImportStats struct {
	Restored map[string]int
	Skipped  map[string]int
}

// BackupService handles database backup and restore operations over every registered model
type BackupService struct {
	db     *database.DB
	store  *schema.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, store *schema.Store, logger *zap.Logger) *BackupService {
	return &BackupService{db: db, store: store, logger: logger, now: time.Now}
}

// Export writes the backup to outputPath
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	return file.Close()
}

// ExportToWriter writes every record of every model as one JSON document
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup := BackupData{
		Version:      BackupVersion,
		ExportedAt:   s.now().UTC(),
		DatabaseType: s.db.DriverName(),
		Collections:  make(map[string]json.RawMessage),
	}

	for _, res := range s.store.Resources() {
		recs, err := res.ExportRecords(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(recs)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", res.Model().Name, err)
		}
		backup.Collections[res.Model().Name] = raw
		s.logger.Info("exported collection", zap.String("model", res.Model().Name), zap.Int("bytes", len(raw)))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(backup); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Import restores the backup at inputPath
func (s *BackupService) Import(ctx context.Context, inputPath string) (*ImportStats, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()
	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores every record in registration order, keeping ids
// and timestamps. Records that already exist are skipped, so importing into a
// populated database merges.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader) (*ImportStats, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	stats := &ImportStats{Restored: map[string]int{}, Skipped: map[string]int{}}
	for _, res := range s.store.Resources() {
		name := res.Model().Name
		raw, ok := backup.Collections[name]
		if !ok {
			continue
		}
		var recs []json.RawMessage
		if err := json.Unmarshal(raw, &recs); err != nil {
			return stats, fmt.Errorf("failed to decode %s records: %w", name, err)
		}
		for _, rec := range recs {
			err := res.RestoreJSON(ctx, rec)
			switch {
			case errors.Is(err, schema.ErrConflict):
				stats.Skipped[name]++
			case err != nil:
				return stats, fmt.Errorf("failed to restore %s: %w", name, err)
			default:
				stats.Restored[name]++
			}
		}
		s.logger.Info("imported collection",
			zap.String("model", name),
			zap.Int("restored", stats.Restored[name]),
			zap.Int("skipped", stats.Skipped[name]))
	}
	return stats, nil
}

// Clear deletes every record of every model in one transaction, in reverse
// registration order so referencing tables go first
func (s *BackupService) Clear(ctx context.Context) error {
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		return s.clearTables(ctx, tx)
	})
}

func (s *BackupService) clearTables(ctx context.Context, exec database.DBTX) error {
	resources := s.store.Resources()
	for i := len(resources) - 1; i >= 0; i-- {
		table := resources[i].Model().Table
		if _, err := exec.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
		s.logger.Info("cleared table", zap.String("table", table))
	}
	return nil
}
