package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type recordRow struct {
	Namespace string `gorm:"primaryKey;size:64"`
	ID        string `gorm:"primaryKey;size:255"`
	Data      []byte
	UpdatedAt time.Time
}

func (recordRow) TableName() string {
	return "timeline_records"
}

// PostgresStore implements RecordStore on a shared postgres table.
type PostgresStore struct {
	db        *gorm.DB
	namespace string
}

// OpenPostgres opens a gorm connection and migrates the records table.
func OpenPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&recordRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate records table: %w", err)
	}
	return db, nil
}

// NewPostgresStore scopes db to namespace.
func NewPostgresStore(db *gorm.DB, namespace string) *PostgresStore {
	return &PostgresStore{db: db, namespace: namespace}
}

func (s *PostgresStore) Put(ctx context.Context, record Record) error {
	if record.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidKey)
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	row := recordRow{
		Namespace: s.namespace,
		ID:        record.ID,
		Data:      record.Data,
		UpdatedAt: updatedAt,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", record.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetAll(ctx context.Context) ([]Record, error) {
	var rows []recordRow
	err := s.db.WithContext(ctx).
		Where("namespace = ?", s.namespace).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{ID: row.ID, Data: row.Data, UpdatedAt: row.UpdatedAt})
	}
	return records, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Where("namespace = ? AND id = ?", s.namespace, id).
		Delete(&recordRow{}).Error
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("namespace = ?", s.namespace).
		Delete(&recordRow{}).Error
}
