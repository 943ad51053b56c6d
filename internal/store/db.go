package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/quizarena/backend/internal/progression"
)

// statsRow persists a user's gamification aggregate as an opaque JSON blob.
type statsRow struct {
	UserID    string `gorm:"primaryKey;size:64"`
	Payload   string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (statsRow) TableName() string { return "gamification_stats" }

// DB is the database-backed store implementation.
type DB struct {
	db *gorm.DB
}

// OpenDB opens (and migrates) a sqlite-backed store at path.
func OpenDB(path string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&SessionRecord{}, &CompletionRecord{}, &Profile{}, &statsRow{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &DB{db: db}, nil
}

// UpsertSession replaces any row sharing the composite key. Heartbeats may
// arrive out of order; the newest write simply wins.
func (s *DB) UpsertSession(ctx context.Context, rec *SessionRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "type"}, {Name: "start_time"},
		},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

func (s *DB) AppendCompletion(ctx context.Context, rec *CompletionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("appending completion: %w", err)
	}
	return nil
}

// AddUserXP adds amount inside a transaction so concurrent awards sum
// correctly, then rederives the stored level from the new total.
func (s *DB) AddUserXP(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return progression.ErrInvalidAmount
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Profile{}).Where("user_id = ?", userID).
			Updates(map[string]any{
				"total_xp":   gorm.Expr("total_xp + ?", amount),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&Profile{
				UserID:    userID,
				TotalXP:   amount,
				UpdatedAt: time.Now().UTC(),
			}).Error; err != nil {
				return err
			}
		}
		var p Profile
		if err := tx.First(&p, "user_id = ?", userID).Error; err != nil {
			return err
		}
		return tx.Model(&Profile{}).Where("user_id = ?", userID).
			Update("level", progression.LevelFor(p.TotalXP).Level).Error
	})
	if err != nil {
		return fmt.Errorf("adding user xp: %w", err)
	}
	return nil
}

func (s *DB) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := s.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Profile{UserID: userID, Level: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	return &p, nil
}

func (s *DB) LoadStats(ctx context.Context, userID string) (json.RawMessage, error) {
	var row statsRow
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading stats: %w", err)
	}
	return json.RawMessage(row.Payload), nil
}

func (s *DB) SaveStats(ctx context.Context, userID string, data json.RawMessage) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&statsRow{
		UserID:    userID,
		Payload:   string(data),
		UpdatedAt: time.Now().UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("saving stats: %w", err)
	}
	return nil
}

func (s *DB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
