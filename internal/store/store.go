// Package store is the postgres side of the battle subsystem: the
// question pool, battle history, and session-token lookup.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Ameer8055/PIQUI-sub000/internal/battle"
)

var (
	ErrTokenNotFound = errors.New("session token not found")
	ErrTokenExpired  = errors.New("session token expired")
)

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects, migrates, and returns the store.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Question{}, &BattleRecord{}, &BattleParticipant{}, &SessionToken{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, log: log.Named("store")}, nil
}

// SelectQuestions draws n random questions for a subject. The order is
// decided here and never again; the battle serves them as returned.
func (s *Store) SelectQuestions(ctx context.Context, subject string, n int) ([]battle.Question, error) {
	var rows []Question
	err := s.db.WithContext(ctx).
		Where("subject = ?", subject).
		Order("random()").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select questions for %q: %w", subject, err)
	}

	qs := make([]battle.Question, 0, len(rows))
	for _, r := range rows {
		qs = append(qs, battle.Question{
			ID:           r.ID,
			Text:         r.Text,
			Options:      r.Options,
			CorrectIndex: r.CorrectIndex,
			TimeLimit:    time.Duration(r.TimeLimitSec) * time.Second,
		})
	}
	return qs, nil
}

// RecordBattleResult writes the battle row and both participant rows in
// one transaction.
func (s *Store) RecordBattleResult(ctx context.Context, sum battle.Summary) error {
	rec := BattleRecord{
		ID:           sum.BattleID,
		Subject:      sum.Subject,
		WinnerUserID: sum.WinnerUserID,
		IsTie:        sum.IsTie,
		Forfeit:      sum.Forfeit,
		DurationSec:  int(sum.Duration / time.Second),
	}
	for _, p := range sum.Players {
		rec.Participants = append(rec.Participants, BattleParticipant{
			BattleID:    sum.BattleID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
		})
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record battle %s: %w", sum.BattleID, err)
	}
	return nil
}

// ListUserBattles returns a user's most recent battles, newest first.
// Read side only; consumed by the history endpoint.
func (s *Store) ListUserBattles(ctx context.Context, userID string, limit int) ([]BattleRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var recs []BattleRecord
	err := s.db.WithContext(ctx).
		Joins("JOIN battle_participants ON battle_participants.battle_id = battle_records.id").
		Where("battle_participants.user_id = ?", userID).
		Order("battle_records.created_at DESC").
		Limit(limit).
		Preload("Participants").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list battles for %s: %w", userID, err)
	}
	return recs, nil
}

// ResolveToken backs the auth collaborator.
func (s *Store) ResolveToken(ctx context.Context, token string) (userID, displayName string, err error) {
	var row SessionToken
	err = s.db.WithContext(ctx).First(&row, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", ErrTokenNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve token: %w", err)
	}
	if !row.ExpiresAt.IsZero() && row.ExpiresAt.Before(time.Now()) {
		return "", "", ErrTokenExpired
	}
	return row.UserID, row.DisplayName, nil
}
