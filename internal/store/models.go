package store

import "time"

// Question is the pool row a battle draws from. Options are a JSON
// column; CorrectIndex points into them.
type Question struct {
	ID           uint     `gorm:"primaryKey"`
	Subject      string   `gorm:"index;not null"`
	Text         string   `gorm:"not null"`
	Options      []string `gorm:"serializer:json;not null"`
	CorrectIndex int      `gorm:"not null"`
	TimeLimitSec int      `gorm:"not null;default:15"`
	CreatedAt    time.Time
}

// BattleRecord is one finished (or forfeited) battle.
type BattleRecord struct {
	ID           string `gorm:"primaryKey"` // battle uuid
	Subject      string `gorm:"index"`
	WinnerUserID string // empty on tie
	IsTie        bool
	Forfeit      bool
	DurationSec  int
	CreatedAt    time.Time
	Participants []BattleParticipant `gorm:"foreignKey:BattleID"`
}

// BattleParticipant is one player's final line in a battle.
type BattleParticipant struct {
	ID          uint   `gorm:"primaryKey"`
	BattleID    string `gorm:"index;not null"`
	UserID      string `gorm:"index;not null"`
	DisplayName string
	Score       int
}

// SessionToken maps an opaque bearer token to an identity. Issued by
// the account service; this subsystem only reads it.
type SessionToken struct {
	Token       string `gorm:"primaryKey"`
	UserID      string `gorm:"index;not null"`
	DisplayName string
	ExpiresAt   time.Time
}
