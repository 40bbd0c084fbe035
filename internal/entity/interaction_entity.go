package entity

import (
	"time"

	"github.com/google/uuid"
)

type InteractionLog struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId      string
	Question       string
	Answer         string
	Sources        []string
	Cached         bool
	ResponseTimeMs int
	CreatedAt      time.Time
}

type Feedback struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId string
	Question  string
	Answer    string
	Rating    int // +1 or -1
	Comment   string
	CreatedAt time.Time
}
