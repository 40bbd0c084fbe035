package model

import (
	"time"

	"github.com/google/uuid"
)

type Feedback struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId string    `gorm:"type:varchar(64);index"`
	Question  string    `gorm:"type:text"`
	Answer    string    `gorm:"type:text"`
	Rating    int       `gorm:"not null"` // +1 or -1
	Comment   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Feedback) TableName() string {
	return "feedback"
}
