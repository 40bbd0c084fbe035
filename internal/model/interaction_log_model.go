package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type InteractionLog struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId      string         `gorm:"type:varchar(64);index"`
	Question       string         `gorm:"type:text"`
	Answer         string         `gorm:"type:text"`
	Sources        datatypes.JSON `gorm:"type:jsonb"`
	Cached         bool           `gorm:"default:false"`
	ResponseTimeMs int            `gorm:"default:0"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index"`
}

func (InteractionLog) TableName() string {
	return "interaction_logs"
}
