package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type ReportChunk struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Report    string          `gorm:"type:varchar(255);not null;index"`
	Page      int             `gorm:"not null"`
	Content   string          `gorm:"type:text"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"` // text-embedding-004 uses 768 dimensions
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (ReportChunk) TableName() string {
	return "report_chunks"
}
