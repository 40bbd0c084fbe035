package entity

import (
	"time"

	"github.com/google/uuid"
)

type ReportChunk struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Report    string
	Page      int
	Content   string
	Embedding []float32
	CreatedAt time.Time
}
