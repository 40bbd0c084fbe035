package specification

import "gorm.io/gorm"

type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type ByReport struct {
	Report string
}

func (s ByReport) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("report = ?", s.Report)
}
