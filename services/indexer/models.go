package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one committed event in the journal.
type EventRecord struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Height     uint64            `gorm:"index"`
	Seq        uint64            `gorm:"uniqueIndex"`
	Type       string            `gorm:"index"`
	Target     string            `gorm:"index"`
	Attributes map[string]string `gorm:"serializer:json"`
	CreatedAt  time.Time
}

// BeforeCreate assigns a random id to new rows.
func (r *EventRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// AutoMigrate creates the journal schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
