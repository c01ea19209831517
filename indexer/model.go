package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stellarcarbon/sorocarbon/core/events"
)

// Retirement is one indexed sink.retired event.
type Retirement struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReceiptID string    `gorm:"size:64;uniqueIndex"`
	Contract  string    `gorm:"index"`
	Funder    string    `gorm:"index"`
	Recipient string    `gorm:"index"`
	Requested int64
	Amount    int64
	ProjectID string `gorm:"index"`
	MemoText  string
	Email     string
	Ledger    uint32 `gorm:"index"`
	CreatedAt time.Time
}

// BeforeCreate assigns a primary key when none is set.
func (r *Retirement) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func fromEvent(evt events.SinkRetired) *Retirement {
	return &Retirement{
		ReceiptID: evt.ReceiptID,
		Contract:  evt.Contract.String(),
		Funder:    evt.Funder.String(),
		Recipient: evt.Recipient.String(),
		Requested: evt.Requested,
		Amount:    evt.Amount,
		ProjectID: evt.ProjectID,
		MemoText:  evt.MemoText,
		Email:     evt.Email,
		Ledger:    evt.Ledger,
	}
}

// AutoMigrate creates or updates the indexer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Retirement{})
}
