package models

import "time"

type DeliveryStatus string

const (
	DeliveryRunning DeliveryStatus = "running"
	DeliveryDone    DeliveryStatus = "done"
	DeliveryFailed  DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string {
	return string(s)
}

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryRunning, DeliveryDone, DeliveryFailed:
		return true
	default:
		return false
	}
}

// Delivery is one pipeline run as recorded in the journal.
type Delivery struct {
	ID          string          `json:"id"           gorm:"primaryKey;size:36"`
	ChatID      int64           `json:"chat_id"      gorm:"not null;default:0;index"`
	Title       string          `json:"title"        gorm:"not null;default:''"`
	Locator     string          `json:"locator"      gorm:"not null"`
	ContentHash string          `json:"content_hash" gorm:"not null;default:'';index"`
	Status      DeliveryStatus  `json:"status"       gorm:"not null;default:'running';index"`
	Detail      string          `json:"detail"       gorm:"not null;default:''"`
	Submitted   bool            `json:"submitted"    gorm:"not null;default:false"` // registered with the download manager
	Seeded      bool            `json:"seeded"       gorm:"not null;default:false"`
	Transcoded  int             `json:"transcoded"   gorm:"not null;default:0"`
	Original    int             `json:"original"     gorm:"not null;default:0"`
	Failed      int             `json:"failed"       gorm:"not null;default:0"`
	Removed     bool            `json:"removed"      gorm:"not null;default:false"`
	Files       []DeliveredFile `json:"files"        gorm:"foreignKey:DeliveryID"`
	CreatedAt   time.Time       `json:"created_at"   gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at"   gorm:"autoUpdateTime"`
}

type DeliveredFile struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	DeliveryID   string    `json:"delivery_id"   gorm:"not null;size:36;index;constraint:OnDelete:CASCADE;"`
	RelativeName string    `json:"relative_name" gorm:"not null"`
	Variant      string    `json:"variant"       gorm:"not null"`
	SizeBytes    int64     `json:"size_bytes"    gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"    gorm:"autoCreateTime"`
}
