package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Model struct {
	ID        uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	CreatedAt *time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt *time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type Notification struct {
	Model    `gorm:"embedded"`
	OrderID  int            `json:"order_id" gorm:"index"`
	UserID   int            `json:"user_id" gorm:"index"`
	Type     string         `json:"type"`
	Message  string         `gorm:"type:text" json:"message"`
	Metadata datatypes.JSON `json:"metadata"`
	IsRead   bool           `json:"is_read" gorm:"default:false"`
}

func (Notification) TableName() string { return "notifications" }

type DeviceToken struct {
	Model
	UserID      int    `json:"user_id" gorm:"index"`
	DeviceToken string `json:"device_token" gorm:"uniqueIndex;not null"`
	DeviceType  string `json:"device_type" gorm:"not null"` // mobile, web, ...
	Expired     bool   `json:"expired" gorm:"default:false"`
}

func (DeviceToken) TableName() string { return "device_tokens" }
