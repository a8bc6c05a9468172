package backup

import (
	"time"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/production"
)

// User summarises a participant connected when the snapshot was taken.
type User struct {
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Payload is the recoverable part of the production state.
type Payload struct {
	Notes      []production.Note `json:"notes"`
	Tags       []production.Tag  `json:"tags"`
	Users      []User            `json:"users"`
	ExportedAt time.Time         `json:"exportedAt"`
}

// Snapshot stores one timestamped payload.
type Snapshot struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_snapshots_created_at"`
	Reason           string `gorm:"column:reason;size:32;not null;default:''"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Snapshot) TableName() string {
	return "snapshots"
}
