package model

import (
	"fmt"
	"time"
)

// Rack is a container with a fixed number of server slots.
// Its servers are reached through the store, not through a field on the struct.
type Rack struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Slots     int       `gorm:"not null" json:"slots"`
	CreatedAt time.Time `gorm:"not null;index;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (r *Rack) String() string {
	return fmt.Sprintf("<Rack %d>", r.ID)
}
