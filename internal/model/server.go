package model

import (
	"fmt"
	"time"
)

// ServerStatus is the lifecycle stage of a leased server.
type ServerStatus string

const (
	StatusUnpaid  ServerStatus = "unpaid"
	StatusPaid    ServerStatus = "paid"
	StatusActive  ServerStatus = "active"
	StatusDeleted ServerStatus = "deleted"
)

// Valid reports whether s is one of the known statuses.
func (s ServerStatus) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPaid, StatusActive, StatusDeleted:
		return true
	}
	return false
}

// Server is a leased unit occupying one slot of its rack.
type Server struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	RackID    int64        `gorm:"index;not null" json:"rack_id"`
	Status    ServerStatus `gorm:"size:16;index;not null" json:"status"`
	PaidUntil *time.Time   `json:"paid_until"`
	CreatedAt time.Time    `gorm:"not null;index;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;autoUpdateTime:false" json:"updated_at"`

	// Associations
	Rack *Rack `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

func (s *Server) String() string {
	return fmt.Sprintf("<Server %d>", s.ID)
}
