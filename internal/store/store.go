package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rack-leasing-backend/internal/model"
)

// ErrNotFound is returned when a rack or server does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations.
type Store interface {
	CreateRack(ctx context.Context, rack *model.Rack) error
	GetRack(ctx context.Context, id int64) (*model.Rack, error)
	ListRacks(ctx context.Context) ([]model.Rack, error)
	SaveRack(ctx context.Context, rack *model.Rack) error

	CreateServer(ctx context.Context, server *model.Server) error
	GetServer(ctx context.Context, id int64) (*model.Server, error)
	SaveServer(ctx context.Context, server *model.Server) error
	TransitionServer(ctx context.Context, server *model.Server, from model.ServerStatus) (bool, error)
	CountServersOwnedBy(ctx context.Context, rackID int64) (int64, error)
	CountServersByRack(ctx context.Context) (map[int64]int64, error)
	ListServersOwnedBy(ctx context.Context, rackID int64) ([]model.Server, error)
	ListServersByStatus(ctx context.Context, statuses ...model.ServerStatus) ([]model.Server, error)

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateRack inserts a new rack; the ID is filled in on success.
func (s *gormStore) CreateRack(ctx context.Context, rack *model.Rack) error {
	if err := s.db.WithContext(ctx).Create(rack).Error; err != nil {
		return fmt.Errorf("failed to create rack: %w", err)
	}
	return nil
}

func (s *gormStore) GetRack(ctx context.Context, id int64) (*model.Rack, error) {
	var rack model.Rack
	if err := s.db.WithContext(ctx).First(&rack, id).Error; err != nil {
		return nil, notFound(err, "rack", id)
	}
	return &rack, nil
}

func (s *gormStore) ListRacks(ctx context.Context) ([]model.Rack, error) {
	var racks []model.Rack
	if err := s.db.WithContext(ctx).Order("id").Find(&racks).Error; err != nil {
		return nil, fmt.Errorf("failed to list racks: %w", err)
	}
	return racks, nil
}

// SaveRack commits every field of the rack.
func (s *gormStore) SaveRack(ctx context.Context, rack *model.Rack) error {
	if err := s.db.WithContext(ctx).Save(rack).Error; err != nil {
		return fmt.Errorf("failed to save rack %d: %w", rack.ID, err)
	}
	return nil
}

// CreateServer inserts a server row without touching its rack.
func (s *gormStore) CreateServer(ctx context.Context, server *model.Server) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(server).Error; err != nil {
		return fmt.Errorf("failed to create server for rack %d: %w", server.RackID, err)
	}
	return nil
}

func (s *gormStore) GetServer(ctx context.Context, id int64) (*model.Server, error) {
	var server model.Server
	if err := s.db.WithContext(ctx).First(&server, id).Error; err != nil {
		return nil, notFound(err, "server", id)
	}
	return &server, nil
}

// SaveServer commits every field of the server without touching its rack.
func (s *gormStore) SaveServer(ctx context.Context, server *model.Server) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(server).Error; err != nil {
		return fmt.Errorf("failed to save server %d: %w", server.ID, err)
	}
	return nil
}

// TransitionServer writes the server's status and updated_at only if the row is
// still in status from. It reports whether the row was updated.
func (s *gormStore) TransitionServer(ctx context.Context, server *model.Server, from model.ServerStatus) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Server{}).
		Where("id = ?", server.ID).
		Where("status = ?", from).
		Updates(map[string]interface{}{
			"status":     server.Status,
			"updated_at": server.UpdatedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to move server %d from %s: %w", server.ID, from, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CountServersOwnedBy counts every server of a rack, deleted ones included.
func (s *gormStore) CountServersOwnedBy(ctx context.Context, rackID int64) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&model.Server{}).
		Where("rack_id = ?", rackID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count servers of rack %d: %w", rackID, err)
	}
	return count, nil
}

// CountServersByRack aggregates server counts for all racks in one query.
func (s *gormStore) CountServersByRack(ctx context.Context) (map[int64]int64, error) {
	type aggRow struct {
		RackID  int64
		Servers int64
	}
	var rows []aggRow
	if err := s.db.WithContext(ctx).
		Model(&model.Server{}).
		Select("rack_id AS rack_id, COUNT(*) AS servers").
		Group("rack_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate servers: %w", err)
	}

	counts := make(map[int64]int64, len(rows))
	for _, r := range rows {
		counts[r.RackID] = r.Servers
	}
	return counts, nil
}

func (s *gormStore) ListServersOwnedBy(ctx context.Context, rackID int64) ([]model.Server, error) {
	var servers []model.Server
	if err := s.db.WithContext(ctx).
		Where("rack_id = ?", rackID).
		Order("id").
		Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("failed to list servers of rack %d: %w", rackID, err)
	}
	return servers, nil
}

// ListServersByStatus returns the servers whose status is any of the given ones.
func (s *gormStore) ListServersByStatus(ctx context.Context, statuses ...model.ServerStatus) ([]model.Server, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	var servers []model.Server
	if err := s.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id").
		Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("failed to list servers by status: %w", err)
	}
	return servers, nil
}

func notFound(err error, kind string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", kind, id, err)
}
