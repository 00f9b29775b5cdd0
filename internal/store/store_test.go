package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"rack-leasing-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_CountServersOwnedBy(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "servers" WHERE rack_id = $1`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := s.CountServersOwnedBy(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CountServersOwnedBy_Error(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "servers"`)).
		WillReturnError(errors.New("connection reset"))

	_, err := s.CountServersOwnedBy(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rack 7")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreateServer(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "servers" ("rack_id","status","paid_until","created_at","updated_at")`)).
		WithArgs(7, "unpaid", Any{}, Any{}, Any{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	now := time.Now().UTC()
	server := &model.Server{RackID: 7, Status: model.StatusUnpaid, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateServer(context.Background(), server))
	assert.Equal(t, int64(42), server.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SaveServer(t *testing.T) {
	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedErr      bool
	}{
		{
			name: "Row updated",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "servers" SET "rack_id"=$1,"status"=$2,"paid_until"=$3,"created_at"=$4,"updated_at"=$5 WHERE "id" = $6`)).
					WithArgs(7, "paid", Any{}, Any{}, Any{}, 12).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "Update fails, transaction rolled back",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "servers"`)).
					WillReturnError(errors.New("deadlock detected"))
				mock.ExpectRollback()
			},
			expectedErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			s := NewGormStore(gormDB)
			tc.mockExpectations(mock)

			now := time.Now().UTC()
			paidUntil := now.Add(time.Hour)
			server := &model.Server{ID: 12, RackID: 7, Status: model.StatusPaid, PaidUntil: &paidUntil, CreatedAt: now, UpdatedAt: now}

			err := s.SaveServer(context.Background(), server)
			if tc.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_TransitionServer(t *testing.T) {
	testCases := []struct {
		name         string
		rowsAffected int64
		expected     bool
	}{
		{name: "Row still in the expected status", rowsAffected: 1, expected: true},
		{name: "Row changed by another writer", rowsAffected: 0, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			s := NewGormStore(gormDB)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "servers" SET "status"=$1,"updated_at"=$2 WHERE id = $3 AND status = $4`)).
				WithArgs("active", Any{}, 12, "paid").
				WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))
			mock.ExpectCommit()

			server := &model.Server{ID: 12, Status: model.StatusActive, UpdatedAt: time.Now().UTC()}
			moved, err := s.TransitionServer(context.Background(), server, model.StatusPaid)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, moved)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_TransitionServer_Error(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "servers"`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.TransitionServer(context.Background(), &model.Server{ID: 12, Status: model.StatusActive}, model.StatusPaid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server 12")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SaveRack(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "racks" SET "slots"=$1,"created_at"=$2,"updated_at"=$3 WHERE "id" = $4`)).
		WithArgs(4, Any{}, Any{}, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	require.NoError(t, s.SaveRack(context.Background(), &model.Rack{ID: 3, Slots: 4, CreatedAt: now, UpdatedAt: now}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetServer_NotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "servers" WHERE "servers"."id" = $1 ORDER BY "servers"."id" LIMIT $2`)).
		WithArgs(99, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "rack_id", "status"}))

	server, err := s.GetServer(context.Background(), 99)
	assert.Nil(t, server)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ListServersByStatus(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "servers" WHERE status IN ($1,$2) ORDER BY id`)).
		WithArgs("paid", "active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "rack_id", "status", "paid_until", "created_at", "updated_at"}).
			AddRow(1, 7, "paid", now.Add(time.Hour), now, now).
			AddRow(2, 7, "active", now.Add(time.Hour), now, now))

	servers, err := s.ListServersByStatus(context.Background(), model.StatusPaid, model.StatusActive)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, model.StatusPaid, servers[0].Status)
	assert.Equal(t, model.StatusActive, servers[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ListServersByStatus_NoStatuses(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	servers, err := s.ListServersByStatus(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, servers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CountServersByRack(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(`SELECT rack_id AS rack_id, COUNT\(\*\) AS servers FROM "servers" GROUP BY`).
		WillReturnRows(sqlmock.NewRows([]string{"rack_id", "servers"}).
			AddRow(1, 2).
			AddRow(3, 5))

	counts, err := s.CountServersByRack(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 2, 3: 5}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
