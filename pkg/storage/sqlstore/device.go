package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	"github.com/pkg/errors"
)

func newDeviceStore(db *sqlx.DB) *deviceStore {
	return &deviceStore{
		db: db,
	}
}

type deviceStore struct {
	db *sqlx.DB
}

type sqlDataDevice struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	AuthKey         string         `db:"auth_key"`
	Claimed         bool           `db:"claimed"`
	OwnerID         sql.NullString `db:"owner_id"`
	ThresholdRed    int            `db:"threshold_red"`
	ThresholdYellow int            `db:"threshold_yellow"`
	ThresholdGreen  int            `db:"threshold_green"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

var sqlParamsDevice = []string{
	"id",
	"name",
	"auth_key",
	"claimed",
	"owner_id",
	"threshold_red",
	"threshold_yellow",
	"threshold_green",
	"created_at",
	"updated_at",
}

var sqlColumnsDevice = strings.Join(sqlParamsDevice, ", ")

func (d *sqlDataDevice) Scan(m *model.Device) error {
	var createdAt, updatedAt = m.CreatedAt, m.UpdatedAt

	if m.CreatedAt.IsZero() {
		createdAt = time.Now().Round(time.Second).UTC()
	}

	if m.UpdatedAt.IsZero() {
		updatedAt = time.Now().Round(time.Second).UTC()
	}

	d.ID = m.ID
	d.Name = m.Name
	d.AuthKey = m.AuthKey
	d.Claimed = m.Claimed
	d.OwnerID = sql.NullString{}
	if m.OwnerID != nil {
		d.OwnerID = sql.NullString{String: *m.OwnerID, Valid: true}
	}
	d.ThresholdRed = m.ThresholdRed
	d.ThresholdYellow = m.ThresholdYellow
	d.ThresholdGreen = m.ThresholdGreen
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt

	return nil
}

func (d *sqlDataDevice) Model() (*model.Device, error) {
	m := &model.Device{
		ID:              d.ID,
		Name:            d.Name,
		AuthKey:         d.AuthKey,
		Claimed:         d.Claimed,
		ThresholdRed:    d.ThresholdRed,
		ThresholdYellow: d.ThresholdYellow,
		ThresholdGreen:  d.ThresholdGreen,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
	if d.OwnerID.Valid {
		owner := d.OwnerID.String
		m.OwnerID = &owner
	}

	return m, nil
}

func (s *deviceStore) FindByID(ctx context.Context, id string) (*model.Device, error) {
	return findDeviceByID(ctx, s.db, id)
}

func (s *deviceStore) FetchAllByOwner(ctx context.Context, ownerID string) ([]model.Device, error) {
	return fetchAllDevicesByOwner(ctx, s.db, ownerID)
}

func (s *deviceStore) Create(ctx context.Context, m *model.Device) error {
	return createDevice(ctx, s.db, m)
}

func (s *deviceStore) Update(ctx context.Context, id string, u model.DeviceUpdate) (*model.Device, error) {
	return updateDevice(ctx, s.db, id, u)
}

func fetchAllDevicesByOwner(ctx context.Context, db *sqlx.DB, ownerID string) ([]model.Device, error) {
	rows := make([]sqlDataDevice, 0)

	query := db.Rebind(fmt.Sprintf("SELECT %s FROM devices WHERE owner_id=? ORDER BY id", sqlColumnsDevice))
	if err := db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, errors.Wrap(err, "failed to fetch devices")
	}

	models := make([]model.Device, 0, len(rows))
	for _, d := range rows {
		m, err := d.Model()
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert SQL data to device model")
		}
		models = append(models, *m)
	}

	return models, nil
}

func findDeviceByID(ctx context.Context, db *sqlx.DB, id string) (*model.Device, error) {
	d := sqlDataDevice{}
	query := db.Rebind(fmt.Sprintf("SELECT %s FROM devices WHERE id=?", sqlColumnsDevice))
	if err := db.GetContext(ctx, &d, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find device")
	}

	return d.Model()
}

func createDevice(ctx context.Context, db *sqlx.DB, m *model.Device) error {
	if _, err := findDeviceByID(ctx, db, m.ID); err == nil {
		return storage.ErrAlreadyExists
	} else if err != storage.ErrNotFound {
		return err
	}

	d := sqlDataDevice{}
	if err := d.Scan(m); err != nil {
		return errors.Wrap(err, "failed to convert device model to SQL data")
	}

	query := fmt.Sprintf(
		"INSERT INTO devices (%s) VALUES (%s)",
		sqlColumnsDevice,
		":"+strings.Join(sqlParamsDevice, ", :"),
	)
	if _, err := db.NamedExecContext(ctx, query, d); err != nil {
		return errors.Wrap(err, "failed to create device")
	}

	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt

	return nil
}

func updateDevice(ctx context.Context, db *sqlx.DB, id string, u model.DeviceUpdate) (*model.Device, error) {
	sets := make([]string, 0)
	args := make([]interface{}, 0)

	add := func(column string, value interface{}) {
		sets = append(sets, column+"=?")
		args = append(args, value)
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Claimed != nil {
		add("claimed", *u.Claimed)
	}
	if u.OwnerID != nil {
		add("owner_id", *u.OwnerID)
	}
	if u.ThresholdRed != nil {
		add("threshold_red", *u.ThresholdRed)
	}
	if u.ThresholdYellow != nil {
		add("threshold_yellow", *u.ThresholdYellow)
	}
	if u.ThresholdGreen != nil {
		add("threshold_green", *u.ThresholdGreen)
	}
	add("updated_at", time.Now().Round(time.Second).UTC())
	args = append(args, id)

	query := db.Rebind(fmt.Sprintf("UPDATE devices SET %s WHERE id=?", strings.Join(sets, ", ")))
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update device")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, storage.ErrNotFound
	}

	return findDeviceByID(ctx, db, id)
}
