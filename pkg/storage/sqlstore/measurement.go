package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/soilcontrol/pkg/model"
	"github.com/pkg/errors"
)

func newMeasurementStore(db *sqlx.DB) *measurementStore {
	return &measurementStore{
		db: db,
	}
}

type measurementStore struct {
	db *sqlx.DB
}

type sqlDataMeasurement struct {
	ID            string    `db:"id"`
	DeviceID      string    `db:"device_id"`
	MoistureLevel int       `db:"moisture_level"`
	Timestamp     time.Time `db:"measured_at"`
	CreatedAt     time.Time `db:"created_at"`
}

var sqlParamsMeasurement = []string{
	"id",
	"device_id",
	"moisture_level",
	"measured_at",
	"created_at",
}

func (d *sqlDataMeasurement) Scan(m *model.Measurement) {
	d.ID = m.ID
	d.DeviceID = m.DeviceID
	d.MoistureLevel = m.MoistureLevel
	d.Timestamp = m.Timestamp.UTC()
	d.CreatedAt = m.CreatedAt.UTC()
}

func (d *sqlDataMeasurement) Model() model.Measurement {
	return model.Measurement{
		ID:            d.ID,
		DeviceID:      d.DeviceID,
		MoistureLevel: d.MoistureLevel,
		Timestamp:     d.Timestamp.UTC(),
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

func (s *measurementStore) Create(ctx context.Context, m *model.Measurement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	d := sqlDataMeasurement{}
	d.Scan(m)

	query := fmt.Sprintf(
		"INSERT INTO measurements (%s) VALUES (%s)",
		strings.Join(sqlParamsMeasurement, ", "),
		":"+strings.Join(sqlParamsMeasurement, ", :"),
	)
	if _, err := s.db.NamedExecContext(ctx, query, d); err != nil {
		return errors.Wrap(err, "failed to create measurement")
	}

	return nil
}

func (s *measurementStore) FindLatestByDeviceID(ctx context.Context, deviceID string, limit int) ([]model.Measurement, error) {
	rows := make([]sqlDataMeasurement, 0)

	query := fmt.Sprintf(
		"SELECT %s FROM measurements WHERE device_id=? ORDER BY measured_at DESC",
		strings.Join(sqlParamsMeasurement, ", "),
	)
	args := []interface{}{deviceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to fetch measurements")
	}

	models := make([]model.Measurement, 0, len(rows))
	for _, d := range rows {
		models = append(models, d.Model())
	}

	return models, nil
}
