package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"presence/internal/center/models"
	"presence/internal/platform/postgres"
	id "presence/pkg/domain"
	"presence/pkg/platform/sentinel"
	txcontext "presence/pkg/platform/tx"
)

// PostgresStore persists centers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// services is selected as text so pq.Array can parse the array literal
// regardless of the driver's wire format.
const centerColumns = `id, name, description, address, city, region, latitude, longitude,
	tolerance_meters, contact, opening_hours, services::text, is_active, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.Center) error {
	contact, hours, err := marshalDetails(c)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO centers (id, name, description, address, city, region, latitude, longitude,
			tolerance_meters, contact, opening_hours, services, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID), c.Name, c.Description, c.Address, c.City, c.Region,
		c.Latitude, c.Longitude, c.ToleranceMeters, contact, hours,
		pq.Array(c.Services), c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert center: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Center) error {
	contact, hours, err := marshalDetails(c)
	if err != nil {
		return err
	}
	query := `
		UPDATE centers SET name = $2, description = $3, address = $4, city = $5, region = $6,
			latitude = $7, longitude = $8, tolerance_meters = $9, contact = $10, opening_hours = $11,
			services = $12, is_active = $13, updated_at = $14
		WHERE id = $1
	`
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID), c.Name, c.Description, c.Address, c.City, c.Region,
		c.Latitude, c.Longitude, c.ToleranceMeters, contact, hours,
		pq.Array(c.Services), c.Active, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update center: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update center rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, centerID id.CenterID) (*models.Center, error) {
	query := `SELECT ` + centerColumns + ` FROM centers WHERE id = $1`
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(centerID))
	c, err := scanCenter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find center by id: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Center, error) {
	query := `SELECT ` + centerColumns + ` FROM centers WHERE is_active ORDER BY name ASC, id ASC`
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active centers: %w", err)
	}
	defer rows.Close()

	centers := []*models.Center{}
	for rows.Next() {
		c, err := scanCenter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan center: %w", err)
		}
		centers = append(centers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate centers: %w", err)
	}
	return centers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCenter(row rowScanner) (*models.Center, error) {
	var (
		c        models.Center
		rawID    uuid.UUID
		contact  []byte
		hours    []byte
		services []string
	)
	if err := row.Scan(&rawID, &c.Name, &c.Description, &c.Address, &c.City, &c.Region,
		&c.Latitude, &c.Longitude, &c.ToleranceMeters, &contact, &hours,
		pq.Array(&services), &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = id.CenterID(rawID)
	if services == nil {
		services = []string{}
	}
	c.Services = services
	if err := json.Unmarshal(contact, &c.Contact); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}
	if err := json.Unmarshal(hours, &c.Hours); err != nil {
		return nil, fmt.Errorf("decode opening hours: %w", err)
	}
	return &c, nil
}

func marshalDetails(c *models.Center) ([]byte, []byte, error) {
	contact, err := json.Marshal(c.Contact)
	if err != nil {
		return nil, nil, fmt.Errorf("encode contact: %w", err)
	}
	hours, err := json.Marshal(c.Hours)
	if err != nil {
		return nil, nil, fmt.Errorf("encode opening hours: %w", err)
	}
	return contact, hours, nil
}
