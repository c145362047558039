package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"presence/internal/attendance/models"
	"presence/internal/platform/postgres"
	id "presence/pkg/domain"
	"presence/pkg/platform/sentinel"
	txcontext "presence/pkg/platform/tx"
)

// PostgresStore persists sessions in PostgreSQL. The partial unique index
// uq_attendance_one_active is the authority for the single open session rule.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, center_id, attendant_id, attendant_name,
	clock_in_time, clock_in_latitude, clock_in_longitude, clock_in_accuracy,
	clock_out_time, clock_out_latitude, clock_out_longitude, clock_out_accuracy,
	total_hours, status, validation_status, notes, device, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, session *models.Session) error {
	query := `INSERT INTO attendance_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, sessionArgs(session)...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE attendance_sessions SET
			clock_out_time = $2, clock_out_latitude = $3, clock_out_longitude = $4, clock_out_accuracy = $5,
			total_hours = $6, status = $7, validation_status = $8, notes = $9, updated_at = $10
		WHERE id = $1
	`
	all := sessionArgs(session)
	args := []any{all[0], all[8], all[9], all[10], all[11], all[12], all[13], all[14], all[15], all[18]}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE id = $1`
	return s.findOne(ctx, lockInTx(ctx, query), uuid.UUID(sessionID))
}

// FindActiveByAttendant locks the open row when called inside a transaction.
// A second clock-out blocks on the lock and, once the first commits, the
// status filter no longer matches, so it sees ErrNotFound.
func (s *PostgresStore) FindActiveByAttendant(ctx context.Context, attendantID id.AttendantID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE attendant_id = $1 AND status = 'active'`
	return s.findOne(ctx, lockInTx(ctx, query), uuid.UUID(attendantID))
}

// lockInTx turns a single-row read into SELECT ... FOR UPDATE when ctx carries
// a transaction, so read-modify-write sequences in the ledger serialize.
func lockInTx(ctx context.Context, query string) string {
	if _, ok := txcontext.From(ctx); ok {
		return query + ` FOR UPDATE`
	}
	return query
}

func (s *PostgresStore) List(ctx context.Context, filter models.HistoryFilter) ([]*models.Session, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if filter.AttendantID != nil {
		add("attendant_id = ?", uuid.UUID(*filter.AttendantID))
	}
	if filter.CenterID != nil {
		add("center_id = ?", uuid.UUID(*filter.CenterID))
	}
	if filter.From != nil {
		add("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= ?", *filter.To)
	}

	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return s.findMany(ctx, query, args...)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE status = 'active' ORDER BY clock_in_time ASC, id ASC`
	return s.findMany(ctx, query)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, args ...any) (*models.Session, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, args...)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) findMany(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func sessionArgs(s *models.Session) []any {
	var (
		outTime             sql.NullTime
		outLat, outLng, acc sql.NullFloat64
		hours               sql.NullFloat64
	)
	if s.ClockOutTime != nil {
		outTime = sql.NullTime{Time: *s.ClockOutTime, Valid: true}
	}
	if p := s.ClockOutPosition; p != nil {
		outLat = sql.NullFloat64{Float64: p.Latitude, Valid: true}
		outLng = sql.NullFloat64{Float64: p.Longitude, Valid: true}
		acc = nullFloat(p.Accuracy)
	}
	if s.DurationHours != nil {
		hours = sql.NullFloat64{Float64: *s.DurationHours, Valid: true}
	}
	return []any{
		uuid.UUID(s.ID), uuid.UUID(s.CenterID), uuid.UUID(s.AttendantID), s.AttendantName,
		s.ClockInTime, s.ClockInPosition.Latitude, s.ClockInPosition.Longitude, nullFloat(s.ClockInPosition.Accuracy),
		outTime, outLat, outLng, acc,
		hours, string(s.Status), string(s.AuditStatus), s.Notes, s.Device, s.CreatedAt, s.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s                          models.Session
		sessionID, centerID, attID uuid.UUID
		inAcc                      sql.NullFloat64
		outTime                    sql.NullTime
		outLat, outLng, outAcc     sql.NullFloat64
		hours                      sql.NullFloat64
		status, auditStatus        string
	)
	if err := row.Scan(&sessionID, &centerID, &attID, &s.AttendantName,
		&s.ClockInTime, &s.ClockInPosition.Latitude, &s.ClockInPosition.Longitude, &inAcc,
		&outTime, &outLat, &outLng, &outAcc,
		&hours, &status, &auditStatus, &s.Notes, &s.Device, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}

	s.ID = id.SessionID(sessionID)
	s.CenterID = id.CenterID(centerID)
	s.AttendantID = id.AttendantID(attID)
	s.ClockInPosition.Accuracy = floatPtr(inAcc)
	if outTime.Valid {
		t := outTime.Time
		s.ClockOutTime = &t
	}
	if outLat.Valid && outLng.Valid {
		s.ClockOutPosition = &models.Position{Latitude: outLat.Float64, Longitude: outLng.Float64, Accuracy: floatPtr(outAcc)}
	}
	s.DurationHours = floatPtr(hours)

	var err error
	if s.Status, err = models.ParseStatus(status); err != nil {
		return nil, err
	}
	if s.AuditStatus, err = models.ParseAuditStatus(auditStatus); err != nil {
		return nil, err
	}
	return &s, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
