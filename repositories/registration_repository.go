package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/lanparty/models"
)

type RegistrationRepository interface {
	Get(ctx context.Context, exec SQLExecutor, userID, eventID int) (*models.Registration, error)
	ListByEvent(ctx context.Context, eventID int) ([]models.Registration, error)
	ListByUser(ctx context.Context, userID int) ([]models.Registration, error)
	Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error
	Update(ctx context.Context, exec SQLExecutor, reg *models.Registration) error
	Delete(ctx context.Context, exec SQLExecutor, userID, eventID int) error
	// AddScore adds delta to the score of the registration.
	AddScore(ctx context.Context, exec SQLExecutor, userID, eventID, delta int) error
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

const registrationColumns = `user_id, event_id, role, arrival_at, departure_at, score, created_at`

func scanRegistration(row rowScanner, reg *models.Registration) error {
	return row.Scan(&reg.UserID, &reg.EventID, &reg.Role, &reg.ArrivalAt, &reg.DepartureAt, &reg.Score, &reg.CreatedAt)
}

func (r *postgresRegistrationRepository) Get(ctx context.Context, exec SQLExecutor, userID, eventID int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE user_id = $1 AND event_id = $2`

	reg := &models.Registration{}
	if err := scanRegistration(pick(r.db, exec).QueryRowContext(ctx, query, userID, eventID), reg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) list(ctx context.Context, query string, arg int) ([]models.Registration, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]models.Registration, 0)
	for rows.Next() {
		var reg models.Registration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (r *postgresRegistrationRepository) ListByEvent(ctx context.Context, eventID int) ([]models.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY score DESC, user_id`, eventID)
}

func (r *postgresRegistrationRepository) ListByUser(ctx context.Context, userID int) ([]models.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY event_id`, userID)
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (user_id, event_id, role, arrival_at, departure_at, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := pick(r.db, exec).QueryRowContext(ctx, query,
		reg.UserID, reg.EventID, reg.Role, reg.ArrivalAt, reg.DepartureAt, reg.Score,
	).Scan(&reg.CreatedAt)
	if err != nil {
		if code, constraint, ok := pqError(err); ok {
			switch {
			case code == pqUniqueViolation:
				return ErrRegistrationConflict
			case code == pqForeignKeyViolation && constraint == "registrations_user_id_fkey":
				return ErrUserNotFound
			case code == pqForeignKeyViolation && constraint == "registrations_event_id_fkey":
				return ErrEventNotFound
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) Update(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	query := `
		UPDATE registrations SET role = $1, arrival_at = $2, departure_at = $3, score = $4
		WHERE user_id = $5 AND event_id = $6`

	result, err := pick(r.db, exec).ExecContext(ctx, query,
		reg.Role, reg.ArrivalAt, reg.DepartureAt, reg.Score, reg.UserID, reg.EventID,
	)
	if err != nil {
		return fmt.Errorf("failed to update registration: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, exec SQLExecutor, userID, eventID int) error {
	query := `DELETE FROM registrations WHERE user_id = $1 AND event_id = $2`
	result, err := pick(r.db, exec).ExecContext(ctx, query, userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) AddScore(ctx context.Context, exec SQLExecutor, userID, eventID, delta int) error {
	query := `UPDATE registrations SET score = score + $1 WHERE user_id = $2 AND event_id = $3`
	result, err := pick(r.db, exec).ExecContext(ctx, query, delta, userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to add registration score: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}
