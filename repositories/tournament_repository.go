package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/lanparty/models"
)

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// GetForUpdate locks the tournament row until the transaction of exec ends.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	ListByEvent(ctx context.Context, eventID int) ([]models.Tournament, error)
	Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	UpdateBackgroundKey(ctx context.Context, id int, key *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, event_id, name, short_name, date, duration, rules, background_key,
	team_size_min, team_size_max, team_count_min, team_count_max, status,
	points_per_player, points_distribution, created_at`

func scanTournament(row rowScanner, t *models.Tournament) error {
	return row.Scan(
		&t.ID, &t.EventID, &t.Name, &t.ShortName, &t.Date, &t.Duration, &t.Rules, &t.BackgroundKey,
		&t.TeamSizeMin, &t.TeamSizeMax, &t.TeamCountMin, &t.TeamCountMax, &t.Status,
		&t.PointsPerPlayer, &t.PointsDistribution, &t.CreatedAt,
	)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			event_id, name, short_name, date, duration, rules,
			team_size_min, team_size_max, team_count_min, team_count_max, status,
			points_per_player, points_distribution
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.EventID, t.Name, t.ShortName, t.Date, t.Duration, t.Rules,
		t.TeamSizeMin, t.TeamSizeMax, t.TeamCountMin, t.TeamCountMax, t.Status,
		t.PointsPerPlayer, t.PointsDistribution,
	).Scan(&t.ID, &t.CreatedAt)
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) get(ctx context.Context, exec SQLExecutor, query string, id int) (*models.Tournament, error) {
	t := &models.Tournament{}
	if err := scanTournament(pick(r.db, exec).QueryRowContext(ctx, query, id), t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.get(ctx, exec, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`, id)
}

func (r *postgresTournamentRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.get(ctx, exec, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresTournamentRepository) ListByEvent(ctx context.Context, eventID int) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE event_id = $1 ORDER BY date, id`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if err := scanTournament(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1,
			short_name = $2,
			date = $3,
			duration = $4,
			rules = $5,
			team_size_min = $6,
			team_size_max = $7,
			team_count_min = $8,
			team_count_max = $9,
			status = $10,
			points_per_player = $11,
			points_distribution = $12
		WHERE id = $13`

	result, err := pick(r.db, exec).ExecContext(ctx, query,
		t.Name, t.ShortName, t.Date, t.Duration, t.Rules,
		t.TeamSizeMin, t.TeamSizeMax, t.TeamCountMin, t.TeamCountMax, t.Status,
		t.PointsPerPlayer, t.PointsDistribution, t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateBackgroundKey(ctx context.Context, id int, key *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tournaments SET background_key = $1 WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament background key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if code, constraint, ok := pqError(err); ok {
		switch {
		case code == pqUniqueViolation && constraint == "tournaments_event_id_short_name_key":
			return ErrTournamentShortNameTaken
		case code == pqForeignKeyViolation && constraint == "tournaments_event_id_fkey":
			return ErrTournamentEventInvalid
		}
	}
	return err
}
