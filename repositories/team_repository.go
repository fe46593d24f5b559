package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/lanparty/models"
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	// GetByID loads the team with its members.
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Team, error)
	// FindByMember returns the team of userID in the tournament, or ErrTeamNotFound.
	FindByMember(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (*models.Team, error)
	// ListByEventMember returns every team of the event's tournaments that userID is part of.
	ListByEventMember(ctx context.Context, exec SQLExecutor, eventID, userID int) ([]models.Team, error)
	Update(ctx context.Context, exec SQLExecutor, team *models.Team) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	AddMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error
	RemoveMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `t.id, t.tournament_id, t.name, t.result, t.rank, t.applied_points, t.created_at`

func scanTeam(row rowScanner, t *models.Team) error {
	return row.Scan(&t.ID, &t.TournamentID, &t.Name, &t.Result, &t.Rank, &t.AppliedPoints, &t.CreatedAt)
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	query := `
		INSERT INTO teams (tournament_id, name, result, rank)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := pick(r.db, exec).QueryRowContext(ctx, query, team.TournamentID, team.Name, team.Result, team.Rank).
		Scan(&team.ID, &team.CreatedAt)
	if err != nil {
		if code, _, ok := pqError(err); ok && code == pqForeignKeyViolation {
			return ErrTeamTournamentInvalid
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	team.Members = []int{}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	executor := pick(r.db, exec)

	team := &models.Team{}
	query := `SELECT ` + teamColumns + ` FROM teams t WHERE t.id = $1`
	if err := scanTeam(executor.QueryRowContext(ctx, query, id), team); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	members, err := r.members(ctx, executor, `SELECT team_id, user_id FROM team_members WHERE team_id = $1 ORDER BY joined_at, user_id`, id)
	if err != nil {
		return nil, err
	}
	team.Members = members[id]
	if team.Members == nil {
		team.Members = []int{}
	}
	return team, nil
}

func (r *postgresTeamRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Team, error) {
	executor := pick(r.db, exec)

	query := `SELECT ` + teamColumns + ` FROM teams t WHERE t.tournament_id = $1 ORDER BY t.id`
	teams, err := r.list(ctx, executor, query, tournamentID)
	if err != nil {
		return nil, err
	}

	members, err := r.members(ctx, executor, `SELECT team_id, user_id FROM team_members WHERE tournament_id = $1 ORDER BY joined_at, user_id`, tournamentID)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		if m, ok := members[teams[i].ID]; ok {
			teams[i].Members = m
		}
	}
	return teams, nil
}

func (r *postgresTeamRepository) FindByMember(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (*models.Team, error) {
	query := `SELECT team_id FROM team_members WHERE tournament_id = $1 AND user_id = $2`

	var teamID int
	if err := pick(r.db, exec).QueryRowContext(ctx, query, tournamentID, userID).Scan(&teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to find team by member: %w", err)
	}
	return r.GetByID(ctx, exec, teamID)
}

func (r *postgresTeamRepository) ListByEventMember(ctx context.Context, exec SQLExecutor, eventID, userID int) ([]models.Team, error) {
	executor := pick(r.db, exec)

	query := `
		SELECT ` + teamColumns + `
		FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE m.event_id = $1 AND m.user_id = $2
		ORDER BY t.id`
	teams, err := r.list(ctx, executor, query, eventID, userID)
	if err != nil {
		return nil, err
	}

	for i := range teams {
		members, err := r.members(ctx, executor, `SELECT team_id, user_id FROM team_members WHERE team_id = $1 ORDER BY joined_at, user_id`, teams[i].ID)
		if err != nil {
			return nil, err
		}
		if m, ok := members[teams[i].ID]; ok {
			teams[i].Members = m
		}
	}
	return teams, nil
}

func (r *postgresTeamRepository) list(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]models.Team, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		var t models.Team
		if err := scanTeam(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		t.Members = []int{}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) members(ctx context.Context, executor SQLExecutor, query string, arg int) (map[int][]int, error) {
	rows, err := executor.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	members := make(map[int][]int)
	for rows.Next() {
		var teamID, userID int
		if err := rows.Scan(&teamID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members[teamID] = append(members[teamID], userID)
	}
	return members, rows.Err()
}

func (r *postgresTeamRepository) Update(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	query := `UPDATE teams SET name = $1, result = $2, rank = $3, applied_points = $4 WHERE id = $5`

	result, err := pick(r.db, exec).ExecContext(ctx, query, team.Name, team.Result, team.Rank, team.AppliedPoints, team.ID)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := pick(r.db, exec).ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) AddMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	query := `
		INSERT INTO team_members (team_id, tournament_id, event_id, user_id)
		SELECT t.id, t.tournament_id, tr.event_id, $2
		FROM teams t
		JOIN tournaments tr ON tr.id = t.tournament_id
		WHERE t.id = $1`

	result, err := pick(r.db, exec).ExecContext(ctx, query, teamID, userID)
	if err != nil {
		if code, constraint, ok := pqError(err); ok {
			switch {
			case code == pqUniqueViolation:
				return ErrMemberConflict
			case code == pqForeignKeyViolation && constraint == "team_members_registration_fkey":
				return ErrMemberNotRegistered
			}
		}
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) RemoveMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	query := `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`
	result, err := pick(r.db, exec).ExecContext(ctx, query, teamID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}
