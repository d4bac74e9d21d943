package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"smarttrack/internal/common"
	"smarttrack/internal/domain/model"
)

// ListFilter narrows and orders an owner's application listing.
type ListFilter struct {
	Search string                  // case-insensitive substring over company name and role
	Status model.ApplicationStatus // exact match when non-empty
	SortBy string                  // "", "oldest" or "company"
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *model.Application) error
	FindByID(ctx context.Context, id string) (*model.Application, error)
	ListByStudent(ctx context.Context, studentID string, limit, offset int, filter ListFilter) ([]model.Application, int, error)
	ListAll(ctx context.Context, limit, offset int, status model.ApplicationStatus) ([]model.Application, int, error)
	Update(ctx context.Context, app *model.Application) error
	Delete(ctx context.Context, id string) error
}

type pgApplicationRepository struct {
	db *sql.DB
}

func NewPgApplicationRepository(db *sql.DB) ApplicationRepository {
	return &pgApplicationRepository{db: db}
}

const applicationColumns = `id, student_id, company_name, role, status, applied_date,
	referral_used, COALESCE(oa_link, ''), COALESCE(notes, ''), next_deadline, stages, created_at, updated_at`

func (r *pgApplicationRepository) Create(ctx context.Context, app *model.Application) error {
	stages, err := json.Marshal(app.Stages)
	if err != nil {
		return fmt.Errorf("pgApplicationRepository.Create marshal stages: %w", err)
	}
	query := `INSERT INTO applications
	          (id, student_id, company_name, role, status, applied_date, referral_used, oa_link, notes, next_deadline, stages)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)`
	_, err = r.db.ExecContext(ctx, query,
		app.ID, app.StudentID, app.CompanyName, app.Role, app.Status, app.AppliedDate,
		app.ReferralUsed, app.OALink, app.Notes, app.NextDeadline, stages,
	)
	if err != nil {
		return fmt.Errorf("pgApplicationRepository.Create: %w", err)
	}
	return nil
}

func (r *pgApplicationRepository) FindByID(ctx context.Context, id string) (*model.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	app := &model.Application{}
	var stages []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&app.ID, &app.StudentID, &app.CompanyName, &app.Role, &app.Status, &app.AppliedDate,
		&app.ReferralUsed, &app.OALink, &app.Notes, &app.NextDeadline, &stages, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgApplicationRepository.FindByID: %w", err)
	}
	if err := unmarshalStages(stages, app); err != nil {
		return nil, fmt.Errorf("pgApplicationRepository.FindByID: %w", err)
	}
	return app, nil
}

func (r *pgApplicationRepository) ListByStudent(ctx context.Context, studentID string, limit, offset int, filter ListFilter) ([]model.Application, int, error) {
	conditions := []string{"student_id = $1"}
	args := []interface{}{studentID}
	argID := 2

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(company_name ILIKE $%d OR role ILIKE $%d)", argID, argID+1))
		likeTerm := "%" + filter.Search + "%"
		args = append(args, likeTerm, likeTerm)
		argID += 2
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, filter.Status)
		argID++
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM applications` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgApplicationRepository.ListByStudent count: %w", err)
	}

	// Newest-applied-first unless the caller asks otherwise.
	orderBy := " ORDER BY applied_date DESC"
	switch filter.SortBy {
	case "oldest":
		orderBy = " ORDER BY applied_date ASC"
	case "company":
		orderBy = " ORDER BY company_name ASC"
	}

	query := `SELECT ` + applicationColumns + ` FROM applications` + whereClause + orderBy +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, offset)

	apps, err := r.queryApplications(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgApplicationRepository.ListByStudent query: %w", err)
	}
	return apps, total, nil
}

func (r *pgApplicationRepository) ListAll(ctx context.Context, limit, offset int, status model.ApplicationStatus) ([]model.Application, int, error) {
	whereClause := ""
	args := []interface{}{}
	argID := 1

	if status != "" {
		whereClause = fmt.Sprintf(" WHERE status = $%d", argID)
		args = append(args, status)
		argID++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM applications` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgApplicationRepository.ListAll count: %w", err)
	}

	query := `SELECT ` + applicationColumns + ` FROM applications` + whereClause +
		fmt.Sprintf(" ORDER BY applied_date DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, offset)

	apps, err := r.queryApplications(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgApplicationRepository.ListAll query: %w", err)
	}
	return apps, total, nil
}

func (r *pgApplicationRepository) Update(ctx context.Context, app *model.Application) error {
	stages, err := json.Marshal(app.Stages)
	if err != nil {
		return fmt.Errorf("pgApplicationRepository.Update marshal stages: %w", err)
	}
	query := `UPDATE applications SET
	            company_name = $1, role = $2, status = $3, applied_date = $4, referral_used = $5,
	            oa_link = NULLIF($6, ''), notes = NULLIF($7, ''), next_deadline = $8, stages = $9,
	            updated_at = CURRENT_TIMESTAMP
	          WHERE id = $10`
	_, err = r.db.ExecContext(ctx, query,
		app.CompanyName, app.Role, app.Status, app.AppliedDate, app.ReferralUsed,
		app.OALink, app.Notes, app.NextDeadline, stages, app.ID,
	)
	if err != nil {
		return fmt.Errorf("pgApplicationRepository.Update: %w", err)
	}
	return nil
}

func (r *pgApplicationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgApplicationRepository.Delete: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgApplicationRepository) queryApplications(ctx context.Context, query string, args ...interface{}) ([]model.Application, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := []model.Application{}
	for rows.Next() {
		var app model.Application
		var stages []byte
		err := rows.Scan(
			&app.ID, &app.StudentID, &app.CompanyName, &app.Role, &app.Status, &app.AppliedDate,
			&app.ReferralUsed, &app.OALink, &app.Notes, &app.NextDeadline, &stages, &app.CreatedAt, &app.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := unmarshalStages(stages, &app); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func unmarshalStages(data []byte, app *model.Application) error {
	if len(data) > 0 {
		if err := json.Unmarshal(data, &app.Stages); err != nil {
			return fmt.Errorf("unmarshal stages: %w", err)
		}
	}
	if app.Stages == nil {
		app.Stages = []model.Stage{}
	}
	return nil
}
