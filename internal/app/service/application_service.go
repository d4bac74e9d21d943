package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smarttrack/internal/common"
	"smarttrack/internal/domain/model"
	"smarttrack/internal/domain/repository"

	"github.com/google/uuid"
)

type ApplicationService struct {
	appRepo repository.ApplicationRepository
	log     *slog.Logger
}

func NewApplicationService(appRepo repository.ApplicationRepository, log *slog.Logger) *ApplicationService {
	return &ApplicationService{appRepo: appRepo, log: log}
}

type CreateApplicationRequest struct {
	CompanyName  string     `json:"companyName" validate:"required"`
	Role         string     `json:"role" validate:"required"`
	OALink       string     `json:"oaLink,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	ReferralUsed bool       `json:"referralUsed,omitempty"`
	AppliedDate  *time.Time `json:"appliedDate,omitempty"`
	NextDeadline *time.Time `json:"nextDeadline,omitempty"`
}

func (s *ApplicationService) Create(ctx context.Context, ownerID string, req CreateApplicationRequest) (*model.Application, error) {
	const op = "ApplicationService.Create"

	if req.CompanyName == "" || req.Role == "" {
		return nil, fmt.Errorf("companyName and role are required: %w", common.ErrValidation)
	}

	appliedDate := time.Now()
	if req.AppliedDate != nil {
		appliedDate = *req.AppliedDate
	}

	app := &model.Application{
		ID:           uuid.NewString(),
		StudentID:    ownerID,
		CompanyName:  req.CompanyName,
		Role:         req.Role,
		Status:       model.StatusApplied,
		AppliedDate:  appliedDate,
		ReferralUsed: req.ReferralUsed,
		OALink:       req.OALink,
		Notes:        req.Notes,
		NextDeadline: req.NextDeadline,
		Stages:       []model.Stage{},
	}

	if err := s.appRepo.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("application created",
		slog.String("op", op),
		slog.String("application_id", app.ID),
		slog.String("student_id", ownerID),
	)
	return app, nil
}

type ListApplicationsRequest struct {
	Page   int
	Limit  int
	Search string
	Status string
	SortBy string
}

// ApplicationPage carries one page plus the counts that let a client render
// a pager without a second round trip.
type ApplicationPage struct {
	Applications      []model.Application `json:"applications"`
	TotalPages        int                 `json:"totalPages"`
	CurrentPage       int                 `json:"currentPage"`
	TotalApplications int                 `json:"totalApplications"`
}

func (s *ApplicationService) List(ctx context.Context, ownerID string, req ListApplicationsRequest) (*ApplicationPage, error) {
	const op = "ApplicationService.List"

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	if req.Status != "" && !model.ApplicationStatus(req.Status).IsValid() {
		return nil, fmt.Errorf("invalid status filter %q: %w", req.Status, common.ErrValidation)
	}

	filter := repository.ListFilter{
		Search: req.Search,
		Status: model.ApplicationStatus(req.Status),
		SortBy: req.SortBy,
	}
	offset := (req.Page - 1) * req.Limit

	apps, total, err := s.appRepo.ListByStudent(ctx, ownerID, req.Limit, offset, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ApplicationPage{
		Applications:      apps,
		TotalPages:        totalPages(total, req.Limit),
		CurrentPage:       req.Page,
		TotalApplications: total,
	}, nil
}

// ListAll is the admin oversight view across every student.
func (s *ApplicationService) ListAll(ctx context.Context, page, limit int, status string) (*ApplicationPage, error) {
	const op = "ApplicationService.ListAll"

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	if status != "" && !model.ApplicationStatus(status).IsValid() {
		return nil, fmt.Errorf("invalid status filter %q: %w", status, common.ErrValidation)
	}

	apps, total, err := s.appRepo.ListAll(ctx, limit, (page-1)*limit, model.ApplicationStatus(status))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ApplicationPage{
		Applications:      apps,
		TotalPages:        totalPages(total, limit),
		CurrentPage:       page,
		TotalApplications: total,
	}, nil
}

// UpdateApplicationRequest distinguishes omitted fields (nil, untouched)
// from explicitly provided ones, including empty or false values.
type UpdateApplicationRequest struct {
	CompanyName  *string    `json:"companyName,omitempty"`
	Role         *string    `json:"role,omitempty"`
	Status       *string    `json:"status,omitempty"`
	OALink       *string    `json:"oaLink,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	ReferralUsed *bool      `json:"referralUsed,omitempty"`
	NextDeadline *time.Time `json:"nextDeadline,omitempty"`
}

func (s *ApplicationService) Update(ctx context.Context, ownerID, applicationID string, req UpdateApplicationRequest) (*model.Application, error) {
	const op = "ApplicationService.Update"

	app, err := s.findOwned(ctx, ownerID, applicationID)
	if err != nil {
		return nil, err
	}

	if req.CompanyName != nil {
		if *req.CompanyName == "" {
			return nil, fmt.Errorf("companyName cannot be empty: %w", common.ErrValidation)
		}
		app.CompanyName = *req.CompanyName
	}
	if req.Role != nil {
		if *req.Role == "" {
			return nil, fmt.Errorf("role cannot be empty: %w", common.ErrValidation)
		}
		app.Role = *req.Role
	}
	if req.Status != nil {
		status := model.ApplicationStatus(*req.Status)
		if !status.IsValid() {
			return nil, fmt.Errorf("invalid status %q: %w", *req.Status, common.ErrValidation)
		}
		app.Status = status
	}
	if req.OALink != nil {
		app.OALink = *req.OALink
	}
	if req.Notes != nil {
		app.Notes = *req.Notes
	}
	if req.ReferralUsed != nil {
		app.ReferralUsed = *req.ReferralUsed
	}
	if req.NextDeadline != nil {
		app.NextDeadline = req.NextDeadline
	}

	if err := s.appRepo.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return app, nil
}

func (s *ApplicationService) Delete(ctx context.Context, ownerID, applicationID string) error {
	const op = "ApplicationService.Delete"

	if _, err := s.findOwned(ctx, ownerID, applicationID); err != nil {
		return err
	}
	if err := s.appRepo.Delete(ctx, applicationID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("application deleted",
		slog.String("op", op),
		slog.String("application_id", applicationID),
		slog.String("student_id", ownerID),
	)
	return nil
}

type AppendStageRequest struct {
	StageName string     `json:"stageName" validate:"required"`
	Status    string     `json:"status,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// AppendStage appends a milestone to the application's stage list and then
// applies the derived-status rule (model.Application.ApplyStageOutcome).
func (s *ApplicationService) AppendStage(ctx context.Context, ownerID, applicationID string, req AppendStageRequest) (*model.Application, error) {
	const op = "ApplicationService.AppendStage"

	if req.StageName == "" {
		return nil, fmt.Errorf("stageName is required: %w", common.ErrValidation)
	}

	stageStatus := model.StageUpcoming
	if req.Status != "" {
		stageStatus = model.StageStatus(req.Status)
		if !stageStatus.IsValid() {
			return nil, fmt.Errorf("invalid stage status %q: %w", req.Status, common.ErrValidation)
		}
	}

	app, err := s.findOwned(ctx, ownerID, applicationID)
	if err != nil {
		return nil, err
	}

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	stage := model.Stage{
		Name:   req.StageName,
		Date:   date,
		Status: stageStatus,
		Notes:  req.Notes,
	}
	app.Stages = append(app.Stages, stage)
	app.ApplyStageOutcome(stage)

	if err := s.appRepo.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("stage appended",
		slog.String("op", op),
		slog.String("application_id", applicationID),
		slog.String("stage", req.StageName),
		slog.String("status", string(app.Status)),
	)
	return app, nil
}

// findOwned loads an application and enforces ownership. NotFound is
// checked before Forbidden.
func (s *ApplicationService) findOwned(ctx context.Context, ownerID, applicationID string) (*model.Application, error) {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.StudentID != ownerID {
		return nil, fmt.Errorf("not the application owner: %w", common.ErrForbidden)
	}
	return app, nil
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
