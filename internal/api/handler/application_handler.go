package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"smarttrack/internal/api/middleware"
	"smarttrack/internal/app/service"
	"smarttrack/internal/common"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type ApplicationHandler struct {
	appService *service.ApplicationService
	validate   *validator.Validate
}

func NewApplicationHandler(appService *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{appService: appService, validate: validator.New()}
}

func (h *ApplicationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listApplications)
	r.Post("/", h.createApplication)
	r.Put("/{applicationID}", h.updateApplication)
	r.Delete("/{applicationID}", h.deleteApplication)
	r.Put("/{applicationID}/stage", h.appendStage)
}

// RegisterAdminRoutes exposes the cross-user oversight listing.
func (h *ApplicationHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/applications", h.listAllApplications)
}

func (h *ApplicationHandler) createApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	app, err := h.appService.Create(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, app)
}

func (h *ApplicationHandler) listApplications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	page, limit := parsePaging(r)
	req := service.ListApplicationsRequest{
		Page:   page,
		Limit:  limit,
		Search: r.URL.Query().Get("search"),
		Status: r.URL.Query().Get("status"),
		SortBy: r.URL.Query().Get("sortBy"),
	}

	result, err := h.appService.List(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}

func (h *ApplicationHandler) listAllApplications(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePaging(r)

	result, err := h.appService.ListAll(r.Context(), page, limit, r.URL.Query().Get("status"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}

func (h *ApplicationHandler) updateApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.UpdateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	app, err := h.appService.Update(r.Context(), userID, chi.URLParam(r, "applicationID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, app)
}

func (h *ApplicationHandler) deleteApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	if err := h.appService.Delete(r.Context(), userID, chi.URLParam(r, "applicationID")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Application deleted successfully"})
}

func (h *ApplicationHandler) appendStage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.AppendStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	app, err := h.appService.AppendStage(r.Context(), userID, chi.URLParam(r, "applicationID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, app)
}

func parsePaging(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return page, limit
}
