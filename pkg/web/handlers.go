// Package web provides the REST API of the action store: CRUD for actions,
// credentials and the audit log, plus the execute and preview endpoints.
package web

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/keyauth"
	"github.com/gonbaum/composite/pkg/dispatcher"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/gonbaum/composite/pkg/services"
)

type APIHandlers struct {
	actionService     *services.Action
	credentialService *services.Credential
	actionLogService  *services.ActionLog
	planner           dispatcher.Planner
	previewer         Previewer
}

func NewAPIHandlers(
	actionService *services.Action,
	credentialService *services.Credential,
	actionLogService *services.ActionLog,
	planner dispatcher.Planner,
	previewer Previewer,
) *APIHandlers {
	return &APIHandlers{
		actionService:     actionService,
		credentialService: credentialService,
		actionLogService:  actionLogService,
		planner:           planner,
		previewer:         previewer,
	}
}

// RequireToken rejects requests without the given bearer token. An empty
// token disables the check.
func RequireToken(token string) fiber.Handler {
	return keyauth.New(keyauth.Config{
		Next: func(fiber.Ctx) bool {
			return token == ""
		},
		Validator: func(_ fiber.Ctx, key string) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
		ErrorHandler: func(c fiber.Ctx, _ error) error {
			return unauthorized(c)
		},
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.actionService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Actions API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Actions API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	req, err := parseListActionsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.actionService.ListActions(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ActionListResponse{
		Actions:     result.Actions,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
		Pagination:  Pagination{Limit: req.Limit, Offset: req.Offset},
		Sorting:     Sorting{SortBy: req.SortBy, SortOrder: req.SortOrder},
	})
}

// parseListActionsRequest parses query parameters for listing actions.
func parseListActionsRequest(c fiber.Ctx) (*services.ListActionsRequest, error) {
	req := &services.ListActionsRequest{
		ActionType: models.ActionType(c.Query("action_type")),
		Tag:        c.Query("tag"),
		Query:      c.Query("q"),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}

	var err error

	req.Limit, req.Offset, err = parsePage(c)
	if err != nil {
		return nil, err
	}

	req.Enabled, err = parseOptionalBool(c.Query("enabled"))
	if err != nil {
		return nil, err
	}

	return req, nil
}

func parsePage(c fiber.Ctx) (int, int, error) {
	var limit, offset int

	if limitStr := c.Query("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}

		limit = v
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		v, err := strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}

		offset = v
	}

	return limit, offset, nil
}

func parseOptionalBool(raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}

	return &v, nil
}

func (h *APIHandlers) GetAction(c fiber.Ctx) error {
	action, err := h.actionService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(action)
}

func (h *APIHandlers) CreateAction(c fiber.Ctx) error {
	var action models.Action
	if err := c.Bind().JSON(&action); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	created, err := h.actionService.Create(c.Context(), &action)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateAction(c fiber.Ctx) error {
	var action models.Action
	if err := c.Bind().JSON(&action); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	updated, err := h.actionService.Update(c.Context(), c.Params("id"), &action)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteAction(c fiber.Ctx) error {
	err := h.actionService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecuteAction runs an invocation as far as this process can. The body is
// the plan: a final result, or a resolved payload for the trusted host.
func (h *APIHandlers) ExecuteAction(c fiber.Ctx) error {
	var req dispatcher.ExecuteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, dispatcher.ErrInvalidParams.Error()+": "+err.Error())
	}

	plan, err := h.planner.Plan(c.Context(), req)
	if err != nil {
		return handleDispatchError(c, err)
	}

	return c.JSON(plan)
}

func (h *APIHandlers) PreviewAction(c fiber.Ctx) error {
	var req dispatcher.ExecuteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, dispatcher.ErrInvalidParams.Error()+": "+err.Error())
	}

	resolved, err := h.previewer.Preview(c.Context(), req)
	if err != nil {
		return handleDispatchError(c, err)
	}

	return c.JSON(resolved)
}

func (h *APIHandlers) GetCredentials(c fiber.Ctx) error {
	credentials, err := h.credentialService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(CredentialListResponse{Credentials: credentials})
}

func (h *APIHandlers) GetCredential(c fiber.Ctx) error {
	credential, err := h.credentialService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(credential)
}

func (h *APIHandlers) CreateCredential(c fiber.Ctx) error {
	var credential models.AuthCredential
	if err := c.Bind().JSON(&credential); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.credentialService.Create(c.Context(), &credential)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateCredential(c fiber.Ctx) error {
	var credential models.AuthCredential
	if err := c.Bind().JSON(&credential); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.credentialService.Update(c.Context(), c.Params("id"), &credential)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteCredential(c fiber.Ctx) error {
	err := h.credentialService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetActionLogs(c fiber.Ctx) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	success, err := parseOptionalBool(c.Query("success"))
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	if limit <= 0 || limit > persistence.MaxLimit {
		limit = persistence.DefaultLogLimit
	}

	result, err := h.actionLogService.List(c.Context(), services.ListActionLogsRequest{
		ActionName: c.Query("action_name"),
		Success:    success,
		Source:     models.Source(c.Query("source")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ActionLogListResponse{
		Logs:        result.Logs,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
		Pagination:  Pagination{Limit: limit, Offset: offset},
	})
}

// CreateActionLog appends an audit record produced on a trusted host.
func (h *APIHandlers) CreateActionLog(c fiber.Ctx) error {
	var entry models.ActionLog
	if err := c.Bind().JSON(&entry); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	recorded, err := h.actionLogService.Record(c.Context(), &entry)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(recorded)
}

// Register mounts every route on router. Routes under /api require token
// when it is not empty.
func Register(router fiber.Router, h *APIHandlers, token string) {
	router.Get("/health", h.HealthCheck)

	api := router.Group("/api", RequireToken(token))

	a := api.Group("/actions")
	a.Get("/", h.GetActions)
	a.Post("/", h.CreateAction)
	a.Post("/execute", h.ExecuteAction)
	a.Post("/preview", h.PreviewAction)
	a.Get("/:id", h.GetAction)
	a.Put("/:id", h.UpdateAction)
	a.Delete("/:id", h.DeleteAction)

	cr := api.Group("/credentials")
	cr.Get("/", h.GetCredentials)
	cr.Post("/", h.CreateCredential)
	cr.Get("/:id", h.GetCredential)
	cr.Put("/:id", h.UpdateCredential)
	cr.Delete("/:id", h.DeleteCredential)

	l := api.Group("/action-logs")
	l.Get("/", h.GetActionLogs)
	l.Post("/", h.CreateActionLog)
}
