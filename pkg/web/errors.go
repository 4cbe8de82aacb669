package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gonbaum/composite/pkg/dispatcher"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/gonbaum/composite/pkg/services"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func unauthorized(c fiber.Ctx) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail("missing or invalid bearer token")

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsActionNotFound(err):
		return notFound(c, "Action not found")

	case persistence.IsCredentialNotFound(err):
		return notFound(c, "Credential not found")

	default:
		return internalError(c, err)
	}
}

// handleDispatchError maps invocation errors: unknown or disabled actions are
// 404, other caller mistakes are 400 and broken stored definitions are 500.
func handleDispatchError(c fiber.Ctx, err error) error {
	switch {
	case dispatcher.IsNotFound(err):
		return notFound(c, err.Error())

	case dispatcher.IsClientError(err):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
