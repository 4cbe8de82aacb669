package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gonbaum/composite/pkg/dispatcher"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/gonbaum/composite/pkg/services"
	"github.com/gonbaum/composite/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	planner     dispatcher.Planner
	previewer   web.Previewer
	token       string
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	planner dispatcher.Planner,
	previewer web.Previewer,
	token string,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		planner:     planner,
		previewer:   previewer,
		token:       token,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		services.NewAction(a.persistence, a.validate),
		services.NewCredential(a.persistence, a.validate),
		services.NewActionLog(a.persistence),
		a.planner,
		a.previewer,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Actions API")
	})

	web.Register(app, handlers, a.token)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
