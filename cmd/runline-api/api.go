// Package main provides the Runline API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/runline/runline/pkg/eventbus"
	"github.com/runline/runline/pkg/persistence"
	"github.com/runline/runline/pkg/services"
	"github.com/runline/runline/pkg/web"
)

type API struct {
	logger          *slog.Logger
	persistence     persistence.Persistence
	eventBus        eventbus.EventBus
	authorizer      services.Authorizer
	attachmentsPath string
	validate        *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	authorizer services.Authorizer,
	attachmentsPath string,
) *API {
	return &API{
		logger:          logger,
		persistence:     persistence,
		eventBus:        eventBus,
		authorizer:      authorizer,
		attachmentsPath: attachmentsPath,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
	}
}

// newAuthorizer builds the cancel authorizer from a comma-separated user
// allow-list. An empty list grants everyone, which suits development.
func newAuthorizer(allowedUsers string) services.Authorizer {
	allowedUsers = strings.TrimSpace(allowedUsers)
	if allowedUsers == "" {
		return services.AllowAllAuthorizer{}
	}

	grants := make(map[string][]string)

	for _, userID := range strings.Split(allowedUsers, ",") {
		userID = strings.TrimSpace(userID)
		if userID != "" {
			grants[userID] = []string{services.ActionCancelRun}
		}
	}

	return services.NewStaticAuthorizer(grants)
}

func (a *API) App() *fiber.App {
	engine := services.NewEngine(a.persistence, a.authorizer, a.eventBus, a.logger)
	attachments := services.NewLocalAttachmentStore(a.attachmentsPath)

	handlers := web.NewAPIHandlers(engine, attachments, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Runline API")
	})

	r := app.Group("/runs")
	r.Post("/", handlers.SubmitRun)
	r.Get("/", handlers.ListRuns)
	r.Get("/:id", handlers.GetRun)
	r.Post("/:id/cancel", handlers.CancelRun)

	s := app.Group("/steps")
	s.Post("/:id/start", handlers.StartStep)
	s.Post("/:id/complete", handlers.CompleteStep)

	t := app.Group("/tasks")
	t.Get("/", handlers.MyTasks)
	t.Get("/history", handlers.MyHistory)

	f := app.Group("/flows")
	f.Get("/:id", handlers.GetFlow)
	f.Get("/:id/steps", handlers.GetStepMapping)

	app.Get("/forms/:id", handlers.GetForm)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
