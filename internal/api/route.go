package api

import (
	v1 "github.com/Vasteras-Stadsmission/matkassen-sub010/internal/api/v1"
	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(app *fiber.App, handler *v1.Handler) {
	app.Get("/ping", handler.Pong)

	app.Post("/v1/messages", handler.CreateMessage)
	app.Post("/v1/households/anonymize", handler.Anonymize)

	app.Post("/v1/events/pickup-deleted", handler.PickupDeleted)
	app.Post("/v1/events/pickup-rescheduled", handler.PickupRescheduled)

	admin := app.Group("/v1/admin")
	admin.Get("/failures", handler.ListFailures)
	admin.Get("/issues", handler.ListIssues)
	admin.Post("/messages/:id/retry", handler.RetryMessage)
	admin.Post("/messages/:id/dismiss", handler.DismissMessage)
	admin.Post("/messages/:id/restore", handler.RestoreMessage)
	admin.Post("/requeue-balance", handler.RequeueBalance)
	admin.Post("/dispatch", handler.TriggerDispatch)
}
