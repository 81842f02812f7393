package topup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

type ControllerOptions struct {
	// NotFoundRetries covers a callback that races ahead of the intake write.
	NotFoundRetries int
	NotFoundBackoff time.Duration

	IntakeHandlers   []fiber.Handler
	CallbackHandlers []fiber.Handler
}

type Controller struct {
	intake *Intake
	engine *Engine
	opts   ControllerOptions
}

func NewController(intake *Intake, engine *Engine, opts ControllerOptions) *Controller {
	return &Controller{intake, engine, opts}
}

func (c *Controller) InitRoutes(app *fiber.App) {
	app.Get("/", chain(c.opts.IntakeHandlers, c.initiate)...)
	app.Post("/api/sim-swap/status", chain(c.opts.CallbackHandlers, c.callback)...)
	app.Get("/api/top-ups/:id", c.getStatus)
}

func chain(before []fiber.Handler, last fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(before)+1)
	return append(append(out, before...), last)
}

func (c *Controller) initiate(ctx *fiber.Ctx) error {
	var input InitiateInput
	if err := ctx.QueryParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}

	out, err := c.intake.Initiate(ctx.UserContext(), input)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":      fmt.Sprintf("Sim swap check initiated for %s. Request ID: %s", out.PhoneNumber, out.RequestID),
		"requestId":    out.RequestID,
		"phoneNumber":  out.PhoneNumber,
		"amount":       out.Amount,
		"currencyCode": out.CurrencyCode,
		"status":       out.Status,
	})
}

func (c *Controller) callback(ctx *fiber.Ctx) error {
	var input CallbackInput
	if err := ctx.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid callback body")
	}

	outcome, err := c.resolve(ctx.UserContext(), input)
	if err != nil {
		return err
	}

	status, message := describeOutcome(outcome)
	return ctx.Status(status).JSON(fiber.Map{
		"message":         message,
		"outcome":         outcome.Kind,
		"requestId":       outcome.CorrelationID,
		"reason":          outcome.Reason,
		"confirmation":    outcome.Confirmation,
		"alreadyResolved": outcome.AlreadyResolved,
	})
}

func (c *Controller) getStatus(ctx *fiber.Ctx) error {
	out, err := c.engine.Status(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusOK).JSON(out)
}

// resolve retries an unknown id a few times before giving up with ErrNotFound.
func (c *Controller) resolve(ctx context.Context, input CallbackInput) (Outcome, error) {
	for attempt := 0; ; attempt++ {
		outcome, err := c.engine.Resolve(ctx, input)
		if !errors.Is(err, ErrNotFound) || attempt >= c.opts.NotFoundRetries {
			return outcome, err
		}

		select {
		case <-ctx.Done():
			return Outcome{}, err
		case <-time.After(c.opts.NotFoundBackoff * time.Duration(attempt+1)):
		}
	}
}

func describeOutcome(o Outcome) (int, string) {
	switch o.Kind {
	case OutcomeDeclined:
		return fiber.StatusBadRequest, "Top-up declined due to recent SIM swap activity."
	case OutcomeDisbursed:
		return fiber.StatusOK, "Airtime top-up successful."
	case OutcomeDisbursementFailed:
		return fiber.StatusInternalServerError, "Error during airtime top-up."
	default:
		return fiber.StatusAccepted, "Airtime top-up in progress."
	}
}
