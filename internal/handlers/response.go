package handlers

import (
	"errors"
	"fmt"
	"log"

	"bistro/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ok writes a {success: true, ...} envelope.
func ok(c *fiber.Ctx, status int, data fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range data {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// fail writes a {success: false, error} envelope.
func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// handleError maps a service error to its HTTP status. Unknown errors are
// logged and reported as a generic failure.
func handleError(c *fiber.Ctx, err error) error {
	var (
		validationErr *services.ValidationError
		notFoundErr   *services.NotFoundError
		stateErr      *services.InvalidStateError
		transitionErr *services.InvalidTransitionError
		forbiddenErr  *services.ForbiddenError
		conflictErr   *services.ConflictError
		declinedErr   *services.PaymentDeclinedError
	)

	switch {
	case errors.As(err, &validationErr):
		return fail(c, fiber.StatusBadRequest, validationErr.Error())
	case errors.As(err, &notFoundErr):
		return fail(c, fiber.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &stateErr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   stateErr.Error(),
			"status":  stateErr.Status.Choice(),
		})
	case errors.As(err, &transitionErr):
		return fail(c, fiber.StatusConflict, transitionErr.Error())
	case errors.As(err, &forbiddenErr):
		return fail(c, fiber.StatusForbidden, forbiddenErr.Error())
	case errors.As(err, &conflictErr):
		return fail(c, fiber.StatusConflict, conflictErr.Error())
	case errors.As(err, &declinedErr):
		return fail(c, fiber.StatusPaymentRequired, declinedErr.Error())
	}

	log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	return fail(c, fiber.StatusInternalServerError, "internal error")
}

// parseBody decodes and validates the request body into req.
func parseBody(c *fiber.Ctx, validate *validator.Validate, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		log.Printf("Error parsing request body: %v", err)
		return &services.ValidationError{Message: "invalid request body"}
	}
	if err := validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			e := validationErrors[0]
			return &services.ValidationError{Message: fmt.Sprintf("field '%s' failed on the '%s' tag", e.Field(), e.Tag())}
		}
		return &services.ValidationError{Message: err.Error()}
	}
	return nil
}
