package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/pinweather/internal/explorer"
	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, ex *explorer.Explorer) {
	v1 := app.Group("/api/v1")

	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"service":     "pinweather",
			"lastRefresh": ex.LastRefresh(),
		})
	})

	v1.Get("/markers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"locations": ex.Locations(),
		})
	})

	v1.Post("/markers", func(c *fiber.Ctx) error {
		var req reserveRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}

		id, err := ex.ReserveAt(c.UserContext(), req.coordinate(), store.Handle(req.Handle))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id})
	})

	v1.Post("/markers/:id/handle", func(c *fiber.Ctx) error {
		var req handleRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}

		id := store.ID(c.Params("id"))
		if err := ex.BindHandle(c.UserContext(), id, store.Handle(req.Handle)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": id, "handle": req.Handle})
	})

	v1.Get("/selection", func(c *fiber.Ctx) error {
		loc, ok := ex.Selection()
		if !ok {
			return c.JSON(fiber.Map{"selection": nil})
		}
		return c.JSON(fiber.Map{"selection": loc})
	})

	v1.Put("/selection", func(c *fiber.Ctx) error {
		var req selectRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}

		if err := ex.Select(c.UserContext(), store.ID(req.ID)); err != nil {
			return err
		}
		return selectionResponse(c, ex)
	})

	v1.Delete("/selection", func(c *fiber.Ctx) error {
		if err := ex.ClearSelection(c.UserContext()); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Put("/selection/handle", func(c *fiber.Ctx) error {
		var req handleRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}

		if err := ex.SelectByHandle(c.UserContext(), store.Handle(req.Handle)); err != nil {
			return err
		}
		return selectionResponse(c, ex)
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		res, err := ex.TriggerRefresh(c.UserContext())
		if err != nil {
			return err
		}
		status := fiber.StatusOK
		if res.Due() {
			status = fiber.StatusAccepted
		}
		return c.Status(status).JSON(res)
	})

	v1.Get("/search", func(c *fiber.Ctx) error {
		st, err := ex.SearchState(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(st)
	})

	v1.Put("/search/text", func(c *fiber.Ctx) error {
		var req searchTextRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}

		if err := ex.TextChanged(c.UserContext(), req.Text); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusAccepted)
	})

	v1.Post("/search/select", func(c *fiber.Ctx) error {
		var req searchSelectRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}

		id, err := ex.SelectSearchResult(c.UserContext(), *req.Index)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id})
	})
}

func selectionResponse(c *fiber.Ctx, ex *explorer.Explorer) error {
	loc, _ := ex.Selection()
	return c.JSON(fiber.Map{"selection": loc})
}

// reserveRequest is a map tap. Pointers distinguish a missing coordinate from 0.
type reserveRequest struct {
	Lat    *float64 `json:"lat" validate:"required,latitude"`
	Lon    *float64 `json:"lon" validate:"required,longitude"`
	Handle string   `json:"handle" validate:"omitempty,max=128"`
}

func (r reserveRequest) coordinate() geo.Coordinate {
	return geo.NewCoordinate(*r.Lat, *r.Lon)
}

type handleRequest struct {
	Handle string `json:"handle" validate:"required,max=128"`
}

type selectRequest struct {
	ID string `json:"id" validate:"required"`
}

type searchTextRequest struct {
	Text string `json:"text" validate:"max=256"`
}

type searchSelectRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

func bindAndValidate(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// ErrorHandler is the centralized error response for the API.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, explorer.ErrTooClose):
		code = fiber.StatusConflict
	case explorer.IsValidationError(err):
		code = fiber.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, explorer.ErrStopped):
		code = fiber.StatusServiceUnavailable
	}

	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
