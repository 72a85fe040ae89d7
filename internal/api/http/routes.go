package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/city-weather/internal/aggregator"
	"github.com/i474232898/city-weather/internal/favorites"
	"github.com/i474232898/city-weather/internal/weather"
)

var validate = validator.New()

// Geocoder resolves a place name to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (weather.Coordinates, error)
}

// Deps are the services the HTTP layer talks to.
type Deps struct {
	Hub       *aggregator.Hub
	Favorites favorites.Store
	Geocoder  Geocoder
	Logger    *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{deps: deps}

	v1 := app.Group("/api/v1")

	v1.Get("/weather", h.resolveCity)
	v1.Get("/weather/status", h.cityStatus)

	v1.Put("/current", h.setCurrent)
	v1.Get("/current", h.getCurrent)

	v1.Get("/favorites", h.listFavorites)
	v1.Post("/favorites", h.addFavorite)
	v1.Delete("/favorites/:name", h.removeFavorite)
}

type handlers struct {
	deps Deps
}

// weatherResponse is the body returned for a place.
type weatherResponse struct {
	Snapshot weather.Snapshot  `json:"snapshot"`
	Status   aggregator.Status `json:"status"`
	Warning  string            `json:"warning,omitempty"`
}

type cityQuery struct {
	City string `validate:"required,max=200"`
}

type cityBody struct {
	City string `json:"city" validate:"required,max=200"`
}

type favoriteBody struct {
	Name string `json:"name" validate:"required,max=200"`
}

// favoriteView is a favorite plus whatever the hub has cached for it.
type favoriteView struct {
	favorites.FavoriteLocation
	Temperature *float64            `json:"temperature,omitempty"`
	Conditions  []weather.Condition `json:"conditions,omitempty"`
	Phase       aggregator.Phase    `json:"phase,omitempty"`
}

func (h *handlers) resolveCity(c *fiber.Ctx) error {
	q := cityQuery{City: c.Query("city")}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	snap, status, err := h.deps.Hub.Resolve(c.UserContext(), q.City)
	return h.respond(c, snap, status, err)
}

func (h *handlers) cityStatus(c *fiber.Ctx) error {
	q := cityQuery{City: c.Query("city")}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	agg, ok := h.deps.Hub.Lookup(q.City)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no weather requested for this city yet")
	}
	return c.JSON(weatherResponse{Snapshot: agg.Snapshot(), Status: agg.Status()})
}

func (h *handlers) setCurrent(c *fiber.Ctx) error {
	var body cityBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	snap, status, err := h.deps.Hub.Current().ResolveWithStatus(c.UserContext(), body.City)
	return h.respond(c, snap, status, err)
}

func (h *handlers) getCurrent(c *fiber.Ctx) error {
	agg := h.deps.Hub.Current()
	return c.JSON(weatherResponse{Snapshot: agg.Snapshot(), Status: agg.Status()})
}

func (h *handlers) listFavorites(c *fiber.Ctx) error {
	favs := h.deps.Favorites.List()
	out := make([]favoriteView, 0, len(favs))
	for _, f := range favs {
		view := favoriteView{FavoriteLocation: f}
		if agg, ok := h.deps.Hub.Lookup(f.Name); ok {
			snap := agg.Snapshot()
			if snap.Summary != nil {
				temp := snap.Summary.Temperature
				view.Temperature = &temp
				view.Conditions = snap.Summary.Conditions
			}
			view.Phase = agg.Status().Phase
		}
		out = append(out, view)
	}
	return c.JSON(fiber.Map{"favorites": out})
}

func (h *handlers) addFavorite(c *fiber.Ctx) error {
	var body favoriteBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if h.deps.Favorites.Contains(body.Name) {
		return fiber.NewError(fiber.StatusConflict, favorites.ErrAlreadyExists.Error())
	}

	coords, err := h.deps.Geocoder.Resolve(c.UserContext(), body.Name)
	if err != nil {
		return h.fail(c, err)
	}

	fav, err := h.deps.Favorites.Add(body.Name, coords)
	switch {
	case errors.Is(err, favorites.ErrAlreadyExists), errors.Is(err, favorites.ErrLimitReached):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case err != nil:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	h.deps.Logger.InfoContext(c.UserContext(), "favorite added", "name", fav.Name)
	return c.Status(fiber.StatusCreated).JSON(fav)
}

func (h *handlers) removeFavorite(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid favorite name")
	}

	if err := h.deps.Favorites.Remove(name); err != nil {
		if errors.Is(err, favorites.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to remove favorite")
	}

	h.deps.Logger.InfoContext(c.UserContext(), "favorite removed", "name", name)
	return c.SendStatus(fiber.StatusNoContent)
}

// respond writes a resolution outcome. A partial failure still carries
// usable data and is returned as 200 with a warning.
func (h *handlers) respond(c *fiber.Ctx, snap weather.Snapshot, status aggregator.Status, err error) error {
	if err != nil && !weather.IsPartial(err) {
		return h.fail(c, err)
	}
	res := weatherResponse{Snapshot: snap, Status: status}
	if err != nil {
		res.Warning = err.Error()
	}
	return c.JSON(res)
}

func (h *handlers) fail(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	if code >= fiber.StatusInternalServerError {
		h.deps.Logger.ErrorContext(c.UserContext(), "request failed", "path", c.Path(), "status", code, "error", err)
	}
	return fiber.NewError(code, err.Error())
}

// StatusFor maps a weather error onto an HTTP status code.
func StatusFor(err error) int {
	var (
		upstream *weather.UpstreamError
		decode   *weather.DecodeError
	)
	switch {
	case err == nil:
		return fiber.StatusOK
	case weather.IsPartial(err):
		return fiber.StatusOK
	case errors.Is(err, weather.ErrInvalidQuery):
		return fiber.StatusBadRequest
	case errors.Is(err, weather.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, weather.ErrCancelled):
		return fiber.StatusConflict
	case errors.As(err, &decode), errors.As(err, &upstream):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders errors returned by handlers as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
