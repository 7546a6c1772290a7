// Package api exposes tables and the results history as a JSON REST API.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/janpfeifer/GoOracle/internal/store"
	"github.com/janpfeifer/GoOracle/internal/table"
	"github.com/labstack/echo/v4"
	"k8s.io/klog/v2"
)

// Results is the read side of the results history.
type Results interface {
	Recent(ctx context.Context, limit int) ([]store.Record, error)
	Stats(ctx context.Context) (store.Stats, error)
}

var errMissingGroup = errors.New("group is required")

type Handler struct {
	tables  *table.Registry
	results Results
}

// NewHandler creates the API handler. results may be nil, in which case the results endpoints
// answer 503.
func NewHandler(tables *table.Registry, results Results) *Handler {
	return &Handler{tables: tables, results: results}
}

// New returns an echo instance with the middlewares and all the API routes registered.
func New(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(RequestIDMiddleware())
	e.Use(LoggingMiddleware())
	h.Register(e)
	return e
}

func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/healthz", h.Healthz)
	g.POST("/tables", h.CreateTable)
	g.GET("/tables/:id", h.GetTable)
	g.DELETE("/tables/:id", h.DeleteTable)
	g.POST("/tables/:id/start", h.StartGame)
	g.POST("/tables/:id/reveal", h.Reveal)
	g.POST("/tables/:id/place", h.Place)
	g.PUT("/tables/:id/speed", h.SetSpeed)
	g.GET("/results", h.RecentResults)
	g.GET("/results/stats", h.Stats)
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) CreateTable(c echo.Context) error {
	var req ModeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	mode, err := game.ParseMode(req.Mode)
	if err != nil {
		return mapError(c, err)
	}
	_, snap, err := h.tables.Create(table.Start{Mode: mode, Question: req.Question}, nil)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, toTableResponse(snap))
}

func (h *Handler) GetTable(c echo.Context) error {
	t, err := h.tables.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toTableResponse(t.Snapshot()))
}

func (h *Handler) DeleteTable(c echo.Context) error {
	if err := h.tables.Remove(c.Param("id")); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) StartGame(c echo.Context) error {
	var req ModeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	mode, err := game.ParseMode(req.Mode)
	if err != nil {
		return mapError(c, err)
	}
	return h.dispatch(c, table.Start{Mode: mode, Question: req.Question})
}

func (h *Handler) Reveal(c echo.Context) error {
	group, err := bindGroup(c)
	if err != nil {
		return mapError(c, err)
	}
	return h.dispatch(c, table.Reveal{Group: group})
}

func (h *Handler) Place(c echo.Context) error {
	group, err := bindGroup(c)
	if err != nil {
		return mapError(c, err)
	}
	return h.dispatch(c, table.Place{Group: group})
}

func (h *Handler) SetSpeed(c echo.Context) error {
	var req SpeedRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.dispatch(c, table.SetSpeed{Speed: req.Speed})
}

func (h *Handler) RecentResults(c echo.Context) error {
	if h.results == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "results history is disabled"})
	}
	limit := store.DefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > store.MaxLimit {
			return badRequest(c, "limit must be an integer between 1 and "+strconv.Itoa(store.MaxLimit))
		}
		limit = parsed
	}
	records, err := h.results.Recent(c.Request().Context(), limit)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, ResultsResponse{Results: records})
}

func (h *Handler) Stats(c echo.Context) error {
	if h.results == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "results history is disabled"})
	}
	stats, err := h.results.Stats(c.Request().Context())
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// dispatch sends cmd to the table named in the path. Commands that do not apply to the current game
// are not errors: the unchanged snapshot is returned.
func (h *Handler) dispatch(c echo.Context, cmd table.Command) error {
	t, err := h.tables.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	snap, err := t.Dispatch(cmd)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toTableResponse(snap))
}

func bindGroup(c echo.Context) (int, error) {
	var req GroupRequest
	if err := c.Bind(&req); err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Group == nil {
		return 0, errMissingGroup
	}
	return *req.Group, nil
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func mapError(c echo.Context, err error) error {
	requestID, _ := c.Get("request_id").(string)

	var httpErr *echo.HTTPError
	switch {
	case errors.Is(err, table.ErrNotFound), errors.Is(err, table.ErrClosed):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: table.ErrNotFound.Error()})
	case errors.Is(err, game.ErrInvalidMode), errors.Is(err, game.ErrInvalidSpeed),
		errors.Is(err, game.ErrInvalidDeck), errors.Is(err, game.ErrQuestionTooLong),
		errors.Is(err, errMissingGroup):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.As(err, &httpErr) && httpErr.Code == http.StatusBadRequest:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	default:
		klog.Errorf("api: internal error (request_id=%s): %v", requestID, err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
