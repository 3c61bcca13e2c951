package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
	"github.com/i474232898/air-quality-aggregation/internal/locations"
	"github.com/i474232898/air-quality-aggregation/internal/metrics"
	"github.com/i474232898/air-quality-aggregation/internal/store"
)

var validate = validator.New()

const (
	msgMissingParams = "Missing required parameters: lat, lng, city"
	msgNoData        = "No air quality data available for this location"
	msgBatchArray    = "Expected array of locations"
)

// Service is the aggregation engine as seen by the HTTP layer.
type Service interface {
	GetAirQuality(ctx context.Context, q airquality.Query) (*airquality.Record, error)
	DebugAirQuality(ctx context.Context, q airquality.Query) map[string]airquality.ProviderOutcome
	GetBatch(ctx context.Context, qs []airquality.Query) map[string]airquality.Record
}

type handler struct {
	service Service
	opts    Options
}

// RegisterRoutes wires the rate-limited API handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service Service, opts Options) {
	opts.setDefaults()
	h := &handler{service: service, opts: opts}

	v1 := app.Group("/api/v1", rateLimiter(opts))

	v1.Get("/air-quality", h.airQuality)
	v1.Post("/air-quality/batch", h.batch)
	v1.Get("/locations", h.locations)
}

func (h *handler) airQuality(c *fiber.Ctx) error {
	q, err := parseQuery(c)
	if err != nil {
		h.opts.Logger.Warn("bad air quality request",
			zap.String("url", c.OriginalURL()),
			zap.String("ip", c.IP()),
			zap.Error(err))
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.opts.QueryTimeout)
	defer cancel()

	if q.Debug {
		return c.JSON(fiber.Map{
			"debug":     true,
			"providers": h.service.DebugAirQuality(ctx, q),
		})
	}

	if rec, ok := h.cached(ctx, q); ok {
		return c.JSON(rec)
	}

	rec, err := h.service.GetAirQuality(ctx, q)
	switch {
	case errors.Is(err, airquality.ErrAllProvidersExhausted):
		return errorJSON(c, fiber.StatusNotFound, msgNoData)
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "air quality query timed out")
	case err != nil:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch air quality data")
	}

	h.store(ctx, q, *rec)
	return c.JSON(rec)
}

type batchLocation struct {
	Lat  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng  float64 `json:"lng" validate:"gte=-180,lte=180"`
	City string  `json:"city" validate:"required"`
}

func (h *handler) batch(c *fiber.Ctx) error {
	var body struct {
		Locations json.RawMessage `json:"locations"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, msgBatchArray)
	}
	raw := bytes.TrimSpace(body.Locations)
	if len(raw) == 0 || raw[0] != '[' {
		return errorJSON(c, fiber.StatusBadRequest, msgBatchArray)
	}
	var locs []batchLocation
	if err := json.Unmarshal(raw, &locs); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, msgBatchArray)
	}

	queries := make([]airquality.Query, 0, len(locs))
	for _, l := range locs {
		if err := validate.Struct(l); err != nil {
			h.opts.Logger.Warn("skipping invalid batch location", zap.String("city", l.City), zap.Error(err))
			continue
		}
		queries = append(queries, airquality.Query{Lat: l.Lat, Lng: l.Lng, City: l.City})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.opts.QueryTimeout)
	defer cancel()

	results := h.service.GetBatch(ctx, queries)
	for _, q := range queries {
		if rec, ok := results[q.City]; ok && rec.For(q) {
			h.store(ctx, q, rec)
		}
	}
	return c.JSON(results)
}

func (h *handler) locations(c *fiber.Ctx) error {
	if h.opts.Locations == nil {
		return fiber.NewError(fiber.StatusNotFound, "no location registry configured")
	}
	list, err := h.opts.Locations.List(locations.Kind(c.Query("kind")))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(list)
}

func (h *handler) cached(ctx context.Context, q airquality.Query) (airquality.Record, bool) {
	if h.opts.Cache == nil {
		return airquality.Record{}, false
	}
	rec, err := h.opts.Cache.Get(ctx, q.Key())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.opts.Logger.Warn("cache lookup failed", zap.String("key", q.Key()), zap.Error(err))
		}
		metrics.RecordCacheLookup(false)
		return airquality.Record{}, false
	}
	metrics.RecordCacheLookup(true)
	return rec, true
}

func (h *handler) store(ctx context.Context, q airquality.Query, rec airquality.Record) {
	if h.opts.Cache == nil {
		return
	}
	if err := h.opts.Cache.Set(ctx, q.Key(), rec); err != nil {
		h.opts.Logger.Warn("failed to cache record", zap.String("key", q.Key()), zap.Error(err))
	}
}

// parseQuery reads lat, lng, city and debug from the query string.
func parseQuery(c *fiber.Ctx) (airquality.Query, error) {
	// city is kept in cached records after the request buffer is reused.
	latStr, lngStr, city := c.Query("lat"), c.Query("lng"), utils.CopyString(c.Query("city"))
	if latStr == "" || lngStr == "" || city == "" {
		return airquality.Query{}, errors.New(msgMissingParams)
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return airquality.Query{}, errors.New("lat must be a number")
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return airquality.Query{}, errors.New("lng must be a number")
	}

	debug := c.Query("debug")
	q := airquality.Query{
		Lat:   lat,
		Lng:   lng,
		City:  city,
		Debug: debug == "true" || debug == "1",
	}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func errorJSON(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
