package api

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/presence-tracker/internal/presence"
	"github.com/p-blackswan/presence-tracker/internal/sampler"
)

const (
	defaultBarsHours = 12
	maxBarsHours     = 48
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	sampler *sampler.Sampler
	vocab   presence.VacationVocab
	logger  zerolog.Logger
	now     func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(smp *sampler.Sampler, vocab presence.VacationVocab, logger zerolog.Logger) *Handlers {
	return &Handlers{
		sampler: smp,
		vocab:   vocab,
		logger:  logger.With().Str("component", "handlers").Logger(),
		now:     time.Now,
	}
}

// UserSummary is one row of the user listing.
type UserSummary struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Avatar     string           `json:"avatar,omitempty"`
	LastStatus presence.Status  `json:"lastStatus"`
	Since      string           `json:"since"`
	Vacation   bool             `json:"vacation"`
	StatusText string           `json:"statusText,omitempty"`
	Bars       []presence.Class `json:"bars"`
}

// ListUsers handles GET /api/v1/users. The filter query parameter
// defaults to the persisted preference.
func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	now := h.now()

	filter := presence.Filter(c.Query("filter"))
	if c.Query("filter") == "" {
		filter = h.sampler.Prefs().Filter
	}
	if !presence.ValidFilter(filter) {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_filter", "Bad Request",
			"Unknown filter: "+c.Query("filter"))
	}

	var summaries []UserSummary
	h.sampler.View(func(store *presence.Store, prefs presence.Preferences) {
		summaries = make([]UserSummary, 0, store.Len())
		for _, rec := range store.Records {
			if !h.matches(rec, filter) {
				continue
			}
			summaries = append(summaries, UserSummary{
				ID:         rec.ID,
				Name:       rec.Name,
				Avatar:     rec.Avatar,
				LastStatus: rec.LastStatus,
				Since:      presence.TimeSince(rec.LastActiveAt, now),
				Vacation:   h.vocab.Match(presence.RecordEntity(rec)),
				StatusText: rec.StatusText,
				Bars:       presence.RollingWindow(rec, defaultBarsHours, now, prefs.ActiveThreshold),
			})
		}
	})

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Name != summaries[j].Name {
			return summaries[i].Name < summaries[j].Name
		}
		return summaries[i].ID < summaries[j].ID
	})

	return c.JSON(fiber.Map{"users": summaries, "filter": filter})
}

func (h *Handlers) matches(rec *presence.Record, f presence.Filter) bool {
	switch f {
	case presence.FilterActive:
		return rec.LastStatus == presence.StatusActive
	case presence.FilterInactive:
		return rec.LastStatus != presence.StatusActive
	case presence.FilterVacation:
		return h.vocab.Match(presence.RecordEntity(rec))
	default:
		return true
	}
}

// UserBars handles GET /api/v1/users/:id/bars.
func (h *Handlers) UserBars(c *fiber.Ctx) error {
	hours := c.QueryInt("hours", defaultBarsHours)
	if hours < 1 || hours > maxBarsHours {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_hours", "Bad Request",
			"hours must be between 1 and 48")
	}

	id := c.Params("id")
	now := h.now()

	var (
		found bool
		bars  []presence.Class
	)
	h.sampler.View(func(store *presence.Store, prefs presence.Preferences) {
		rec := store.Get(id)
		if rec == nil {
			return
		}
		found = true
		bars = presence.RollingWindow(rec, hours, now, prefs.ActiveThreshold)
	})
	if !found {
		return problemResponse(c, fiber.StatusNotFound,
			"user_not_found", "Not Found",
			"No presence record for user "+id)
	}

	return c.JSON(fiber.Map{"id": id, "bars": bars})
}

// UserHeatmap handles GET /api/v1/users/:id/heatmap. The grid spans the
// retention horizon: row 0 is today, each row has 24 hour cells.
func (h *Handlers) UserHeatmap(c *fiber.Ctx) error {
	id := c.Params("id")
	now := h.now()

	var (
		found bool
		grid  [][]presence.Class
		days  int
	)
	h.sampler.View(func(store *presence.Store, prefs presence.Preferences) {
		rec := store.Get(id)
		if rec == nil {
			return
		}
		found = true
		days = prefs.HorizonDays
		grid = presence.HeatmapGrid(rec, prefs.HorizonDays, now, prefs.ActiveThreshold)
	})
	if !found {
		return problemResponse(c, fiber.StatusNotFound,
			"user_not_found", "Not Found",
			"No presence record for user "+id)
	}

	return c.JSON(fiber.Map{"id": id, "days": days, "grid": grid})
}

// GetPrefs handles GET /api/v1/prefs.
func (h *Handlers) GetPrefs(c *fiber.Ctx) error {
	prefs := h.sampler.Prefs()
	return c.JSON(fiber.Map{
		"sampleIntervalSeconds": int(prefs.SampleInterval.Seconds()),
		"horizonDays":           prefs.HorizonDays,
		"activeThreshold":       prefs.ActiveThreshold,
		"filter":                prefs.Filter,
	})
}

// SetFilter handles PUT /api/v1/prefs/filter.
func (h *Handlers) SetFilter(c *fiber.Ctx) error {
	var req struct {
		Filter presence.Filter `json:"filter"`
	}
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if err := h.sampler.SetFilter(c.Context(), req.Filter); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_filter", "Bad Request",
			err.Error())
	}
	return c.JSON(fiber.Map{"filter": req.Filter})
}

// Export handles GET /api/v1/export: the full store as a downloadable
// JSON document named with a sortable UTC timestamp.
func (h *Handlers) Export(c *fiber.Ctx) error {
	name, data, err := h.sampler.Export()
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"export_failed", "Error", err.Error())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Send(data)
}

// ClearStore handles DELETE /api/v1/store: destructive, immediate reset
// of all presence history.
func (h *Handlers) ClearStore(c *fiber.Ctx) error {
	if err := h.sampler.Clear(c.Context()); err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"clear_failed", "Error", err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}
