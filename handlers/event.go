package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"gatescan/models"
)

type EventHandler struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewEventHandler(db *pgxpool.Pool, logger *zap.Logger) *EventHandler {
	return &EventHandler{db: db, logger: logger}
}

// ListEvents returns non-deleted events, newest first. This feeds the scan
// setup flow's first picker.
func (h *EventHandler) ListEvents(c *gin.Context) {
	rows, err := h.db.Query(c,
		`SELECT id, title, created_at FROM events
		 WHERE deleted_at IS NULL
		 ORDER BY id DESC`)
	if err != nil {
		h.logger.Error("listing events failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to scan event"})
			return
		}
		events = append(events, ev)
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// CreateEvent creates an event together with its location occurrences and
// their gate assignments in a single transaction, so a half-created event
// never shows up in the setup flow.
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if len(req.Locations) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "At least one location is required"})
		return
	}

	tx, err := h.db.Begin(c)
	if err != nil {
		h.logger.Error("begin failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer tx.Rollback(c)

	var eventID int64
	if err := tx.QueryRow(c,
		`INSERT INTO events (title) VALUES ($1) RETURNING id`,
		req.Title).Scan(&eventID); err != nil {
		h.logger.Error("inserting event failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create event"})
		return
	}

	for _, loc := range req.Locations {
		eventDate, err := time.Parse("2006-01-02", loc.EventDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid event_date: " + loc.EventDate})
			return
		}

		var startTime, endTime *string
		if loc.StartTime != "" {
			startTime = &loc.StartTime
		}
		if loc.EndTime != "" {
			endTime = &loc.EndTime
		}

		var eventLocationID int64
		if err := tx.QueryRow(c,
			`INSERT INTO event_locations (event_id, location_id, event_date, start_time, end_time)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			eventID, loc.LocationID, eventDate, startTime, endTime).Scan(&eventLocationID); err != nil {
			h.logger.Error("inserting event location failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create event location"})
			return
		}

		for _, epID := range loc.EntryPointIDs {
			if _, err := tx.Exec(c,
				`INSERT INTO event_entry_points (event_location_id, entry_point_id)
				 VALUES ($1, $2)
				 ON CONFLICT (event_location_id, entry_point_id) DO NOTHING`,
				eventLocationID, epID); err != nil {
				h.logger.Error("assigning entry point failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to assign entry point"})
				return
			}
		}
	}

	if err := tx.Commit(c); err != nil {
		h.logger.Error("commit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create event"})
		return
	}

	h.logger.Info("event created", zap.Int64("event_id", eventID), zap.String("title", req.Title))

	c.JSON(http.StatusCreated, gin.H{"success": true, "event_id": eventID})
}

// ListEventLocations returns the non-deleted occurrences of an event,
// ordered by date.
func (h *EventHandler) ListEventLocations(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid event ID"})
		return
	}

	rows, err := h.db.Query(c,
		`SELECT id, event_id, location_id, event_date, start_time, end_time
		 FROM event_locations
		 WHERE event_id = $1 AND deleted_at IS NULL
		 ORDER BY event_date ASC`,
		eventID)
	if err != nil {
		h.logger.Error("listing event locations failed", zap.Int64("event_id", eventID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	var locations []models.EventLocation
	for rows.Next() {
		var loc models.EventLocation
		if err := rows.Scan(&loc.ID, &loc.EventID, &loc.LocationID, &loc.EventDate, &loc.StartTime, &loc.EndTime); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to scan event location"})
			return
		}
		locations = append(locations, loc)
	}

	c.JSON(http.StatusOK, gin.H{"locations": locations, "count": len(locations)})
}

// ListEntryPoints returns the gate assignments of an event location joined
// with the gate names, which is what a scan config stores and displays.
func (h *EventHandler) ListEntryPoints(c *gin.Context) {
	eventLocationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid event location ID"})
		return
	}

	rows, err := h.db.Query(c,
		`SELECT eep.id, eep.event_location_id, eep.entry_point_id, ep.name
		 FROM event_entry_points eep
		 JOIN entry_points ep ON ep.id = eep.entry_point_id
		 WHERE eep.event_location_id = $1
		   AND eep.deleted_at IS NULL AND ep.deleted_at IS NULL`,
		eventLocationID)
	if err != nil {
		h.logger.Error("listing entry points failed", zap.Int64("event_location_id", eventLocationID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	var entryPoints []models.EventEntryPoint
	for rows.Next() {
		var ep models.EventEntryPoint
		if err := rows.Scan(&ep.ID, &ep.EventLocationID, &ep.EntryPointID, &ep.Name); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to scan entry point"})
			return
		}
		entryPoints = append(entryPoints, ep)
	}

	c.JSON(http.StatusOK, gin.H{"entry_points": entryPoints, "count": len(entryPoints)})
}
