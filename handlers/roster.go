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

type RosterHandler struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRosterHandler(db *pgxpool.Pool, logger *zap.Logger) *RosterHandler {
	return &RosterHandler{db: db, logger: logger}
}

// ListRosters returns non-deleted rosters, newest first.
func (h *RosterHandler) ListRosters(c *gin.Context) {
	rows, err := h.db.Query(c,
		`SELECT id, code, name, created_at FROM rosters
		 WHERE deleted_at IS NULL
		 ORDER BY created_at DESC`)
	if err != nil {
		h.logger.Error("listing rosters failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	var rosters []models.Roster
	for rows.Next() {
		var r models.Roster
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to scan roster"})
			return
		}
		rosters = append(rosters, r)
	}

	c.JSON(http.StatusOK, gin.H{"rosters": rosters, "count": len(rosters)})
}

// CreateRoster creates an empty roster; members arrive separately in bulk.
func (h *RosterHandler) CreateRoster(c *gin.Context) {
	var req models.CreateRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	var rosterID int64
	if err := h.db.QueryRow(c,
		`INSERT INTO rosters (code, name) VALUES ($1, $2) RETURNING id`,
		req.Code, req.Name).Scan(&rosterID); err != nil {
		h.logger.Error("creating roster failed", zap.String("code", req.Code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create roster"})
		return
	}

	h.logger.Info("roster created", zap.Int64("roster_id", rosterID), zap.String("code", req.Code))

	c.JSON(http.StatusCreated, gin.H{"success": true, "roster_id": rosterID})
}

// AddMembers bulk-ingests roster rows. Rows for an identifier already in
// the roster overwrite the earlier profile data; all rows land in one
// transaction so a failed upload leaves the roster untouched.
func (h *RosterHandler) AddMembers(c *gin.Context) {
	rosterID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid roster ID"})
		return
	}

	var req models.AddRosterMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if len(req.Members) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No members supplied"})
		return
	}

	var exists bool
	if err := h.db.QueryRow(c,
		`SELECT EXISTS(SELECT 1 FROM rosters WHERE id = $1 AND deleted_at IS NULL)`,
		rosterID).Scan(&exists); err != nil {
		h.logger.Error("roster lookup failed", zap.Int64("roster_id", rosterID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Roster not found"})
		return
	}

	tx, err := h.db.Begin(c)
	if err != nil {
		h.logger.Error("begin failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer tx.Rollback(c)

	for i, m := range req.Members {
		if !models.ValidIdentifier(m.Identifier) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Row " + strconv.Itoa(i) + ": identifier must be exactly 8 digits",
			})
			return
		}

		var dob *time.Time
		if m.DOB != nil && *m.DOB != "" {
			parsed, err := time.Parse("2006-01-02", *m.DOB)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"success": false,
					"message": "Row " + strconv.Itoa(i) + ": invalid dob " + *m.DOB,
				})
				return
			}
			dob = &parsed
		}

		if _, err := tx.Exec(c,
			`INSERT INTO roster_members (roster_id, identifier, name, dob, group_name, photo_url)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (roster_id, identifier) DO UPDATE
			 SET name = EXCLUDED.name, dob = EXCLUDED.dob,
			     group_name = EXCLUDED.group_name, photo_url = EXCLUDED.photo_url,
			     deleted_at = NULL`,
			rosterID, m.Identifier, m.Name, dob, m.Group, m.PhotoURL); err != nil {
			h.logger.Error("inserting roster member failed",
				zap.Int64("roster_id", rosterID),
				zap.String("identifier", m.Identifier),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add members"})
			return
		}
	}

	if err := tx.Commit(c); err != nil {
		h.logger.Error("commit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to add members"})
		return
	}

	h.logger.Info("roster members added", zap.Int64("roster_id", rosterID), zap.Int("count", len(req.Members)))

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(req.Members)})
}
