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

type PersonHandler struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPersonHandler(db *pgxpool.Pool, logger *zap.Logger) *PersonHandler {
	return &PersonHandler{db: db, logger: logger}
}

// Lookup resolves an identifier to a display profile. With roster_id the
// lookup is scoped strictly to that roster; without it the most recently
// uploaded matching member wins. An unknown identifier is not an error:
// the response is an empty profile so the operator still sees who (or at
// least which number) was scanned.
func (h *PersonHandler) Lookup(c *gin.Context) {
	identifier := c.Param("identifier")
	if !models.ValidIdentifier(identifier) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Identifier must be exactly 8 digits"})
		return
	}

	var rosterID *int64
	if v := c.Query("roster_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid roster_id"})
			return
		}
		rosterID = &id
	}

	var (
		name, group, photo *string
		dob                *time.Time
		err                error
	)
	if rosterID != nil {
		err = h.db.QueryRow(c,
			`SELECT name, dob, group_name, photo_url FROM roster_members
			 WHERE roster_id = $1 AND identifier = $2 AND deleted_at IS NULL`,
			*rosterID, identifier).Scan(&name, &dob, &group, &photo)
	} else {
		err = h.db.QueryRow(c,
			`SELECT name, dob, group_name, photo_url FROM roster_members
			 WHERE identifier = $1 AND deleted_at IS NULL
			 ORDER BY created_at DESC
			 LIMIT 1`,
			identifier).Scan(&name, &dob, &group, &photo)
	}

	if err != nil {
		if isNoRows(err) {
			c.JSON(http.StatusOK, models.PersonProfile{Found: false, Identifier: identifier})
			return
		}
		h.logger.Error("person lookup failed", zap.String("identifier", identifier), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to look up person"})
		return
	}

	profile := models.PersonProfile{
		Found:      true,
		Identifier: identifier,
		Name:       name,
		Group:      group,
		PhotoURL:   photo,
	}
	if dob != nil {
		d := dob.Format("2006-01-02")
		age := models.Age(*dob, time.Now())
		profile.DOB = &d
		profile.Age = &age
	}

	c.JSON(http.StatusOK, profile)
}
