package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gatescan/models"
)

// fakeScanStore reproduces the recording semantics in memory: one row per
// attempt, duplicate decided against prior valid rows for the same
// identifier+location, roster restriction honored.
type fakeScanStore struct {
	nextID  int64
	rosters map[int64]map[string]bool
	scans   []models.Scan
	fail    error
}

func newFakeScanStore() *fakeScanStore {
	return &fakeScanStore{rosters: map[int64]map[string]bool{}}
}

func (f *fakeScanStore) RecordScan(_ context.Context, req models.RecordScanRequest, operatorID int64) (models.ScanResult, error) {
	if f.fail != nil {
		return models.ScanResult{}, f.fail
	}

	allowed := true
	message := msgAccepted
	if req.RosterID != nil && !f.rosters[*req.RosterID][req.Identifier] {
		allowed = false
		message = msgNotInRoster
	}

	duplicate := false
	if allowed {
		for _, s := range f.scans {
			if s.Identifier == req.Identifier && s.EventLocationID == req.EventLocationID && s.Valid {
				duplicate = true
				message = msgDuplicate
				break
			}
		}
	}

	scannedAt := time.Now()
	if req.ScannedAt != nil {
		scannedAt = *req.ScannedAt
	}

	f.nextID++
	f.scans = append(f.scans, models.Scan{
		ID:                f.nextID,
		Identifier:        req.Identifier,
		EventLocationID:   req.EventLocationID,
		EventEntryPointID: req.EventEntryPointID,
		OperatorID:        &operatorID,
		ScannedAt:         scannedAt,
		Valid:             allowed,
		Duplicate:         duplicate,
	})

	return models.ScanResult{
		RecordID:  f.nextID,
		Allowed:   allowed,
		Duplicate: duplicate,
		Message:   message,
		ScannedAt: scannedAt,
	}, nil
}

func (f *fakeScanStore) LastSeen(_ context.Context, identifier string, eventLocationID, excludeID int64) (models.LastSeenResult, error) {
	if f.fail != nil {
		return models.LastSeenResult{}, f.fail
	}
	var best *time.Time
	for i := range f.scans {
		s := f.scans[i]
		if s.Identifier != identifier || s.EventLocationID != eventLocationID || !s.Valid || s.ID == excludeID {
			continue
		}
		if best == nil || s.ScannedAt.After(*best) {
			best = &f.scans[i].ScannedAt
		}
	}
	if best == nil {
		return models.LastSeenResult{Found: false}, nil
	}
	return models.LastSeenResult{Found: true, ScannedAt: best}, nil
}

func (f *fakeScanStore) ScansForLocation(_ context.Context, eventLocationID int64, limit int) ([]models.Scan, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	var out []models.Scan
	for i := len(f.scans) - 1; i >= 0 && len(out) < limit; i-- {
		if f.scans[i].EventLocationID == eventLocationID {
			out = append(out, f.scans[i])
		}
	}
	return out, nil
}

type fakePublisher struct {
	published []models.ScanResult
	fail      error
}

func (p *fakePublisher) PublishScan(_ context.Context, _ models.RecordScanRequest, res models.ScanResult) error {
	if p.fail != nil {
		return p.fail
	}
	p.published = append(p.published, res)
	return nil
}

func newScanRouter(store ScanStore, publisher ScanPublisher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewScanHandler(store, publisher, zap.NewNop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ctxOperatorID, int64(42))
	})
	router.POST("/scans", h.RecordScan)
	router.GET("/scans/last-seen", h.LastSeen)
	router.GET("/event-locations/:id/scans", h.ListScans)
	return router
}

func postScan(t *testing.T, router *gin.Engine, req models.RecordScanRequest) (*httptest.ResponseRecorder, models.ScanResult) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/scans", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, r)

	var res models.ScanResult
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	}
	return w, res
}

func scanReq(identifier string) models.RecordScanRequest {
	return models.RecordScanRequest{
		Identifier:        identifier,
		EventLocationID:   10,
		EventEntryPointID: 100,
	}
}

func TestRecordScan_FirstAcceptedThenDuplicate(t *testing.T) {
	store := newFakeScanStore()
	router := newScanRouter(store, nil)

	w, first := postScan(t, router, scanReq("10234567"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, first.Allowed)
	assert.False(t, first.Duplicate)
	assert.NotZero(t, first.RecordID)

	w, second := postScan(t, router, scanReq("10234567"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, second.Allowed, "a duplicate is still recorded, not a hard failure")
	assert.True(t, second.Duplicate)
	assert.NotEqual(t, first.RecordID, second.RecordID)
}

func TestRecordScan_RosterRejection(t *testing.T) {
	store := newFakeScanStore()
	store.rosters[3] = map[string]bool{"10234567": true}
	router := newScanRouter(store, nil)

	rosterID := int64(3)
	req := scanReq("99999999")
	req.RosterID = &rosterID

	w, res := postScan(t, router, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, res.Allowed)
	assert.False(t, res.Duplicate)
	assert.Equal(t, msgNotInRoster, res.Message)
}

func TestRecordScan_RejectedAttemptDoesNotCountAsPrior(t *testing.T) {
	store := newFakeScanStore()
	store.rosters[3] = map[string]bool{"10234567": true}
	router := newScanRouter(store, nil)

	rosterID := int64(3)

	// Rejected without roster membership.
	req := scanReq("20000001")
	req.RosterID = &rosterID
	_, res := postScan(t, router, req)
	require.False(t, res.Allowed)

	// The same identifier scanned without roster restriction is a clean
	// first accept: invalid rows never make later scans duplicates.
	_, res = postScan(t, router, scanReq("20000001"))
	assert.True(t, res.Allowed)
	assert.False(t, res.Duplicate)
}

func TestRecordScan_InvalidIdentifierRejectedLocally(t *testing.T) {
	store := newFakeScanStore()
	router := newScanRouter(store, nil)

	for _, id := range []string{"1234567", "123456789", "1234567a"} {
		w, _ := postScan(t, router, scanReq(id))
		assert.Equal(t, http.StatusBadRequest, w.Code, "identifier %q", id)
	}
	assert.Empty(t, store.scans, "no attempt reaches the store")
}

func TestRecordScan_StoreErrorIsServerFault(t *testing.T) {
	store := newFakeScanStore()
	store.fail = errors.New("connection lost")
	router := newScanRouter(store, nil)

	w, _ := postScan(t, router, scanReq("10234567"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecordScan_PublishesAcceptedScans(t *testing.T) {
	store := newFakeScanStore()
	pub := &fakePublisher{}
	router := newScanRouter(store, pub)

	postScan(t, router, scanReq("10234567"))
	postScan(t, router, scanReq("10234567")) // duplicate, still recorded

	store.rosters[3] = map[string]bool{}
	rosterID := int64(3)
	req := scanReq("99999999")
	req.RosterID = &rosterID
	postScan(t, router, req) // rejected, not published

	require.Len(t, pub.published, 2)
	assert.False(t, pub.published[0].Duplicate)
	assert.True(t, pub.published[1].Duplicate)
}

func TestRecordScan_PublisherFailureDoesNotFailScan(t *testing.T) {
	store := newFakeScanStore()
	pub := &fakePublisher{fail: errors.New("stream down")}
	router := newScanRouter(store, pub)

	w, res := postScan(t, router, scanReq("10234567"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, res.Allowed)
}

func TestLastSeen_PriorScanStrictlyEarlier(t *testing.T) {
	store := newFakeScanStore()
	router := newScanRouter(store, nil)

	first := time.Now().Add(-5 * time.Minute).Truncate(time.Second)
	req := scanReq("10234567")
	req.ScannedAt = &first
	_, a := postScan(t, router, req)

	second := time.Now().Truncate(time.Second)
	req = scanReq("10234567")
	req.ScannedAt = &second
	_, b := postScan(t, router, req)
	require.True(t, b.Duplicate)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/scans/last-seen?identifier=10234567&event_location_id=10&exclude_id=%d", b.RecordID), nil)
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var res models.LastSeenResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.True(t, res.Found)
	assert.True(t, res.ScannedAt.Equal(a.ScannedAt))
	assert.True(t, res.ScannedAt.Before(b.ScannedAt))
}

func TestLastSeen_NoPriorScan(t *testing.T) {
	router := newScanRouter(newFakeScanStore(), nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet,
		"/scans/last-seen?identifier=10234567&event_location_id=10", nil)
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var res models.LastSeenResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Found)
	assert.Nil(t, res.ScannedAt)
}

func TestLastSeen_BadParams(t *testing.T) {
	router := newScanRouter(newFakeScanStore(), nil)

	for _, target := range []string{
		"/scans/last-seen?identifier=123&event_location_id=10",
		"/scans/last-seen?identifier=10234567&event_location_id=abc",
		"/scans/last-seen?identifier=10234567&event_location_id=10&exclude_id=abc",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestListScans(t *testing.T) {
	store := newFakeScanStore()
	router := newScanRouter(store, nil)

	postScan(t, router, scanReq("10234567"))
	postScan(t, router, scanReq("20000001"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/event-locations/10/scans", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Scans []models.Scan `json:"scans"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Count)
	// Newest first.
	assert.Equal(t, "20000001", res.Scans[0].Identifier)
}
