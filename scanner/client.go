package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gatescan/models"
)

// Sentinel errors carried by locally produced outcomes.
var (
	ErrConfigIncomplete  = errors.New("scan configuration is incomplete")
	ErrNotAuthenticated  = errors.New("no active session")
	ErrInvalidIdentifier = errors.New("identifier must be exactly 8 digits")
	ErrTransport         = errors.New("network error")
	ErrMalformedResponse = errors.New("malformed server response")
)

// OutcomeKind classifies one submission attempt.
type OutcomeKind int

const (
	OutcomeAccepted OutcomeKind = iota
	OutcomeDuplicate
	OutcomeRejected
	OutcomeError
)

// Outcome is the client-side reading of one attempt. Accepted, duplicate
// and rejected come from the server's classification; error means the
// attempt never reached a classification (local validation, auth, or
// transport failure) and the server-side state is unknown.
type Outcome struct {
	Kind       OutcomeKind
	Identifier string
	Message    string
	RecordID   int64
	ScannedAt  time.Time
	Err        error
}

// Lifecycle observes request start/end on the API client. The terminal
// uses it for a busy indicator; tests use it to count calls.
type Lifecycle interface {
	RequestStarted(op string)
	RequestFinished(op string, err error)
}

type opKey struct{}

func withOp(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, opKey{}, op)
}

// Client talks to the gatescan API. All calls take a context and report
// transport failures distinctly from server-side rejections.
type Client struct {
	http      *resty.Client
	logger    *zap.Logger
	deviceID  string
	listeners []Lifecycle
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	c := &Client{logger: logger}

	c.http = resty.New().
		SetBaseURL(baseURL+"/api/v1").
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c.http.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if op, ok := r.Context().Value(opKey{}).(string); ok {
			c.notifyStarted(op)
		}
		return nil
	})
	c.http.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		if op, ok := r.Request.Context().Value(opKey{}).(string); ok {
			c.notifyFinished(op, nil)
		}
		return nil
	})
	c.http.OnError(func(r *resty.Request, err error) {
		if op, ok := r.Context().Value(opKey{}).(string); ok {
			c.notifyFinished(op, err)
		}
	})

	return c
}

// AddListener registers a request-lifecycle observer. Not safe to call
// concurrently with requests; register listeners during setup.
func (c *Client) AddListener(l Lifecycle) {
	c.listeners = append(c.listeners, l)
}

func (c *Client) notifyStarted(op string) {
	for _, l := range c.listeners {
		l.RequestStarted(op)
	}
}

func (c *Client) notifyFinished(op string, err error) {
	for _, l := range c.listeners {
		l.RequestFinished(op, err)
	}
}

// SetToken installs an existing session token.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// Authenticated reports whether a session token is installed.
func (c *Client) Authenticated() bool {
	return c.http.Token != ""
}

// SetDeviceID pins the stable device identity sent as scan metadata.
func (c *Client) SetDeviceID(id string) {
	c.deviceID = id
}

// NewDeviceID mints a device identity for first use.
func NewDeviceID() string {
	return uuid.NewString()
}

// Login exchanges operator credentials for a session token and installs it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var res models.LoginResponse
	resp, err := c.http.R().
		SetContext(withOp(ctx, "login")).
		SetBody(models.LoginRequest{Username: username, Password: password}).
		SetResult(&res).
		Post("/auth/login")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("login failed: %s", serverMessage(resp))
	}

	c.http.SetAuthToken(res.Token)
	return res.Role, nil
}

// Submit records one scan attempt. Preconditions that can be decided
// locally (session present, config complete, identifier shape) short out
// without a network call; everything else is the server's decision.
// The caller clears the input after Submit returns, whatever the outcome.
func (c *Client) Submit(ctx context.Context, cfg Config, identifier string) Outcome {
	if !c.Authenticated() {
		return Outcome{
			Kind:       OutcomeError,
			Identifier: identifier,
			Message:    "No active session. Please login again.",
			Err:        ErrNotAuthenticated,
		}
	}
	if !cfg.IsComplete() {
		return Outcome{
			Kind:       OutcomeError,
			Identifier: identifier,
			Message:    "Scan configuration is incomplete. Run setup first.",
			Err:        ErrConfigIncomplete,
		}
	}
	if !models.ValidIdentifier(identifier) {
		return Outcome{
			Kind:       OutcomeError,
			Identifier: identifier,
			Message:    "Identifier must be exactly 8 digits.",
			Err:        ErrInvalidIdentifier,
		}
	}

	scannedAt := time.Now()
	req := models.RecordScanRequest{
		Identifier:        identifier,
		EventLocationID:   *cfg.EventLocationID,
		EventEntryPointID: *cfg.EventEntryPointID,
		RosterID:          cfg.RosterID,
		ScannedAt:         &scannedAt,
		DeviceMetadata:    c.deviceMetadata(),
	}

	resp, err := c.http.R().
		SetContext(withOp(ctx, "record_scan")).
		SetBody(req).
		Post("/scans")
	if err != nil {
		// Transport failure: the server may or may not have recorded the
		// scan, so this must never be conflated with a rejection.
		c.logger.Warn("scan submission transport failure", zap.String("identifier", identifier), zap.Error(err))
		return Outcome{
			Kind:       OutcomeError,
			Identifier: identifier,
			Message:    "Network error. Please try again.",
			Err:        fmt.Errorf("%w: %v", ErrTransport, err),
		}
	}
	if resp.StatusCode() == 401 {
		return Outcome{
			Kind:       OutcomeError,
			Identifier: identifier,
			Message:    "Session expired. Please login again.",
			Err:        ErrNotAuthenticated,
		}
	}
	if resp.IsError() {
		return Outcome{
			Kind:       OutcomeError,
			Identifier: identifier,
			Message:    "Failed to save scan: " + serverMessage(resp),
			Err:        fmt.Errorf("server error: %s", resp.Status()),
		}
	}

	// A 2xx whose body is not a scan result (a proxy error page, a captive
	// portal) leaves the server-side state as unknown as a dropped
	// connection does. Every real result carries a message; a body that
	// does not decode to one must never read as a rejection.
	var res models.ScanResult
	if err := json.Unmarshal(resp.Body(), &res); err != nil || res.Message == "" {
		c.logger.Warn("scan submission returned an unreadable body",
			zap.String("identifier", identifier),
			zap.String("content_type", resp.Header().Get("Content-Type")))
		return Outcome{
			Kind:       OutcomeError,
			Identifier: identifier,
			Message:    "Unexpected server response. Please try again.",
			Err:        ErrMalformedResponse,
		}
	}

	out := Outcome{
		Identifier: identifier,
		Message:    res.Message,
		RecordID:   res.RecordID,
		ScannedAt:  res.ScannedAt,
	}
	switch {
	case !res.Allowed:
		out.Kind = OutcomeRejected
	case res.Duplicate:
		out.Kind = OutcomeDuplicate
	default:
		out.Kind = OutcomeAccepted
	}
	return out
}

// LookupPerson resolves an identifier to a display profile, scoped to the
// configured roster when one is set. Failures are returned for the caller
// to swallow; the primary outcome renders regardless.
func (c *Client) LookupPerson(ctx context.Context, identifier string, rosterID *int64) (models.PersonProfile, error) {
	r := c.http.R().
		SetContext(withOp(ctx, "person_lookup")).
		SetResult(&models.PersonProfile{})
	if rosterID != nil {
		r.SetQueryParam("roster_id", strconv.FormatInt(*rosterID, 10))
	}

	resp, err := r.Get("/people/" + identifier)
	if err != nil {
		return models.PersonProfile{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.IsError() {
		return models.PersonProfile{}, fmt.Errorf("person lookup failed: %s", serverMessage(resp))
	}
	return *resp.Result().(*models.PersonProfile), nil
}

// LastSeen fetches the most recent prior accepted scan for an identifier
// at a location, excluding the record just created. Absence is Found=false,
// not an error.
func (c *Client) LastSeen(ctx context.Context, identifier string, eventLocationID, excludeID int64) (models.LastSeenResult, error) {
	resp, err := c.http.R().
		SetContext(withOp(ctx, "last_seen")).
		SetQueryParams(map[string]string{
			"identifier":        identifier,
			"event_location_id": strconv.FormatInt(eventLocationID, 10),
			"exclude_id":        strconv.FormatInt(excludeID, 10),
		}).
		SetResult(&models.LastSeenResult{}).
		Get("/scans/last-seen")
	if err != nil {
		return models.LastSeenResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.IsError() {
		return models.LastSeenResult{}, fmt.Errorf("last-seen lookup failed: %s", serverMessage(resp))
	}
	return *resp.Result().(*models.LastSeenResult), nil
}

// Setup flow reads.

func (c *Client) ListEvents(ctx context.Context) ([]models.Event, error) {
	var res struct {
		Events []models.Event `json:"events"`
	}
	return res.Events, c.getList(ctx, "list_events", "/events", &res)
}

func (c *Client) ListEventLocations(ctx context.Context, eventID int64) ([]models.EventLocation, error) {
	var res struct {
		Locations []models.EventLocation `json:"locations"`
	}
	path := "/events/" + strconv.FormatInt(eventID, 10) + "/locations"
	return res.Locations, c.getList(ctx, "list_event_locations", path, &res)
}

func (c *Client) ListEntryPoints(ctx context.Context, eventLocationID int64) ([]models.EventEntryPoint, error) {
	var res struct {
		EntryPoints []models.EventEntryPoint `json:"entry_points"`
	}
	path := "/event-locations/" + strconv.FormatInt(eventLocationID, 10) + "/entry-points"
	return res.EntryPoints, c.getList(ctx, "list_entry_points", path, &res)
}

func (c *Client) ListRosters(ctx context.Context) ([]models.Roster, error) {
	var res struct {
		Rosters []models.Roster `json:"rosters"`
	}
	return res.Rosters, c.getList(ctx, "list_rosters", "/rosters", &res)
}

func (c *Client) getList(ctx context.Context, op, path string, out interface{}) error {
	resp, err := c.http.R().
		SetContext(withOp(ctx, op)).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s failed: %s", op, serverMessage(resp))
	}
	return nil
}

func (c *Client) deviceMetadata() json.RawMessage {
	hostname, _ := os.Hostname()
	meta, err := json.Marshal(map[string]string{
		"device_id": c.deviceID,
		"hostname":  hostname,
	})
	if err != nil {
		return nil
	}
	return meta
}

func serverMessage(resp *resty.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Message != "" {
		return body.Message
	}
	return resp.Status()
}
