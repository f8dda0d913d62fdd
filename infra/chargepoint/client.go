// Package chargepoint implements the vendor driver API over HTTPS. All calls
// go through the undocumented JSON POST surface the vendor's own mobile and
// web clients use: a credential login that yields a session token, then
// keyed request envelopes against the map-prod endpoint.
package chargepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	corecp "github.com/homecharge/homecharge/core/chargepoint"
	"github.com/homecharge/homecharge/core/metrics"
	"github.com/homecharge/homecharge/core/model"
	"github.com/homecharge/homecharge/infra/logger"
)

// Client talks to the vendor driver API. It is safe for concurrent use; the
// session token is shared and refreshed at most once per rejected request.
type Client struct {
	cfg  Config
	http *http.Client
	log  logger.Logger
	sink metrics.Sink

	now   func() time.Time
	sleep func(time.Duration)

	mu    sync.Mutex
	token string
}

var _ corecp.Client = (*Client)(nil)

// New builds a Client from cfg. Missing credentials are rejected here so the
// failure is a configuration error rather than a login round trip.
func New(cfg Config, log logger.Logger) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("chargepoint-client")
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:   log,
		sink:  metrics.NopSink{},
		now:   time.Now,
		sleep: time.Sleep,
	}, nil
}

// UseSink records one APIRequestEvent per HTTP round trip on sink.
func (c *Client) UseSink(sink metrics.Sink) {
	if sink != nil {
		c.sink = sink
	}
}

// Authenticate establishes the session credential: the cached token file if
// one survives from an earlier run, a fresh login otherwise.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.sessionToken() != "" {
		return nil
	}
	if tok := c.loadCachedToken(); tok != "" {
		c.log.Debugf("using cached session token from %s", c.cfg.TokenPath)
		c.setToken(tok)
		return nil
	}
	return c.login(ctx)
}

// ListHomeChargers returns the account's home charger device ids.
func (c *Client) ListHomeChargers(ctx context.Context) ([]string, error) {
	payload := map[string]any{"user_status": map[string]any{"mfhs": map[string]any{}}}
	raw, err := c.post(ctx, corecp.OpListChargers, payload)
	if err != nil {
		return nil, err
	}
	var body struct {
		UserStatus struct {
			MFHS json.RawMessage `json:"mfhs"`
		} `json:"user_status"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &corecp.CommError{Op: corecp.OpListChargers, Reason: "malformed response", Err: err}
	}
	ids, err := decodeChargerIDs(body.UserStatus.MFHS)
	if err != nil {
		return nil, &corecp.CommError{Op: corecp.OpListChargers, Reason: "malformed charger list", Err: err}
	}
	return ids, nil
}

// GetStatus fetches a live snapshot for one charger. The result is never
// cached: the charge controller relies on fresh state for every poll.
func (c *Client) GetStatus(ctx context.Context, deviceID string) (model.ChargeStatus, error) {
	payload := map[string]any{
		"charger_status": map[string]any{
			"mfhs": map[string]any{"charger_id": idValue(deviceID)},
		},
	}
	raw, err := c.post(ctx, corecp.OpGetStatus, payload)
	if err != nil {
		return model.ChargeStatus{}, err
	}
	var body struct {
		ChargerStatus struct {
			Connected      bool   `json:"connected"`
			PluggedIn      bool   `json:"plugged_in"`
			ChargingStatus string `json:"charging_status"`
		} `json:"charger_status"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return model.ChargeStatus{}, &corecp.CommError{Op: corecp.OpGetStatus, Reason: "malformed response", Err: err}
	}
	return model.ChargeStatus{
		DeviceID:  deviceID,
		Connected: body.ChargerStatus.Connected,
		PluggedIn: body.ChargerStatus.PluggedIn,
		State:     normalizeState(body.ChargerStatus.ChargingStatus),
	}, nil
}

// StartSession issues the start command and polls the charger until the
// session is visibly charging. An exhausted poll budget is reported as the
// ambiguous allotted-time timeout: the vendor accepted the command, so the
// session may still come up after we stop looking.
func (c *Client) StartSession(ctx context.Context, stationID string) error {
	payload := map[string]any{"start_session": map[string]any{"device_id": idValue(stationID)}}
	if _, err := c.post(ctx, corecp.OpStartSession, payload); err != nil {
		return err
	}
	interval := time.Duration(c.cfg.StartPollSeconds) * time.Second
	for attempt := 0; attempt < c.cfg.StartPollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &corecp.CommError{Op: corecp.OpStartSession, Reason: "canceled", Err: err}
		}
		c.sleep(interval)
		status, err := c.GetStatus(ctx, stationID)
		if err != nil {
			return err
		}
		if status.Charging() {
			c.log.Debugf("session start confirmed after %d polls", attempt+1)
			return nil
		}
	}
	return &corecp.CommError{
		Op:      corecp.OpStartSession,
		Timeout: true,
		Reason:  "session failed to start in time allotted",
	}
}

// FetchActivityPage returns one raw page of the account's session history.
func (c *Client) FetchActivityPage(ctx context.Context, req corecp.ActivityPageRequest) (json.RawMessage, error) {
	page := map[string]any{
		"page_size":                      req.PageSize,
		"show_address_for_home_sessions": true,
	}
	if req.PageOffset != "" {
		page["page_offset"] = req.PageOffset
	}
	return c.post(ctx, corecp.OpActivityPage, map[string]any{"charging_activity_monthly": page})
}

// SessionActivity returns the raw detail blob for one session. includeSamples
// asks the vendor to inline the per-interval power curve, which is an order of
// magnitude larger than the bare summary.
func (c *Client) SessionActivity(ctx context.Context, sessionID string, includeSamples bool) (json.RawMessage, error) {
	payload := map[string]any{
		"charging_status": map[string]any{
			"mfhs":             map[string]any{},
			"session_id":       idValue(sessionID),
			"with_update_data": includeSamples,
		},
	}
	return c.post(ctx, corecp.OpSessionData, payload)
}

// login exchanges the account credentials for a session token and persists it
// for the next run.
func (c *Client) login(ctx context.Context) error {
	body := map[string]string{
		"username":   c.cfg.Username,
		"password":   c.cfg.Password,
		"grant_type": "password",
	}
	raw, status, err := c.roundTrip(ctx, corecp.OpLogin, c.cfg.LoginURL, body, "")
	if err != nil {
		return &corecp.CommError{Op: corecp.OpLogin, Err: err}
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &corecp.AuthError{Reason: vendorReason(status, raw)}
	}
	if status < 200 || status >= 300 {
		return &corecp.CommError{Op: corecp.OpLogin, Reason: vendorReason(status, raw)}
	}
	var res struct {
		AuthToken   string `json:"auth_token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return &corecp.CommError{Op: corecp.OpLogin, Reason: "malformed login response", Err: err}
	}
	token := res.AuthToken
	if token == "" {
		token = res.AccessToken
	}
	if token == "" {
		return &corecp.CommError{Op: corecp.OpLogin, Reason: "no session token in login response"}
	}
	c.setToken(token)
	c.storeToken(token)
	c.log.Infof("logged in as %s", c.cfg.Username)
	return nil
}

// post sends one keyed envelope to the map-prod endpoint. A rejected session
// token triggers exactly one re-login before the request is retried.
func (c *Client) post(ctx context.Context, op string, payload any) (json.RawMessage, error) {
	return c.doPost(ctx, op, payload, true)
}

func (c *Client) doPost(ctx context.Context, op string, payload any, retryOnAuth bool) (json.RawMessage, error) {
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}
	raw, status, err := c.roundTrip(ctx, op, c.cfg.APIURL, payload, c.sessionToken())
	if err != nil {
		return nil, &corecp.CommError{Op: op, Err: err}
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if retryOnAuth {
			c.log.Warnf("session token rejected (%d), logging in again", status)
			c.clearToken()
			return c.doPost(ctx, op, payload, false)
		}
		return nil, &corecp.AuthError{Reason: vendorReason(status, raw)}
	}
	if status < 200 || status >= 300 {
		return nil, &corecp.CommError{Op: op, Reason: vendorReason(status, raw)}
	}
	return raw, nil
}

func (c *Client) roundTrip(ctx context.Context, op, url string, payload any, token string) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, c.now().Sub(start), true)
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	c.observe(op, c.now().Sub(start), err != nil || resp.StatusCode >= http.StatusBadRequest)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) observe(op string, d time.Duration, failed bool) {
	_ = c.sink.RecordAPIRequest(metrics.APIRequestEvent{Op: op, Duration: d, Failed: failed, Time: c.now()})
}

func (c *Client) sessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

func (c *Client) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	if c.cfg.TokenPath != "" {
		_ = os.Remove(c.cfg.TokenPath)
	}
}

func (c *Client) loadCachedToken() string {
	if c.cfg.TokenPath == "" {
		return ""
	}
	raw, err := os.ReadFile(c.cfg.TokenPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// storeToken is best effort: a run that cannot persist its token simply logs
// in again next time.
func (c *Client) storeToken(tok string) {
	if c.cfg.TokenPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.cfg.TokenPath), 0o755); err != nil {
		c.log.Warnf("cannot create token cache dir: %v", err)
		return
	}
	if err := os.WriteFile(c.cfg.TokenPath, []byte(tok), 0o600); err != nil {
		c.log.Warnf("cannot cache session token: %v", err)
	}
}

// decodeChargerIDs accepts both shapes the vendor has served for the home
// charger list: an object carrying a "pandas" array and a bare array.
// Elements may be numbers or strings.
func decodeChargerIDs(mfhs json.RawMessage) ([]string, error) {
	if len(mfhs) == 0 {
		return nil, nil
	}
	list := mfhs
	var wrapper struct {
		Pandas json.RawMessage `json:"pandas"`
	}
	if err := json.Unmarshal(mfhs, &wrapper); err == nil && wrapper.Pandas != nil {
		list = wrapper.Pandas
	}
	dec := json.NewDecoder(bytes.NewReader(list))
	dec.UseNumber()
	var elems []any
	if err := dec.Decode(&elems); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(elems))
	for _, e := range elems {
		switch v := e.(type) {
		case json.Number:
			ids = append(ids, v.String())
		case string:
			ids = append(ids, v)
		default:
			return nil, fmt.Errorf("unexpected charger id type %T", e)
		}
	}
	return ids, nil
}

// idValue sends numeric device and session ids as JSON numbers, which is what
// the vendor's own clients do; anything non-numeric passes through as string.
func idValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func normalizeState(s string) model.ChargingState {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return model.StateUnknown
	}
	return model.ChargingState(strings.ReplaceAll(s, " ", "_"))
}

// vendorReason extracts a human-readable failure reason from an error body.
func vendorReason(status int, raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("status %d", status)
}
