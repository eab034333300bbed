package wolfcomm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client talks to the Wolf SmartSet portal on behalf of one account. It owns
// the token and session lifecycle: authorization happens lazily on the first
// request and whenever the access token reports expired, and the server-side
// session is extended once its refresh deadline passes. A 401 or 500 response
// triggers one re-authorization and one retry. All lifecycle state is guarded
// by mu, so concurrent requests share a single authorization instead of racing
// to re-authorize.
type Client struct {
	baseURL       string
	tokenProvider TokenProvider
	httpClient    *http.Client
	clientFactory func() *http.Client
	expertMode    bool
	region        string
	log           zerolog.Logger
	texts         *localizer
	textsOnce     sync.Once

	mu                sync.Mutex
	tokens            *Tokens
	sessionID         int64
	sessionRefreshDue time.Time
	lastAccess        map[int64]*string
	lastFailed        bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient supplies a fixed HTTP client. Mutually exclusive with
// WithHTTPClientFactory.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithHTTPClientFactory supplies a factory consulted for every request, for
// callers that rotate transports. Mutually exclusive with WithHTTPClient.
func WithHTTPClientFactory(factory func() *http.Client) Option {
	return func(c *Client) { c.clientFactory = factory }
}

// WithExpertMode switches parameter discovery to the expert GUI layout, which
// exposes every descriptor in the document instead of the default tab views.
func WithExpertMode() Option {
	return func(c *Client) { c.expertMode = true }
}

// WithRegion selects the localization region for parameter display names.
// The default is "en".
func WithRegion(region string) Option {
	return func(c *Client) { c.region = region }
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTokenProvider replaces the portal password-grant provider, e.g. for
// accounts behind a separate identity server.
func WithTokenProvider(provider TokenProvider) Option {
	return func(c *Client) { c.tokenProvider = provider }
}

// NewClient builds a portal client for the given account credentials. Nothing
// is fetched until the first operation runs.
func NewClient(username, password string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		region:     fallbackRegion,
		log:        zerolog.Nop(),
		lastAccess: make(map[int64]*string),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient != nil && c.clientFactory != nil {
		return nil, ErrClientConfig
	}
	if c.httpClient == nil && c.clientFactory == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.tokenProvider == nil {
		c.tokenProvider = &passwordTokenProvider{
			username: username,
			password: password,
			tokenURL: fmt.Sprintf("%s/%s", c.baseURL, pathToken),
		}
	}
	c.texts = newLocalizer(c.client, c.log)

	return c, nil
}

// client returns the HTTP client for the next request, consulting the factory
// when one was configured.
func (c *Client) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return c.clientFactory()
}

// LastFailed reports whether the most recent request cycle ended in a failed
// retry. Pollers use it to mark data as possibly stale.
func (c *Client) LastFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFailed
}

// ListDevices returns the heating systems registered to the account.
func (c *Client) ListDevices() ([]Device, error) {
	body, err := c.request(http.MethodGet, pathSystemList, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	var devices []Device
	if err := json.Unmarshal(body, &devices); err != nil {
		return nil, &FetchError{Payload: body, Err: fmt.Errorf("failed to decode system list: %w", err)}
	}

	c.log.Debug().Int("count", len(devices)).Msg("fetched system list")
	return devices, nil
}

// GetSystemState reports whether the system's gateway is currently online.
func (c *Client) GetSystemState(systemID, gatewayID int64) (bool, error) {
	payload := map[string]interface{}{
		fieldSystemList: []map[string]interface{}{
			{fieldSystemID: systemID, fieldGatewayID: gatewayID},
		},
	}
	body, err := c.request(http.MethodPost, pathSystemStateList, nil, payload, nil)
	if err != nil {
		return false, err
	}

	var states []systemState
	if err := json.Unmarshal(body, &states); err != nil {
		return false, &FetchError{Payload: body, Err: fmt.Errorf("failed to decode system state list: %w", err)}
	}
	if len(states) == 0 {
		return false, &FetchError{Payload: body, Err: fmt.Errorf("system state list is empty")}
	}
	return states[0].GatewayState.IsOnline, nil
}

// GetParameters fetches the device's GUI description and flattens it into the
// typed parameter list. Display names are localized with the region's text
// resource, loaded on first use.
func (c *Client) GetParameters(gatewayID, systemID int64) ([]Parameter, error) {
	c.ensureLocalization()

	query := url.Values{}
	query.Set(fieldGatewayID, strconv.FormatInt(gatewayID, 10))
	query.Set(fieldSystemID, strconv.FormatInt(systemID, 10))

	body, err := c.request(http.MethodGet, pathGuiDescription, query, nil, nil)
	if err != nil {
		return nil, err
	}

	doc, err := decodeTree(body)
	if err != nil {
		return nil, &FetchError{Payload: body, Err: err}
	}

	var flattened []Parameter
	if c.expertMode {
		flattened = flattenViews([][]*Parameter{mapExpertParameters(doc)})
	} else {
		views, err := tabViews(doc)
		if err != nil {
			return nil, &FetchError{Payload: body, Err: err}
		}
		mapped := make([][]*Parameter, 0, len(views))
		for _, view := range views {
			mapped = append(mapped, mapView(view))
		}
		flattened = flattenViews(mapped)
	}

	for i := range flattened {
		flattened[i].Name = displayName(flattened[i].Name, c.texts.Lookup)
	}

	params := dedupeParameters(flattened)
	c.log.Debug().Int64("system_id", systemID).Int("count", len(params)).Msg("fetched parameters")
	return params, nil
}

// GetParameterValues reads live values for the given parameters, one portal
// request per bundle. Each bundle keeps its own last-access cursor so
// subsequent reads only return what changed. An error payload on any bundle
// aborts the whole read.
func (c *Client) GetParameterValues(gatewayID, systemID int64, params []Parameter) ([]Value, error) {
	var values []Value
	for _, b := range partitionByBundle(params) {
		payload := map[string]interface{}{
			fieldBundleID:     b.id,
			fieldBundle:       false,
			fieldValueIDList:  b.valueIDs,
			fieldGatewayID:    gatewayID,
			fieldSystemID:     systemID,
			fieldGuiIDChanged: false,
			fieldLastAccess:   c.bundleCursor(b.id),
		}
		body, err := c.request(http.MethodPost, pathParameterValues, nil, payload, nil)
		if err != nil {
			return nil, err
		}

		var env valueEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, &FetchError{Payload: body, Err: fmt.Errorf("failed to decode parameter values: %w", err)}
		}
		if env.hasError() {
			return nil, env.readError(body)
		}

		c.setBundleCursor(b.id, env.LastAccess)

		for _, v := range env.Values {
			value, ok := rawString(v.Value)
			if !ok {
				continue
			}
			state, _ := rawString(v.State)
			values = append(values, Value{ValueID: v.ValueID, Value: value, State: state})
		}
	}

	c.log.Debug().Int64("system_id", systemID).Int("count", len(values)).Msg("fetched parameter values")
	return values, nil
}

// WriteParameterValue submits one value/state pair. Writes go through the
// default bundle regardless of where the parameter was discovered.
func (c *Client) WriteParameterValue(gatewayID, systemID, valueID int64, state string) error {
	payload := map[string]interface{}{
		fieldBundleID:  defaultBundleID,
		fieldGatewayID: gatewayID,
		fieldSystemID:  systemID,
		fieldWriteParameterValues: []map[string]interface{}{
			{fieldValueID: valueID, fieldState: state},
		},
	}
	body, err := c.request(http.MethodPost, pathWriteParameters, nil, payload, nil)
	if err != nil {
		return &WriteError{Err: err}
	}

	var env valueEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &WriteError{Payload: body, Err: fmt.Errorf("failed to decode write response: %w", err)}
	}
	if env.hasError() {
		return env.writeError(body)
	}

	c.log.Debug().Int64("value_id", valueID).Str("state", state).Msg("wrote parameter value")
	return nil
}

// CloseSystem releases the server-side device connection. Call it when the
// client is done with the portal, e.g. on shutdown.
func (c *Client) CloseSystem() error {
	if _, err := c.request(http.MethodPost, pathCloseSystem, nil, map[string]interface{}{}, nil); err != nil {
		return err
	}
	c.log.Debug().Msg("closed system")
	return nil
}

// ensureLocalization loads the region's text resource once, before the first
// parameter fetch. Concurrent callers wait for the load to finish instead of
// localizing against a half-built mapping. Failures degrade to raw portal
// names and never fail the caller.
func (c *Client) ensureLocalization() {
	c.textsOnce.Do(func() {
		c.texts.Load(c.region)
	})
}

// request runs one authorized portal call. It enforces the ordering the
// portal expects: valid tokens, a live session whose refresh deadline has not
// lapsed, and the session id injected into any JSON body. A 401 or 500
// answer re-authorizes and retries exactly once; the retry carries the fresh
// session id.
func (c *Client) request(method, path string, query url.Values, body map[string]interface{}, headers http.Header) (json.RawMessage, error) {
	if err := c.ensureAuthorized(); err != nil {
		return nil, err
	}

	resp, err := c.execute(method, path, query, body, headers)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusUnauthorized || resp.status == http.StatusInternalServerError {
		c.log.Info().Int("status", resp.status).Str("path", path).Msg("re-authorizing and retrying request")
		if err := c.reauthorize(); err != nil {
			c.setLastFailed(true)
			return nil, err
		}
		retry, err := c.execute(method, path, query, body, headers)
		if err != nil {
			c.setLastFailed(true)
			return nil, &FetchError{Err: err}
		}
		if retry.status == http.StatusUnauthorized || retry.status == http.StatusInternalServerError {
			c.setLastFailed(true)
			return nil, &FetchError{Payload: retry.body, Err: fmt.Errorf("request failed again with status code: %d", retry.status)}
		}
		c.setLastFailed(false)
		return retry.body, nil
	}

	c.setLastFailed(false)
	return resp.body, nil
}

type portalResponse struct {
	status int
	body   json.RawMessage
}

// execute performs a single HTTP exchange with the portal. Caller-supplied
// headers are applied last and replace the defaults key by key, so nothing
// the caller sets is dropped.
func (c *Client) execute(method, path string, query url.Values, body map[string]interface{}, headers http.Header) (*portalResponse, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload := make(map[string]interface{}, len(body)+1)
		for k, v := range body {
			payload[k] = v
		}
		payload[fieldSessionID] = c.currentSessionID()
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header = bearerHeader(c.currentAccessToken())
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, vals := range headers {
		req.Header.Del(key)
		for _, v := range vals {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("portal request")

	return &portalResponse{status: resp.StatusCode, body: raw}, nil
}

// ensureAuthorized makes the next request eligible to run: authorize when the
// tokens are missing or expired, then extend the session once its refresh
// deadline has passed. A keep-alive the portal answers with 401 or 500 means
// the session is gone server-side; the full authorization transition replaces
// it. Serialized so concurrent requests cannot authorize twice.
func (c *Client) ensureAuthorized() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tokens.Expired() {
		if err := c.authorizeLocked(); err != nil {
			return err
		}
	}

	if !time.Now().Before(c.sessionRefreshDue) {
		status, err := updateSession(c.client(), c.baseURL, c.tokens.AccessToken, c.sessionID)
		switch {
		case err == nil:
			c.sessionRefreshDue = time.Now().Add(sessionRefreshInterval)
			c.log.Debug().Int64("session_id", c.sessionID).Msg("session extended")
		case status == http.StatusUnauthorized || status == http.StatusInternalServerError:
			c.log.Info().Int("status", status).Int64("session_id", c.sessionID).Msg("session rejected, re-authorizing")
			if err := c.authorizeLocked(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("failed to refresh session: %w", err)
		}
	}
	return nil
}

func (c *Client) reauthorize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorizeLocked()
}

// authorizeLocked runs the full authorization transition: fresh tokens, a new
// session, and a reset refresh deadline. Callers hold mu.
func (c *Client) authorizeLocked() error {
	tokens, err := c.tokenProvider.Token(c.client())
	if err != nil {
		return err
	}
	sessionID, err := createSession(c.client(), c.baseURL, tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	c.tokens = tokens
	c.sessionID = sessionID
	c.sessionRefreshDue = time.Now().Add(sessionRefreshInterval)
	c.log.Debug().Int64("session_id", sessionID).Msg("authorized new session")
	return nil
}

func (c *Client) currentSessionID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) currentAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken
}

func (c *Client) setLastFailed(failed bool) {
	c.mu.Lock()
	c.lastFailed = failed
	c.mu.Unlock()
}

func (c *Client) bundleCursor(bundleID int64) *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAccess[bundleID]
}

func (c *Client) setBundleCursor(bundleID int64, cursor *string) {
	c.mu.Lock()
	c.lastAccess[bundleID] = cursor
	c.mu.Unlock()
}

// bearerHeader builds the base header set for an authorized portal request.
func bearerHeader(accessToken string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+accessToken)
	h.Set("Accept", "application/json")
	return h
}
