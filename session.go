package wolfcomm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// createSession opens a server-side browser session bound to the current
// authorization. The portal drops idle sessions, so the returned id has to be
// kept alive with updateSession.
func createSession(client *http.Client, baseURL, accessToken string) (int64, error) {
	payload := map[string]interface{}{
		fieldTimestamp: time.Now().Format(sessionTimestampLayout),
	}
	resp, err := postSessionRequest(client, baseURL, pathCreateSession, accessToken, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to execute create session request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("create session failed with status code: %d", resp.StatusCode)
	}

	var sr struct {
		BrowserSessionID int64 `json:"BrowserSessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return 0, fmt.Errorf("failed to decode create session response: %w", err)
	}
	return sr.BrowserSessionID, nil
}

// updateSession extends the server-side lifetime of an open session. The
// returned status is the portal's HTTP answer, or 0 when the request never
// reached it.
func updateSession(client *http.Client, baseURL, accessToken string, sessionID int64) (int, error) {
	payload := map[string]interface{}{
		fieldSessionID: sessionID,
	}
	resp, err := postSessionRequest(client, baseURL, pathUpdateSession, accessToken, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to execute update session request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("update session failed with status code: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func postSessionRequest(client *http.Client, baseURL, path, accessToken string, payload map[string]interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/%s", baseURL, path), bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header = bearerHeader(accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	return client.Do(req)
}
