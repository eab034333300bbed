package wolfcomm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// messagesPattern locates the messages object literal inside the portal's
	// localized-text script.
	messagesPattern = regexp.MustCompile(`(?s)messages:\s*(\{.*?\})\s*\}`)

	// bareKeyPattern quotes the JavaScript-style bare keys so the literal
	// becomes JSON.
	bareKeyPattern = regexp.MustCompile(`([a-zA-Z0-9_.%-]+)\s*:`)
)

// localizer resolves the portal's internal text keys to display strings. With
// no mapping loaded every key resolves to itself, so a failed load degrades to
// raw portal names instead of failing the parameter fetch.
type localizer struct {
	urlTemplate string
	client      func() *http.Client
	log         zerolog.Logger

	mu       sync.RWMutex
	messages map[string]string
}

func newLocalizer(client func() *http.Client, log zerolog.Logger) *localizer {
	return &localizer{
		urlTemplate: localizedTextURL,
		client:      client,
		log:         log,
	}
}

// Load fetches and parses the localized text resource for region. A region
// without a usable resource falls back to the base region. Load never returns
// an error; failures are logged and leave the identity mapping in place.
func (l *localizer) Load(region string) {
	if l.loadRegion(region) {
		return
	}
	if region != fallbackRegion {
		l.log.Info().Str("region", region).Str("fallback", fallbackRegion).Msg("falling back to base localization")
		l.loadRegion(fallbackRegion)
	}
}

func (l *localizer) loadRegion(region string) bool {
	text, err := l.fetchText(region)
	if err != nil {
		l.log.Warn().Err(err).Str("region", region).Msg("failed to fetch localized text")
		return false
	}
	messages, ok := extractMessages(text)
	if !ok {
		l.log.Warn().Str("region", region).Msg("localized text has no usable message table")
		return false
	}

	l.mu.Lock()
	l.messages = messages
	l.mu.Unlock()

	l.log.Debug().Str("region", region).Int("keys", len(messages)).Msg("loaded localization")
	return true
}

// fetchText downloads the script for region. Statuses other than 200 and 304
// yield an empty blob, the same as a script without a message table.
func (l *localizer) fetchText(region string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf(l.urlTemplate, region), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create localized text request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch localized text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotModified {
		return "", nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read localized text: %w", err)
	}
	return string(body), nil
}

// Lookup resolves one text key, returning the key itself when no mapping is
// loaded or the key is unknown.
func (l *localizer) Lookup(key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if text, ok := l.messages[key]; ok {
		return text
	}
	return key
}

// extractMessages pulls the messages literal out of the script and parses it.
// The blob is JavaScript, not JSON: keys are unquoted and the portal ships
// the occasional line no JSON parser accepts, so parsing goes through
// repairParse.
func extractMessages(text string) (map[string]string, bool) {
	match := messagesPattern.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	quoted := bareKeyPattern.ReplaceAllString(match[1], `"$1":`)
	return repairParse([]byte(quoted))
}

// repairParse unmarshals src, dropping the line the parser points at after
// each failure. The loop is bounded; exhausting it means the blob is beyond
// repair and the caller keeps the identity mapping.
func repairParse(src []byte) (map[string]string, bool) {
	for attempt := 0; attempt < jsonRepairAttempts; attempt++ {
		var messages map[string]string
		err := json.Unmarshal(src, &messages)
		if err == nil {
			return messages, true
		}
		offset, ok := errorOffset(err)
		if !ok {
			return nil, false
		}
		repaired, ok := dropLineAt(src, offset)
		if !ok {
			return nil, false
		}
		src = repaired
	}
	return nil, false
}

// errorOffset extracts the byte offset a JSON parse error points at.
func errorOffset(err error) (int, bool) {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return int(syntaxErr.Offset), true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return int(typeErr.Offset), true
	}
	return 0, false
}

// dropLineAt removes the whole line containing byte offset. Offsets past the
// end of src count as the last line. Returns ok=false when src is a single
// line, since stripping it would leave nothing to parse.
func dropLineAt(src []byte, offset int) ([]byte, bool) {
	if len(src) == 0 {
		return nil, false
	}
	if offset >= len(src) {
		offset = len(src) - 1
	}
	if offset < 0 {
		offset = 0
	}

	start := bytes.LastIndexByte(src[:offset], '\n') + 1
	end := len(src)
	if idx := bytes.IndexByte(src[offset:], '\n'); idx >= 0 {
		end = offset + idx + 1
	}
	if start == 0 && end == len(src) {
		return nil, false
	}

	out := make([]byte, 0, len(src)-(end-start))
	out = append(out, src[:start]...)
	out = append(out, src[end:]...)
	return out, true
}
