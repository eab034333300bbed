package wolfcomm

import "encoding/json"

// Value is one live parameter reading. Value and State keep the portal's
// string form; numbers come through unquoted JSON and are rendered verbatim.
type Value struct {
	ValueID int64
	Value   string
	State   string
}

// valueEnvelope is the wire shape shared by GetParameterValues and
// WriteParameterValues responses. The error fields ride along on an HTTP 200.
type valueEnvelope struct {
	LastAccess   *string         `json:"LastAccess"`
	Values       []wireValue     `json:"Values"`
	ErrorCode    json.RawMessage `json:"ErrorCode"`
	ErrorType    json.RawMessage `json:"ErrorType"`
	ErrorMessage string          `json:"ErrorMessage"`
}

type wireValue struct {
	ValueID int64           `json:"ValueId"`
	Value   json.RawMessage `json:"Value"`
	State   json.RawMessage `json:"State"`
}

// hasError reports whether the portal attached an error payload to an
// otherwise successful response.
func (e *valueEnvelope) hasError() bool {
	return len(e.ErrorCode) > 0 || len(e.ErrorType) > 0
}

// readError converts an error payload from the read path into its typed
// error. The portal's known read failure gets its own type so callers can
// retry with a fresh parameter list.
func (e *valueEnvelope) readError(payload json.RawMessage) error {
	if e.ErrorMessage == errMsgReadParameter {
		return &ParameterReadError{Payload: payload}
	}
	return &FetchError{Payload: payload}
}

// writeError is the write-path counterpart of readError.
func (e *valueEnvelope) writeError(payload json.RawMessage) error {
	if e.ErrorMessage == errMsgReadParameter {
		return &ParameterWriteError{Payload: payload}
	}
	return &WriteError{Payload: payload}
}

// bundle groups the value ids to be read in one portal request.
type bundle struct {
	id       int64
	valueIDs []int64
}

// partitionByBundle splits parameters into per-bundle reads, preserving the
// order in which each bundle first appears and the value-id order within it.
func partitionByBundle(params []Parameter) []bundle {
	index := make(map[int64]int)
	var bundles []bundle
	for _, p := range params {
		id := p.BundleID
		if id == 0 {
			id = defaultBundleID
		}
		i, ok := index[id]
		if !ok {
			i = len(bundles)
			index[id] = i
			bundles = append(bundles, bundle{id: id})
		}
		bundles[i].valueIDs = append(bundles[i].valueIDs, p.ValueID)
	}
	return bundles
}

// rawString renders a wire value as a string. Absent and null values report
// ok=false; the portal marks unreadable parameters that way.
func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}
