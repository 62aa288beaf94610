package mapping

import (
	"encoding/json"
	"fmt"

	"apimapper/internal/config"
	"apimapper/internal/jsonpath"
	"apimapper/internal/logging"
	"apimapper/internal/state"
)

// Response is what a transport hands back. Transport failures are reported
// with Error set and Message filled instead of a Go error.
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"-"`
	Data       interface{}       `json:"data"`
	Error      bool              `json:"error,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// Result is a normalized response.
type Result struct {
	RawData         interface{}      `json:"rawData"`
	TransformedData interface{}      `json:"transformedData"`
	Rows            []interface{}    `json:"rows"`
	Pagination      state.Pagination `json:"pagination"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// Normalize applies the transformer path and extracts pagination.
//
// The transformer path selects the rows; when it is blank or misses, the
// raw data is used as is. Pagination is always read from the raw data.
// Error responses leave pagination at prev.
func Normalize(cfg config.RequestConfig, resp *Response, prev state.Pagination) Result {
	res := Result{Pagination: prev}
	if resp == nil {
		res.Rows = []interface{}{}
		res.Warnings = append(res.Warnings, "no response")
		return res
	}

	raw := resp.Data
	if raw == nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &raw); err != nil {
			raw = string(resp.Body)
		}
	}
	res.RawData = raw
	res.TransformedData = raw

	if resp.Error {
		res.Rows = []interface{}{}
		msg := resp.Message
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", resp.Status)
		}
		res.Warnings = append(res.Warnings, msg)
		return res
	}

	if path := cfg.TransformerPath; path != "" {
		var (
			v     interface{}
			found bool
		)
		if resp.Data == nil && len(resp.Body) > 0 {
			v, found = jsonpath.GetBytes(resp.Body, path)
		} else {
			v, found = jsonpath.Get(raw, path)
		}
		if found {
			res.TransformedData = v
		} else {
			logging.Logf(logging.Debug, "Normalize: transformer path '%s' not found, using raw data", path)
		}
	}

	res.Rows = Rows(res.TransformedData)
	res.Pagination = extractPagination(cfg.Pagination, raw, resp.Headers, res.TransformedData, prev)
	return res
}
