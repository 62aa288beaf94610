package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"apimapper/internal/config"
	"apimapper/internal/logging"
	"apimapper/internal/state"
	"apimapper/internal/util"
	"apimapper/internal/variables"
)

// Param is one rendered query parameter.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Descriptor is a fully composed request, ready for a transport.
type Descriptor struct {
	Method   string            `json:"method"`
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers,omitempty"`
	Params   []Param           `json:"params,omitempty"`
	Body     string            `json:"body,omitempty"`
	BodyType string            `json:"bodyType,omitempty"`
}

// FullURL returns URL with Params appended to any query it already carries.
func (d Descriptor) FullURL() (string, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return "", fmt.Errorf("invalid request URL '%s': %w", d.URL, err)
	}
	if len(d.Params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for _, p := range d.Params {
		q.Add(p.Name, p.Value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Inputs is the live state a request is composed from.
type Inputs struct {
	Pagination state.Pagination
	Sort       *state.Sort
	Filter     interface{}
}

// Composer applies pagination, sort and the sticky filter to a request
// config. It owns the sort history and the last filter key it wrote.
type Composer struct {
	Sort *SortMapper

	mu         sync.Mutex
	lastFilter *Entry
}

// NewComposer returns a composer with empty history.
func NewComposer() *Composer {
	return &Composer{Sort: NewSortMapper()}
}

// Build mutates cfg in place and returns the composed request.
//
// Pagination is applied first, then sort, then the sticky filter. Pagination
// and sort writes that collide with the filter's target key are skipped.
func (c *Composer) Build(cfg *config.RequestConfig, in Inputs, sticky *FilterSubmission) (Descriptor, []string) {
	reg := variables.New(variables.Sources{
		Custom:     cfg.Variables,
		Bindings:   cfg.Filter.OperatorBindings,
		Pagination: in.Pagination,
		Filter:     in.Filter,
	})

	pag := BuildPagination(cfg.Pagination, reg)
	srt := c.Sort.Build(cfg.Sort, in.Sort)
	flt := sticky.Fragment()

	var reserved []Entry
	if target, ok := sticky.target(); ok {
		reserved = append(reserved, target)
	}

	c.mu.Lock()
	if c.lastFilter != nil && !containsKey(reserved, *c.lastFilter) {
		flt.remove(c.lastFilter.Location, c.lastFilter.Key)
	}
	if len(reserved) > 0 {
		last := reserved[0]
		c.lastFilter = &last
	} else {
		c.lastFilter = nil
	}
	c.mu.Unlock()

	warnings := applyFragments(cfg, reserved, pag, srt)
	warnings = append(warnings, applyFragments(cfg, nil, flt)...)
	if sticky != nil {
		warnings = append(warnings, sticky.Warnings...)
	}

	for _, w := range warnings {
		logging.Logf(logging.Warning, "Compose: %s", w)
	}
	return Compose(*cfg), warnings
}

// Reset forgets sort and filter history.
func (c *Composer) Reset() {
	c.Sort.Reset()
	c.mu.Lock()
	c.lastFilter = nil
	c.mu.Unlock()
}

// Apply writes fragments into cfg in order and returns their warnings.
// Writes update the first entry with the same name or append an enabled one;
// removals delete every entry with that name.
func Apply(cfg *config.RequestConfig, frags ...Fragment) []string {
	return applyFragments(cfg, nil, frags...)
}

func applyFragments(cfg *config.RequestConfig, reserved []Entry, frags ...Fragment) []string {
	var warnings []string

	var body map[string]interface{}
	bodyUsable := false
	bodyDirty := false
	needsBody := false
	for _, f := range frags {
		for _, e := range append(append([]Entry(nil), f.Set...), f.Remove...) {
			if e.Location == config.LocationBody {
				needsBody = true
			}
		}
	}
	if needsBody && strings.EqualFold(cfg.BodyType, config.BodyJSON) {
		parsed, err := decodeBody(cfg.Body)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("request body is not a JSON object, body fields not applied: %v", err))
		} else {
			body = parsed
			bodyUsable = true
		}
	}

	for _, f := range frags {
		warnings = append(warnings, f.Warnings...)

		for _, e := range f.Remove {
			if containsKey(reserved, e) {
				continue
			}
			switch e.Location {
			case config.LocationQuery:
				removeParam(cfg, e.Key)
			case config.LocationBody:
				if bodyUsable {
					if _, ok := body[e.Key]; ok {
						delete(body, e.Key)
						bodyDirty = true
					}
				}
			}
		}

		for _, e := range f.Set {
			if containsKey(reserved, e) {
				warnings = append(warnings, fmt.Sprintf("%s key '%s' is owned by the filter, write skipped", e.Location, e.Key))
				continue
			}
			switch e.Location {
			case config.LocationQuery:
				setParam(cfg, e.Key, util.Stringify(e.Value))
			case config.LocationBody:
				if !strings.EqualFold(cfg.BodyType, config.BodyJSON) {
					warnings = append(warnings, fmt.Sprintf("body type '%s' does not take structured fields, '%s' not applied", cfg.BodyType, e.Key))
					continue
				}
				if !bodyUsable {
					continue
				}
				body[e.Key] = e.Value
				bodyDirty = true
			}
		}
	}

	if bodyDirty {
		encoded, err := json.Marshal(body)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("encoding request body: %v", err))
		} else {
			cfg.Body = string(encoded)
		}
	}
	return warnings
}

// decodeBody parses a JSON object body. A blank body is an empty object.
func decodeBody(raw string) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.UseNumber()
	if err := decoder.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w. Body snippet: %s", err, util.Snippet([]byte(raw)))
	}
	return out, nil
}

func setParam(cfg *config.RequestConfig, name, value string) {
	for i := range cfg.Params {
		if cfg.Params[i].Name == name {
			cfg.Params[i].Value = value
			cfg.Params[i].Enabled = true
			return
		}
	}
	cfg.Params = append(cfg.Params, config.QueryParam{Name: name, Value: value, Enabled: true})
}

func removeParam(cfg *config.RequestConfig, name string) {
	kept := cfg.Params[:0]
	for _, p := range cfg.Params {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	cfg.Params = kept
}

// Compose renders the enabled headers and params of cfg into a descriptor,
// expanding environment references in the URL and header values.
func Compose(cfg config.RequestConfig) Descriptor {
	d := Descriptor{
		Method:   strings.ToUpper(cfg.Method),
		URL:      util.ExpandEnvUniversal(cfg.URL),
		Body:     cfg.Body,
		BodyType: cfg.BodyType,
	}
	if d.Method == "" {
		d.Method = "GET"
	}
	for _, h := range cfg.Headers {
		if !h.Enabled || h.Name == "" {
			continue
		}
		if d.Headers == nil {
			d.Headers = make(map[string]string)
		}
		d.Headers[h.Name] = util.ExpandEnvUniversal(h.Value)
	}
	for _, p := range cfg.Params {
		if !p.Enabled || p.Name == "" {
			continue
		}
		d.Params = append(d.Params, Param{Name: p.Name, Value: p.Value})
	}
	return d
}
