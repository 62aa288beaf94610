// Package panel hosts one request configuration together with its live
// table state and drives the mapping engine through a fetch cycle.
package panel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"apimapper/internal/config"
	"apimapper/internal/executor"
	"apimapper/internal/logging"
	"apimapper/internal/mapping"
	"apimapper/internal/state"
	"apimapper/internal/store"
)

// DefaultPageSize is used when a panel starts without pagination state.
const DefaultPageSize = 10

// Panel owns a request config, the sort history and the sticky filter.
// Callers serialize triggers; the mutex only makes a panel safe to share.
type Panel struct {
	mu sync.Mutex

	cfg        config.RequestConfig
	pagination state.Pagination
	sort       *state.Sort
	filter     interface{}

	composer *mapping.Composer
	sticky   *mapping.FilterSubmission
	filters  mapping.FilterComposer
	sender   executor.Sender

	fields []config.FieldInfo
}

// Option configures a Panel.
type Option func(*Panel)

// WithFilterComposer sets the collaborator used by SubmitConditions.
func WithFilterComposer(fc mapping.FilterComposer) Option {
	return func(p *Panel) { p.filters = fc }
}

// WithSender sets the transport used by Execute.
func WithSender(s executor.Sender) Option {
	return func(p *Panel) { p.sender = s }
}

// WithPagination sets the initial pagination state.
func WithPagination(pag state.Pagination) Option {
	return func(p *Panel) { p.pagination = pag }
}

// New creates a panel for a copy of cfg.
func New(cfg config.RequestConfig, opts ...Option) *Panel {
	rc := cfg.Clone()
	config.ApplyRequestDefaults(&rc)
	p := &Panel{
		cfg:        rc,
		pagination: state.Pagination{Current: 1, PageSize: DefaultPageSize},
		composer:   mapping.NewComposer(),
		filters:    mapping.LocalComposer{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromTemplate restores a panel from a saved template.
func FromTemplate(tpl config.DataSourceTemplate, opts ...Option) *Panel {
	p := New(tpl.Config, opts...)
	p.fields = append([]config.FieldInfo(nil), tpl.Fields...)
	return p
}

// Snapshot is a copy of a panel's state.
type Snapshot struct {
	Config     config.RequestConfig      `json:"config"`
	Pagination state.Pagination          `json:"pagination"`
	Sort       *state.Sort               `json:"sort,omitempty"`
	Filter     interface{}               `json:"filter,omitempty"`
	Submission *mapping.FilterSubmission `json:"submission,omitempty"`
	Fields     []config.FieldInfo        `json:"fields,omitempty"`
}

// Snapshot returns a copy of the current state.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		Config:     p.cfg.Clone(),
		Pagination: p.pagination,
		Filter:     p.filter,
		Fields:     append([]config.FieldInfo(nil), p.fields...),
	}
	if p.sort != nil {
		srt := *p.sort
		s.Sort = &srt
	}
	if p.sticky != nil {
		sub := *p.sticky
		s.Submission = &sub
	}
	return s
}

// SetPagination replaces the pagination state.
func (p *Panel) SetPagination(pag state.Pagination) {
	p.mu.Lock()
	p.pagination = pag
	p.mu.Unlock()
}

// SetSort replaces the sorted column. Nil or an empty order cancels sorting.
func (p *Panel) SetSort(s *state.Sort) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s == nil {
		p.sort = nil
		return
	}
	srt := *s
	p.sort = &srt
}

// SetFilter replaces the filter expression. The request is only affected
// after SubmitConditions.
func (p *Panel) SetFilter(expr interface{}) {
	p.mu.Lock()
	p.filter = expr
	p.mu.Unlock()
}

// SetVariables replaces the custom variables.
func (p *Panel) SetVariables(vars []config.Variable) {
	p.mu.Lock()
	p.cfg.Variables = append([]config.Variable(nil), vars...)
	config.ApplyRequestDefaults(&p.cfg)
	p.mu.Unlock()
}

// SetConfig replaces the request config and forgets the sort history and
// the sticky filter.
func (p *Panel) SetConfig(cfg config.RequestConfig) {
	rc := cfg.Clone()
	config.ApplyRequestDefaults(&rc)
	p.mu.Lock()
	p.cfg = rc
	p.sticky = nil
	p.composer.Reset()
	p.mu.Unlock()
}

// SubmitConditions composes the current filter and caches it for every
// following request. A failed composition leaves the cache unchanged.
// Client-mode filters are applied locally, so the cache is cleared instead.
func (p *Panel) SubmitConditions(ctx context.Context) (*mapping.FilterSubmission, error) {
	p.mu.Lock()
	req := mapping.NewFilterRequest(p.cfg.Filter, p.cfg.Variables, p.filter, p.pagination)
	fc := p.filters
	p.mu.Unlock()

	if !strings.EqualFold(req.Mode, config.ModeServer) {
		p.mu.Lock()
		p.sticky = nil
		p.mu.Unlock()
		logging.Logf(logging.Debug, "Panel: filter mode '%s' is applied locally, nothing submitted", req.Mode)
		return nil, nil
	}

	sub, err := fc.ComposeFilter(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("composing filter conditions: %w", err)
	}

	p.mu.Lock()
	p.sticky = sub
	p.mu.Unlock()
	for _, w := range sub.Warnings {
		logging.Logf(logging.Warning, "Panel: %s", w)
	}
	return sub, nil
}

// Compose applies pagination, sort and the sticky filter to the config and
// returns the outbound request.
func (p *Panel) Compose() (mapping.Descriptor, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.composeLocked()
}

func (p *Panel) composeLocked() (mapping.Descriptor, []string) {
	return p.composer.Build(&p.cfg, p.inputsLocked(), p.sticky)
}

func (p *Panel) inputsLocked() mapping.Inputs {
	return mapping.Inputs{Pagination: p.pagination, Sort: p.sort, Filter: p.filter}
}

// Execute composes the request, sends it and normalizes the response.
// Concerns in client mode are applied to the fetched rows; in client
// pagination mode the total becomes the filtered row count.
func (p *Panel) Execute(ctx context.Context) (mapping.Result, error) {
	p.mu.Lock()
	if p.sender == nil {
		p.mu.Unlock()
		return mapping.Result{}, fmt.Errorf("panel has no transport configured")
	}
	desc, warnings := p.composeLocked()
	cfg := p.cfg.Clone()
	in := p.inputsLocked()
	sender := p.sender
	p.mu.Unlock()

	logging.Logf(logging.Info, "Panel: executing %s %s", desc.Method, desc.URL)
	resp := executor.Do(ctx, sender, desc)

	res := mapping.Normalize(cfg, resp, in.Pagination)
	res.Warnings = append(warnings, res.Warnings...)

	if resp != nil && !resp.Error {
		res.Rows, res.Pagination = applyClientModes(cfg, in, res.Rows, res.Pagination)
	}

	p.mu.Lock()
	p.pagination = res.Pagination
	p.mu.Unlock()
	return res, nil
}

// applyClientModes filters, sorts and pages rows for the concerns that are
// not handled by the server.
func applyClientModes(cfg config.RequestConfig, in mapping.Inputs, rows []interface{}, pag state.Pagination) ([]interface{}, state.Pagination) {
	local := mapping.Inputs{Pagination: pag}
	if !strings.EqualFold(cfg.Filter.Mode, config.ModeServer) {
		local.Filter = in.Filter
	}
	if !strings.EqualFold(cfg.Sort.Mode, config.ModeServer) {
		local.Sort = in.Sort
	}
	clientPaging := !strings.EqualFold(cfg.Pagination.Mode, config.ModeServer)
	if !clientPaging {
		local.Pagination.PageSize = 0
	}

	page, filtered := mapping.ApplyLocal(rows, local)
	if clientPaging {
		pag.Total = filtered
		pag.TotalPages = 0
	}
	return page, pag
}

// SaveAs stores the current config as a named template, inferring fields
// from rows.
func (p *Panel) SaveAs(s *store.FileStore, name string, rows []interface{}) (config.DataSourceTemplate, error) {
	p.mu.Lock()
	tpl := config.DataSourceTemplate{Name: name, Config: p.cfg.Clone()}
	if len(rows) > 0 {
		tpl.Fields = store.InferFields(rows)
	} else {
		tpl.Fields = append([]config.FieldInfo(nil), p.fields...)
	}
	p.mu.Unlock()

	saved, err := s.Save(tpl)
	if err != nil {
		return saved, err
	}
	p.mu.Lock()
	p.fields = saved.Fields
	p.mu.Unlock()
	return saved, nil
}
