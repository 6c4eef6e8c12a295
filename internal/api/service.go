package api

import (
	"context"

	"github.com/five82/squint/internal/accesslog"
	"github.com/five82/squint/internal/aggregate"
	"github.com/five82/squint/internal/state"
)

// Backend is the cache surface the API reads. *state.Cache implements it.
type Backend interface {
	Get(ctx context.Context, w aggregate.Window) state.View
	Clients(ctx context.Context) state.ClientsView
	ClientDetail(ctx context.Context, addr string, w aggregate.Window) state.DetailView
	Recent(ctx context.Context, n int) state.RecentView
	Status() state.Status
	Refresh(ctx context.Context) (state.RefreshResult, error)
}

// Service converts Backend views into wire types. Only Refresh can fail; the
// other methods report read problems in the Error field.
type Service struct {
	backend Backend
}

// NewService wraps a Backend.
func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

// Rollup returns the aggregates of window w.
func (s *Service) Rollup(ctx context.Context, w aggregate.Window) RollupResponse {
	view := s.backend.Get(ctx, w)
	r := view.Rollup
	return RollupResponse{
		Window:       w.Key,
		Source:       string(view.Source),
		State:        view.State.String(),
		GeneratedAt:  view.GeneratedAt,
		Since:        r.Since,
		Granularity:  r.Granularity.String(),
		EntriesCount: len(r.Entries),
		Buckets:      nonNil(r.Buckets),
		Monthly:      nonNil(r.Monthly),
		Domains:      nonNil(r.Domains),
		Summary:      r.Summary,
		Error:        errString(view.Err),
	}
}

// Entries returns the raw entries of window w in ascending order.
func (s *Service) Entries(ctx context.Context, w aggregate.Window) EntriesResponse {
	view := s.backend.Get(ctx, w)
	return EntriesResponse{
		Window:      w.Key,
		Source:      string(view.Source),
		GeneratedAt: view.GeneratedAt,
		Entries:     nonNil[accesslog.Entry](view.Rollup.Entries),
		Error:       errString(view.Err),
	}
}

// Clients returns clients active in the trailing month, busiest first.
func (s *Service) Clients(ctx context.Context) ClientsResponse {
	view := s.backend.Clients(ctx)
	return ClientsResponse{
		Source:      string(view.Source),
		GeneratedAt: view.GeneratedAt,
		Clients:     aggregate.ActiveClients(view.Clients),
		Error:       errString(view.Err),
	}
}

// ClientDetail returns one page of a client's history. Pages are 1-based;
// a page past the end is empty.
func (s *Service) ClientDetail(ctx context.Context, addr string, w aggregate.Window, page int) ClientDetailResponse {
	if page < 1 {
		page = 1
	}
	view := s.backend.ClientDetail(ctx, addr, w)
	d := view.Detail
	total := len(d.Connections)
	pages := (total + DetailPageSize - 1) / DetailPageSize
	start := total
	if page <= pages {
		start = (page - 1) * DetailPageSize
	}
	end := min(start+DetailPageSize, total)

	return ClientDetailResponse{
		ClientAddress: addr,
		Window:        w.Key,
		Source:        string(view.Source),
		Page:          page,
		Pages:         pages,
		PerPage:       DetailPageSize,
		Total:         total,
		Connections:   nonNil(d.Connections[start:end]),
		Buckets:       nonNil(d.Buckets),
		Domains:       nonNil(d.Domains),
		Summary:       d.Summary,
		Error:         errString(view.Err),
	}
}

// Recent returns up to n of the newest requests.
func (s *Service) Recent(ctx context.Context, n int) RecentResponse {
	view := s.backend.Recent(ctx, n)
	return RecentResponse{
		Connections: nonNil(view.Connections),
		Error:       errString(view.Err),
	}
}

// Status reports the cache state.
func (s *Service) Status() StatusResponse {
	st := s.backend.Status()
	return StatusResponse{
		State:               st.State.String(),
		GeneratedAt:         st.GeneratedAt,
		ExpiresAt:           st.ExpiresAt,
		Entries:             st.Entries,
		Skipped:             st.Skipped,
		LastAttempt:         st.LastAttempt,
		LastDurationMS:      st.LastDuration.Milliseconds(),
		LastError:           errString(st.LastError),
		ConsecutiveFailures: st.ConsecutiveFailures,
		Degraded:            st.Degraded(),
		Refreshing:          st.Refreshing,
	}
}

// Refresh runs a synchronous refresh.
func (s *Service) Refresh(ctx context.Context) (RefreshResponse, error) {
	res, err := s.backend.Refresh(ctx)
	if err != nil {
		return RefreshResponse{Error: err.Error()}, err
	}
	return RefreshResponse{
		Entries:  res.Entries,
		Skipped:  res.Skipped,
		Clients:  res.Clients,
		InFlight: res.InFlight,
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
