package ui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/squint/internal/aggregate"
	"github.com/five82/squint/internal/api"
)

// Source supplies dashboard data. Local wraps an *api.Service over the local
// cache; *client.Client reads a remote squint API.
type Source interface {
	Rollup(ctx context.Context, w aggregate.Window) (api.RollupResponse, error)
	Clients(ctx context.Context) (api.ClientsResponse, error)
	Recent(ctx context.Context, n int) (api.RecentResponse, error)
	Status(ctx context.Context) (api.StatusResponse, error)
	Refresh(ctx context.Context) (api.RefreshResponse, error)
}

// Local adapts an in-process service to Source.
func Local(svc *api.Service) Source {
	return localSource{svc: svc}
}

type localSource struct {
	svc *api.Service
}

func (l localSource) Rollup(ctx context.Context, w aggregate.Window) (api.RollupResponse, error) {
	return l.svc.Rollup(ctx, w), nil
}

func (l localSource) Clients(ctx context.Context) (api.ClientsResponse, error) {
	return l.svc.Clients(ctx), nil
}

func (l localSource) Recent(ctx context.Context, n int) (api.RecentResponse, error) {
	return l.svc.Recent(ctx, n), nil
}

func (l localSource) Status(context.Context) (api.StatusResponse, error) {
	return l.svc.Status(), nil
}

func (l localSource) Refresh(ctx context.Context) (api.RefreshResponse, error) {
	return l.svc.Refresh(ctx)
}

const (
	fetchTimeout = 10 * time.Second
	recentLimit  = 100
)

// dashboardData is one consistent fetch of everything the views render.
type dashboardData struct {
	rollup    api.RollupResponse
	clients   api.ClientsResponse
	recent    api.RecentResponse
	status    api.StatusResponse
	fetchedAt time.Time
}

// Messages

type tickMsg time.Time

type dataMsg struct {
	data dashboardData
	err  error
}

type refreshDoneMsg struct {
	result api.RefreshResponse
	err    error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchCmd(ctx context.Context, src Source, w aggregate.Window) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		var (
			data dashboardData
			errs []error
			err  error
		)
		if data.rollup, err = src.Rollup(ctx, w); err != nil {
			errs = append(errs, err)
		}
		if data.clients, err = src.Clients(ctx); err != nil {
			errs = append(errs, err)
		}
		if data.recent, err = src.Recent(ctx, recentLimit); err != nil {
			errs = append(errs, err)
		}
		if data.status, err = src.Status(ctx); err != nil {
			errs = append(errs, err)
		}
		data.fetchedAt = time.Now()
		return dataMsg{data: data, err: errors.Join(errs...)}
	}
}

func refreshCmd(ctx context.Context, src Source) tea.Cmd {
	return func() tea.Msg {
		res, err := src.Refresh(ctx)
		return refreshDoneMsg{result: res, err: err}
	}
}
