package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/squint/internal/aggregate"
	"github.com/five82/squint/internal/prefs"
)

// View represents the current active view.
type View int

const (
	ViewTraffic View = iota
	ViewDomains
	ViewClients
	ViewRecent
)

var viewNames = []string{"Traffic", "Domains", "Clients", "Recent"}

func (v View) String() string {
	if int(v) < len(viewNames) {
		return viewNames[v]
	}
	return "Unknown"
}

// chromeHeight is the number of rows used by the header and tab bar.
const chromeHeight = 2

// Options configures the UI.
type Options struct {
	Context   context.Context
	Source    Source
	Origin    string // shown in the header: log path or remote address
	PollTick  time.Duration
	ThemeName string
	Window    string
	PrefsPath string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	source    Source
	origin    string
	prefsPath string
	pollTick  time.Duration
	keys      keyMap

	// UI state
	theme       Theme
	currentView View
	window      aggregate.Window
	width       int
	height      int
	ready       bool
	viewport    viewport.Model
	showHelp    bool

	// Data state
	data        dashboardData
	hasData     bool
	lastErr     error
	lastUpdated time.Time
	refreshing  bool
	flash       string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = 2 * time.Second
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = themeOrder[0]
	}

	window, err := aggregate.ParseWindow(opts.Window)
	if err != nil || (window != aggregate.Day && window != aggregate.Month) {
		window = aggregate.Day
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	return Model{
		ctx:         ctx,
		source:      opts.Source,
		origin:      opts.Origin,
		prefsPath:   prefsPath,
		pollTick:    pollTick,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(themeName),
		currentView: ViewTraffic,
		window:      window,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.source != nil {
		cmds = append(cmds, fetchCmd(m.ctx, m.source, m.window))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		bodyHeight := max(m.height-chromeHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, bodyHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = bodyHeight
		}
		m.updateContent()
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.source != nil {
			cmds = append(cmds, fetchCmd(m.ctx, m.source, m.window))
		}
		cmds = append(cmds, tickCmd(m.pollTick))
		return m, tea.Batch(cmds...)

	case dataMsg:
		m.lastUpdated = msg.data.fetchedAt
		if msg.err != nil {
			// Keep the last good data on screen.
			m.lastErr = msg.err
			return m, nil
		}
		m.lastErr = nil
		m.data = msg.data
		m.hasData = true
		m.updateContent()
		return m, nil

	case refreshDoneMsg:
		m.refreshing = false
		switch {
		case msg.err != nil:
			m.flash = "refresh failed: " + msg.err.Error()
		case msg.result.InFlight:
			m.flash = "refresh already running"
		default:
			m.flash = fmt.Sprintf("refreshed %d entries, %d clients", msg.result.Entries, msg.result.Clients)
		}
		return m, fetchCmd(m.ctx, m.source, m.window)
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	return b.String()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		m.updateContent()
		return m, nil

	case key.Matches(msg, m.keys.ToggleWindow):
		if m.window == aggregate.Day {
			m.window = aggregate.Month
		} else {
			m.window = aggregate.Day
		}
		m.savePrefs()
		if m.source == nil {
			return m, nil
		}
		return m, fetchCmd(m.ctx, m.source, m.window)

	case key.Matches(msg, m.keys.Refresh):
		if m.refreshing || m.source == nil {
			return m, nil
		}
		m.refreshing = true
		m.flash = "refreshing…"
		return m, refreshCmd(m.ctx, m.source)

	case key.Matches(msg, m.keys.Tab):
		m.switchView((m.currentView + 1) % View(len(viewNames)))
		return m, nil

	case key.Matches(msg, m.keys.ShiftTab):
		m.switchView((m.currentView + View(len(viewNames)) - 1) % View(len(viewNames)))
		return m, nil

	case key.Matches(msg, m.keys.ViewTraffic):
		m.switchView(ViewTraffic)
		return m, nil
	case key.Matches(msg, m.keys.ViewDomains):
		m.switchView(ViewDomains)
		return m, nil
	case key.Matches(msg, m.keys.ViewClients):
		m.switchView(ViewClients)
		return m, nil
	case key.Matches(msg, m.keys.ViewRecent):
		m.switchView(ViewRecent)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.viewport.ScrollDown(1)
	case key.Matches(msg, m.keys.Up):
		m.viewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
	case key.Matches(msg, m.keys.HalfPageDown):
		m.viewport.HalfPageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.viewport.HalfPageUp()
	}
	return m, nil
}

func (m *Model) switchView(v View) {
	if m.currentView == v {
		return
	}
	m.currentView = v
	m.updateContent()
	m.viewport.GotoTop()
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, Window: m.window.Key})
}

// updateContent re-renders the active view into the viewport.
func (m *Model) updateContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderContent())
}

// renderContent renders the body of the current view.
func (m Model) renderContent() string {
	if !m.hasData {
		return m.theme.Styles().MutedText.Render("  Waiting for data…")
	}
	switch m.currentView {
	case ViewTraffic:
		return m.renderTraffic()
	case ViewDomains:
		return m.renderDomains()
	case ViewClients:
		return m.renderClients()
	case ViewRecent:
		return m.renderRecent()
	default:
		return ""
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if err != nil && m.ctx.Err() != nil {
		return nil
	}
	return err
}
