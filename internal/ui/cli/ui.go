package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	coreapp "vinec/internal/core/app"
	"vinec/internal/core/errors"
	"vinec/internal/core/ports"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxEvents = 200

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	reloadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	patchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
	file        string
	line        int
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type panelMode int

const (
	panelEvents panelMode = iota
	panelDiagnostics
)

type model struct {
	eventList  list.Model
	diagList   list.Model
	mode       panelMode
	events     []ports.UpdateEvent
	diags      map[string]errors.DiagnosticList
	stats      coreapp.Stats
	lastUpdate time.Time

	sourceJumpStatus string
}

type updateMsg struct {
	event       ports.UpdateEvent
	diagnostics errors.DiagnosticList
	stats       coreapp.Stats
}

type sourceJumpResultMsg struct {
	target string
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKeyActions(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		width := msg.Width - h
		height := msg.Height - v - 8
		if height < 5 {
			height = 5
		}
		m.eventList.SetSize(width, height)
		m.diagList.SetSize(width, height)
	case updateMsg:
		m.events = append([]ports.UpdateEvent{msg.event}, m.events...)
		if len(m.events) > maxEvents {
			m.events = m.events[:maxEvents]
		}
		// A file's diagnostics are replaced by its latest compile.
		if len(msg.diagnostics) == 0 {
			delete(m.diags, msg.event.FileID)
		} else {
			m.diags[msg.event.FileID] = msg.diagnostics
		}
		m.stats = msg.stats
		m.lastUpdate = time.Now()
		m = m.refreshItems()
	case sourceJumpResultMsg:
		if msg.err != nil {
			m.sourceJumpStatus = statusStyle.Render(fmt.Sprintf("Source jump failed: %v", msg.err))
		} else {
			m.sourceJumpStatus = statusStyle.Render(fmt.Sprintf("Opened source: %s", msg.target))
		}
	}

	var cmd tea.Cmd
	if m.mode == panelEvents {
		m.eventList, cmd = m.eventList.Update(msg)
	} else {
		m.diagList, cmd = m.diagList.Update(msg)
	}
	return m, cmd
}

func (m model) refreshItems() model {
	items := make([]list.Item, 0, len(m.events))
	for _, e := range m.events {
		items = append(items, item{
			title: fmt.Sprintf("%s  %s", kindLabel(e.Kind), filepath.Base(e.FileID)),
			desc:  eventDescription(e),
			file:  e.FileID,
			line:  1,
		})
	}
	m.eventList.SetItems(items)

	files := make([]string, 0, len(m.diags))
	for f := range m.diags {
		files = append(files, f)
	}
	sort.Strings(files)
	diagItems := []list.Item{}
	for _, f := range files {
		for _, d := range m.diags[f] {
			diagItems = append(diagItems, item{
				title: fmt.Sprintf("%s %s", d.Severity, d.Code),
				desc:  fmt.Sprintf("%s:%d:%d %s", filepath.Base(d.FileID), d.Line, d.Column, d.Message),
				file:  d.FileID,
				line:  max(1, d.Line),
			})
		}
	}
	m.diagList.SetItems(diagItems)
	return m
}

func kindLabel(kind string) string {
	switch kind {
	case "reload":
		return reloadStyle.Render("RELOAD")
	case "render", "style":
		return patchStyle.Render(strings.ToUpper(kind))
	}
	return statusStyle.Render(strings.ToUpper(kind))
}

func eventDescription(e ports.UpdateEvent) string {
	var parts []string
	if e.Component != "" {
		parts = append(parts, e.Component)
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(e.Modules) > 1 {
		parts = append(parts, fmt.Sprintf("%d modules", len(e.Modules)))
	}
	if !e.Timestamp.IsZero() {
		parts = append(parts, e.Timestamp.Local().Format("15:04:05"))
	}
	return strings.Join(parts, " | ")
}

func (m model) diagnosticCounts() (errs, warns int) {
	for _, diags := range m.diags {
		errs += len(diags.Errors())
		warns += len(diags.Warnings())
	}
	return errs, warns
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d files | %d compiles",
		m.lastUpdate.Format("15:04:05"), m.stats.Tracked, m.stats.Compiles))

	errs, warns := m.diagnosticCounts()
	var summary string
	if errs == 0 && warns == 0 {
		summary = patchStyle.Render("No diagnostics")
	} else {
		summary = fmt.Sprintf("%s | %s",
			reloadStyle.Render(fmt.Sprintf("%d errors", errs)),
			warningStyle.Render(fmt.Sprintf("%d warnings", warns)))
	}
	kinds := statusStyle.Render(fmt.Sprintf("none %d | style %d | render %d | reload %d",
		m.stats.ByKind["none"], m.stats.ByKind["style"], m.stats.ByKind["render"], m.stats.ByKind["reload"]))

	header := fmt.Sprintf("%s\n%s | %s\n%s\n", titleStyle("Vine Dev Monitor"), status, summary, kinds)
	help := renderHelp(m)

	body := m.eventList.View()
	if m.mode == panelDiagnostics {
		body = m.diagList.View()
	}
	if m.sourceJumpStatus != "" {
		body += "\n\n" + m.sourceJumpStatus
	}
	return docStyle.Render(header + "\n" + help + "\n\n" + body)
}

func renderHelp(m model) string {
	panel := "events"
	if m.mode == panelDiagnostics {
		panel = "diagnostics"
	}
	return statusStyle.Render(fmt.Sprintf("[%s] tab: switch panel | o: open in $EDITOR | c: clear events | q: quit", panel))
}

func initialModel() model {
	eventList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	eventList.Title = "Update Events"
	eventList.SetShowStatusBar(false)
	eventList.SetFilteringEnabled(true)

	diagList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	diagList.Title = "Diagnostics"
	diagList.SetShowStatusBar(false)
	diagList.SetFilteringEnabled(true)

	return model{
		eventList:  eventList,
		diagList:   diagList,
		mode:       panelEvents,
		diags:      make(map[string]errors.DiagnosticList),
		stats:      coreapp.Stats{ByKind: map[string]int{}},
		lastUpdate: time.Now(),
	}
}
