package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

func handleKeyActions(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	active := &m.eventList
	if m.mode == panelDiagnostics {
		active = &m.diagList
	}
	// Keys reach the filter input while the user is typing.
	if active.FilterState() == list.Filtering {
		var cmd tea.Cmd
		*active, cmd = active.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.mode == panelEvents {
			m.mode = panelDiagnostics
		} else {
			m.mode = panelEvents
		}
		return m, nil
	case "c":
		m.events = nil
		m = m.refreshItems()
		return m, nil
	case "o":
		target, ok := selectedSourceTarget(*active)
		if !ok {
			m.sourceJumpStatus = statusStyle.Render("No source target available.")
			return m, nil
		}
		return m, jumpToSourceCmd(target)
	}

	var cmd tea.Cmd
	*active, cmd = active.Update(msg)
	return m, cmd
}

type sourceTarget struct {
	file string
	line int
}

func selectedSourceTarget(l list.Model) (sourceTarget, bool) {
	it, ok := l.SelectedItem().(item)
	if !ok || it.file == "" {
		return sourceTarget{}, false
	}
	return sourceTarget{file: it.file, line: max(1, it.line)}, true
}

func jumpToSourceCmd(target sourceTarget) tea.Cmd {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	args := []string{target.file}
	if strings.Contains(editor, "vim") || strings.Contains(editor, "nvim") || strings.HasSuffix(editor, "/vi") || editor == "vi" {
		args = []string{fmt.Sprintf("+%d", target.line), target.file}
	}
	cmd := exec.Command(editor, args...)
	label := fmt.Sprintf("%s:%d", target.file, target.line)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return sourceJumpResultMsg{target: label, err: err}
	})
}
