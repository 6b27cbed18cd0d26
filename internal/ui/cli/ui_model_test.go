package cli

import (
	"strings"
	"testing"

	coreapp "vinec/internal/core/app"
	"vinec/internal/core/errors"
	"vinec/internal/core/ports"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModel_UpdatesAndPanelFlow(t *testing.T) {
	m := initialModel()

	updated, _ := m.Update(updateMsg{
		event: ports.UpdateEvent{FileID: "/p/src/Counter.vine.ts", Kind: "render", Component: "Counter"},
		stats: coreapp.Stats{Tracked: 2, Compiles: 3, ByKind: map[string]int{"render": 1}},
	})
	state, ok := updated.(model)
	if !ok {
		t.Fatalf("expected model type, got %T", updated)
	}

	updated, _ = state.Update(updateMsg{
		event: ports.UpdateEvent{FileID: "/p/src/Broken.vine.ts", Kind: "none", Reason: "compile failed"},
		diagnostics: errors.DiagnosticList{
			{Code: errors.CodeSyntax, Severity: errors.SeverityError, Message: "unexpected token", FileID: "/p/src/Broken.vine.ts", Line: 3, Column: 7},
		},
		stats: coreapp.Stats{Tracked: 2, Compiles: 4, Failures: 1, ByKind: map[string]int{"render": 1, "none": 1}},
	})
	state = updated.(model)

	if len(state.eventList.Items()) != 2 {
		t.Fatalf("expected 2 event items, got %d", len(state.eventList.Items()))
	}
	if len(state.diagList.Items()) != 1 {
		t.Fatalf("expected 1 diagnostic item, got %d", len(state.diagList.Items()))
	}
	if first := state.eventList.Items()[0].(item); first.file != "/p/src/Broken.vine.ts" {
		t.Fatalf("expected newest event first, got %s", first.file)
	}
	if state.stats.Compiles != 4 {
		t.Fatalf("expected stats from latest update, got %+v", state.stats)
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyTab})
	state = updated.(model)
	if state.mode != panelDiagnostics {
		t.Fatalf("expected diagnostics panel after tab, got %v", state.mode)
	}
	target, ok := selectedSourceTarget(state.diagList)
	if !ok || target.line != 3 {
		t.Fatalf("expected diagnostic source target at line 3, got %+v ok=%v", target, ok)
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyTab})
	state = updated.(model)
	if state.mode != panelEvents {
		t.Fatalf("expected events panel after second tab, got %v", state.mode)
	}
}

func TestModel_SuccessfulCompileClearsDiagnostics(t *testing.T) {
	m := initialModel()
	file := "/p/src/App.vine.ts"

	updated, _ := m.Update(updateMsg{
		event:       ports.UpdateEvent{FileID: file, Kind: "none"},
		diagnostics: errors.DiagnosticList{{Severity: errors.SeverityWarning, Message: "unused", FileID: file}},
	})
	state := updated.(model)
	if _, warns := state.diagnosticCounts(); warns != 1 {
		t.Fatalf("expected 1 warning, got %d", warns)
	}

	updated, _ = state.Update(updateMsg{event: ports.UpdateEvent{FileID: file, Kind: "render"}})
	state = updated.(model)
	if len(state.diagList.Items()) != 0 {
		t.Fatalf("expected diagnostics cleared, got %d", len(state.diagList.Items()))
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	state = updated.(model)
	if len(state.eventList.Items()) != 0 {
		t.Fatalf("expected events cleared, got %d", len(state.eventList.Items()))
	}
}

func TestModel_EventHistoryIsBounded(t *testing.T) {
	m := initialModel()
	var state tea.Model = m
	for i := 0; i < maxEvents+10; i++ {
		state, _ = state.Update(updateMsg{event: ports.UpdateEvent{FileID: "/p/A.vine.ts", Kind: "style"}})
	}
	if got := len(state.(model).events); got != maxEvents {
		t.Fatalf("expected %d retained events, got %d", maxEvents, got)
	}
}

func TestModel_OpenWithoutSelection(t *testing.T) {
	m := initialModel()
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	if cmd != nil {
		t.Fatal("expected no command without a selection")
	}
	if !strings.Contains(updated.(model).sourceJumpStatus, "No source target") {
		t.Fatalf("unexpected status %q", updated.(model).sourceJumpStatus)
	}
}

func TestEventDescription(t *testing.T) {
	got := eventDescription(ports.UpdateEvent{Component: "Card", Reason: "template changed", Modules: []string{"a", "b"}})
	if got != "Card | template changed | 2 modules" {
		t.Fatalf("unexpected description %q", got)
	}
}
