package cli

import (
	"context"

	coreapp "vinec/internal/core/app"

	tea "github.com/charmbracelet/bubbletea"
)

// runUI blocks until the user quits or ctx is canceled.
func runUI(ctx context.Context, app *coreapp.App) error {
	m := initialModel()
	m.stats = app.Stats()
	p := tea.NewProgram(m, tea.WithAltScreen())

	app.SetUpdateHandler(func(update coreapp.Update) {
		p.Send(updateMsg{
			event:       update.Event,
			diagnostics: update.Diagnostics,
			stats:       update.Stats,
		})
	})
	defer app.SetUpdateHandler(nil)

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	return err
}
