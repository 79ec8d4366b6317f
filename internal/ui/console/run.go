package console

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run drives handler from the terminal until the user quits or ctx ends.
func Run(ctx context.Context, handler Handler, transport *Transport, bot Bot) error {
	p := tea.NewProgram(
		New(handler, transport, bot),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running console: %w", err)
	}
	return nil
}
