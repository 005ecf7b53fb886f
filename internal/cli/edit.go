package cli

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// editCommand creates the edit command for the terminal editor.
func (c *CLI) editCommand() *cobra.Command {
	var diagramID string

	cmd := &cobra.Command{
		Use:   "edit <model.json>",
		Short: "Edit diagrams of a model file in the terminal",
		Long: `Load a model file and open the interactive editor.

Pick classes from the list to place them on the canvas. Relations appear as
soon as both of their classes are visible. Layouts are saved to the configured
storage backend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEdit(cmd.Context(), args[0], diagramID)
		},
	}

	cmd.Flags().StringVarP(&diagramID, "diagram", "d", "", "saved diagram to open")
	cmd.RegisterFlagCompletionFunc("diagram", c.completeDiagramIDs)

	return cmd
}

func (c *CLI) runEdit(ctx context.Context, modelPath, diagramID string) error {
	sess, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(c.Logger)

	if _, err := sess.loadModelFile(ctx, modelPath); err != nil {
		return fmt.Errorf("load %s: %w", modelPath, err)
	}

	m := NewEditorModel(ctx, sess.editor, sess.repo)
	if diagramID != "" {
		d, err := sess.repo.Get(ctx, diagramID)
		if err != nil {
			return err
		}
		m.applyDiagram(d)
	}

	// Log lines would tear the alternate screen.
	c.Logger.SetOutput(io.Discard)
	defer c.Logger.SetOutput(c.logOut)

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
