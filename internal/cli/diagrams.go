package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/umlboard/pkg/store"
)

// diagramsCommand creates the saved-diagram management command.
func (c *CLI) diagramsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "diagrams",
		Aliases: []string{"d"},
		Short:   "Manage saved diagrams",
	}

	cmd.AddCommand(c.diagramsListCommand())
	cmd.AddCommand(c.diagramsShowCommand())
	cmd.AddCommand(c.diagramsExportCommand())
	cmd.AddCommand(c.diagramsImportCommand())
	cmd.AddCommand(c.diagramsDeleteCommand())

	return cmd
}

// withRepository opens storage for the duration of fn.
func (c *CLI) withRepository(ctx context.Context, fn func(*store.Repository) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	repo, s, err := c.openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			c.Logger.Warn("close storage", "err", err)
		}
	}()
	return fn(repo)
}

// completeDiagramIDs offers saved diagram ids for shell completion.
func (c *CLI) completeDiagramIDs(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var ids []string
	_ = c.withRepository(cmd.Context(), func(r *store.Repository) error {
		for _, d := range r.List(cmd.Context()) {
			ids = append(ids, d.ID+"\t"+d.Name)
		}
		return nil
	})
	return ids, cobra.ShellCompDirectiveNoFileComp
}

func (c *CLI) diagramsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved diagrams",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRepository(cmd.Context(), func(r *store.Repository) error {
				list := r.List(cmd.Context())
				if len(list) == 0 {
					printInfo("No saved diagrams")
					printNextStep("Create one", "umlboard edit model.json")
					return nil
				}
				writeDiagramTable(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
}

func writeDiagramTable(w io.Writer, list []store.SavedDiagram) {
	rows := make([][]string, len(list))
	for i, d := range list {
		rows[i] = []string{
			d.ID,
			d.Name,
			strconv.Itoa(len(d.State.Nodes)),
			strconv.Itoa(len(d.State.Edges)),
			formatModelTime(d),
		}
	}
	fmt.Fprintln(w, renderTable([]string{"ID", "Name", "Nodes", "Edges", "Model loaded"}, rows))
}

func formatModelTime(d store.SavedDiagram) string {
	if d.ModelTimestamp == 0 {
		return "—"
	}
	return d.ModelTime().UTC().Format(time.DateTime)
}

func (c *CLI) diagramsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "show <id>",
		Short:             "Show the classes and edges of a saved diagram",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeDiagramIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRepository(cmd.Context(), func(r *store.Repository) error {
				d, err := r.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				writeDiagram(cmd.OutOrStdout(), d)
				return nil
			})
		},
	}
}

func writeDiagram(w io.Writer, d store.SavedDiagram) {
	fmt.Fprintln(w, StyleTitle.Render(d.Name)+" "+StyleDim.Render(d.ID))
	fmt.Fprintln(w, StyleDim.Render("model loaded "+formatModelTime(d)))

	nodes := make([][]string, len(d.State.Nodes))
	for i, n := range d.State.Nodes {
		nodes[i] = []string{n.ID, n.Data.Label, fmt.Sprintf("%g, %g", n.Position.X, n.Position.Y)}
	}
	fmt.Fprintln(w, renderTable([]string{"Class", "Label", "Position"}, nodes))

	if len(d.State.Edges) == 0 {
		return
	}
	edges := make([][]string, len(d.State.Edges))
	for i, e := range d.State.Edges {
		kind := e.Routing
		if e.Manual {
			kind = "manual"
		}
		edges[i] = []string{e.ID, e.Source + " " + iconArrow + " " + e.Target, e.Label, kind}
	}
	fmt.Fprintln(w, renderTable([]string{"Edge", "Ends", "Label", "Kind"}, edges))
}

func (c *CLI) diagramsExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:               "export <id>",
		Short:             "Export a saved diagram as JSON",
		Long:              `Export a saved diagram as JSON. Without --output the file is named after the diagram; use "-o -" for stdout.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeDiagramIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRepository(cmd.Context(), func(r *store.Repository) error {
				d, err := r.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				text, err := store.ExportToText(d)
				if err != nil {
					return err
				}
				if output == "-" {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
					return err
				}
				path := output
				if path == "" {
					path = store.ExportFilename(d)
				}
				if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				printSuccess("Exported %s", d.Name)
				printFile(path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <name>.json, - for stdout)")

	return cmd
}

func (c *CLI) diagramsImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import an exported diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			d, err := store.ImportFromText(string(data))
			if err != nil {
				return err
			}
			return c.withRepository(cmd.Context(), func(r *store.Repository) error {
				if err := r.Add(cmd.Context(), d); err != nil {
					return err
				}
				printSuccess("Imported %s from %s", d.Name, filepath.Base(args[0]))
				printStats(plural(len(d.State.Nodes), "node"), plural(len(d.State.Edges), "edge"))
				printNextStep("Render it", "umlboard render "+d.ID)
				return nil
			})
		},
	}
}

func (c *CLI) diagramsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "delete <id>",
		Aliases:           []string{"rm"},
		Short:             "Delete a saved diagram",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeDiagramIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRepository(cmd.Context(), func(r *store.Repository) error {
				if err := r.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				printSuccess("Deleted %s", args[0])
				return nil
			})
		},
	}
}
