package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/umlboard/pkg/uml"
)

// classesCommand creates the classes command for inspecting a model file.
func (c *CLI) classesCommand() *cobra.Command {
	var relations bool

	cmd := &cobra.Command{
		Use:   "classes <model.json>",
		Short: "List the classes of a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := uml.DecodeFile(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			writeClasses(cmd.OutOrStdout(), m)
			if relations {
				writeRelations(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&relations, "relations", "r", false, "also list relations")

	return cmd
}

func writeClasses(w io.Writer, m *uml.Model) {
	rows := make([][]string, len(m.Classes))
	for i, cl := range m.Classes {
		rows[i] = []string{cl.ID, cl.Name, cl.Owner, strconv.Itoa(len(cl.Attributes))}
	}
	fmt.Fprintln(w, renderTable([]string{"ID", "Name", "Owner", "Attributes"}, rows))
}

func writeRelations(w io.Writer, m *uml.Model) {
	rows := make([][]string, len(m.Relations))
	for i, r := range m.Relations {
		rows[i] = []string{r.ID, r.Name, r.Type, r.Source + " " + iconArrow + " " + r.Target}
	}
	fmt.Fprintln(w, renderTable([]string{"ID", "Name", "Type", "Ends"}, rows))
}
