package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/umlboard/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "umlboard lays out UML class diagrams from a domain model",
		Long: `umlboard loads a UML domain model exported as JSON, lets you place its
classes on a canvas, draws the relations between visible classes, and saves
named diagram layouts.

Run "umlboard serve" for the HTTP API used by the browser canvas, or
"umlboard edit model.json" for the terminal editor.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if c.verbose {
			c.SetLogLevel(LogDebug)
		}
		if c.Logger.GetLevel() <= LogDebug {
			registerLogHooks(c.Logger)
		}
		return nil
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&c.configPath, "config", "", "config file (default ~/.config/umlboard/config.toml)")
	flags.StringVar(&c.envFile, "env-file", c.envFile, "dotenv file with UMLBOARD_* settings")
	flags.StringVar(&c.backend, "backend", "", "storage backend: file, memory, redis, mongo")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.editCommand())
	root.AddCommand(c.classesCommand())
	root.AddCommand(c.diagramsCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}
