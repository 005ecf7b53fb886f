package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/umlboard/internal/server"
	"github.com/matzehuels/umlboard/pkg/cache"
	"github.com/matzehuels/umlboard/pkg/kv"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr  string // listen address, overrides server.addr
	model string // model file to load before serving
}

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for the browser canvas",
		Long: `Run the HTTP API for the browser canvas.

The server keeps one editing session in memory. Saved diagrams go to the
configured storage backend (file by default).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model file to load on startup")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	sess, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(c.Logger)

	if opts.model != "" {
		loaded, err := sess.loadModelFile(ctx, opts.model)
		if err != nil {
			return fmt.Errorf("load %s: %w", opts.model, err)
		}
		printSuccess("Loaded %s", loaded.Source)
		printStats(plural(len(loaded.Model.Classes), "class"), plural(len(loaded.Model.Relations), "relation"))
	}

	addr := opts.addr
	if addr == "" {
		addr = sess.cfg.Server.Addr
	}

	srv := server.New(sess.editor, sess.loader, sess.repo, c.Logger, server.Options{
		MaxUploadBytes: sess.cfg.Server.MaxUploadBytes,
		ReadTimeout:    sess.cfg.Server.ReadTimeout.Duration,
		WriteTimeout:   sess.cfg.Server.WriteTimeout.Duration,
		RenderCache:    renderCache(sess.cfg.Server.RenderCacheEntries),
	})

	printKeyValue("API", StyleLink.Render(displayURL(addr)+"/api"))
	printKeyValue("Storage", sess.cfg.Storage.Backend)
	if sess.cfg.Storage.Backend == kv.BackendMemory {
		printWarning("Saved diagrams are lost when the server stops")
	}
	if opts.model == "" {
		printDetail("No model loaded; POST a model file to /api/model")
	}
	return srv.ListenAndServe(ctx, addr)
}

// displayURL turns a listen address into a browsable URL.
func displayURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// renderCache returns the SVG cache for the server, or nil when disabled.
func renderCache(entries int) cache.Cache {
	if entries == 0 {
		return nil
	}
	return cache.NewMemoryCache(entries)
}
