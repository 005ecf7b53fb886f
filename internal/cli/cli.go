package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/config"
	"github.com/matzehuels/umlboard/pkg/diagram"
	"github.com/matzehuels/umlboard/pkg/errors"
	"github.com/matzehuels/umlboard/pkg/kv"
	"github.com/matzehuels/umlboard/pkg/store"
	"github.com/matzehuels/umlboard/pkg/uml"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "umlboard"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	logOut io.Writer

	// Persistent flags.
	verbose    bool
	configPath string
	envFile    string
	backend    string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), logOut: w, envFile: ".env"}
}

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitBadInput    = 2
	ExitInterrupted = 130
)

// ExitCode maps a command error to a process exit code. Interrupts and
// cancelled loads exit with 130; rejected input files, names and flags with
// 2.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case stderrors.Is(err, context.Canceled), errors.Is(err, errors.ErrCodeCanceled):
		return ExitInterrupted
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidName, errors.ErrCodeInvalidKey:
		return ExitBadInput
	}
	return ExitFailure
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Configuration
// =============================================================================

// resolveConfigPath returns --config, or the XDG default.
func (c *CLI) resolveConfigPath() (string, error) {
	if c.configPath != "" {
		return c.configPath, nil
	}
	return config.DefaultPath()
}

// loadConfig loads .env, the config file and the environment, then applies
// flag overrides.
func (c *CLI) loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return config.Config{}, err
	}
	path, err := c.resolveConfigPath()
	if err != nil {
		return config.Config{}, fmt.Errorf("locate config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if c.backend != "" {
		cfg.Storage.Backend = c.backend
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	c.Logger.Debug("config loaded", "path", path, "backend", cfg.Storage.Backend)
	return cfg, nil
}

// =============================================================================
// Session Factory
// =============================================================================

// session bundles the editor state and the diagram store for one run.
type session struct {
	cfg    config.Config
	editor *diagram.Editor
	loader *uml.Loader
	repo   *store.Repository
	store  kv.Store
}

func (s *session) Close(logger *log.Logger) {
	if err := s.store.Close(); err != nil {
		logger.Warn("close storage", "err", err)
	}
}

// openRepository opens the configured storage backend.
func (c *CLI) openRepository(ctx context.Context, cfg config.Config) (*store.Repository, kv.Store, error) {
	opts := cfg.KV()

	var spinner *Spinner
	if opts.Backend == kv.BackendRedis || opts.Backend == kv.BackendMongo {
		spinner = newSpinner(ctx, c.logOut, fmt.Sprintf("Connecting to %s...", opts.Backend))
		spinner.Start()
	}
	s, err := kv.Open(ctx, opts, c.Logger)
	if spinner != nil {
		if err != nil {
			spinner.StopWithError(fmt.Sprintf("Could not reach %s", opts.Backend))
		} else {
			spinner.Stop()
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s storage: %w", opts.Backend, err)
	}
	return store.NewRepository(s, c.Logger), s, nil
}

// openSession loads config and opens storage. The caller must Close it.
func (c *CLI) openSession(ctx context.Context) (*session, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	repo, s, err := c.openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:    cfg,
		editor: diagram.NewEditor(c.Logger),
		loader: uml.NewLoader(c.Logger),
		repo:   repo,
		store:  s,
	}, nil
}

// loadModelFile imports path into the session editor.
func (s *session) loadModelFile(ctx context.Context, path string) (uml.Loaded, error) {
	return s.loader.Load(ctx, uml.FileSource(path), func(l uml.Loaded) {
		s.editor.SetModel(l.Model, l.Timestamp)
	})
}
