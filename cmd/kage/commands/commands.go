package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/kage/internal/app/root"
	"github.com/slok/kage/internal/conventions"
	"github.com/slok/kage/internal/jail"
	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
	"github.com/slok/kage/internal/printer"
	"github.com/slok/kage/internal/storage"
	storageio "github.com/slok/kage/internal/storage/io"
	"github.com/slok/kage/internal/storage/memory"
	"github.com/slok/kage/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// ExitCodeError is returned when the process should exit with a specific code.
type ExitCodeError struct {
	Code int
}

func (e ExitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	ConfigPath string
	DBPath     string
	NoHistory  bool

	// DefaultRootDir is the jail root used when the settings don't have one.
	DefaultRootDir string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	home := homedir.HomeDir()
	c := &RootCommand{DefaultRootDir: conventions.DefaultRoot(home)}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("config-path", "Path to the settings file.").Default(conventions.SettingsPath(home)).StringVar(&c.ConfigPath)
	app.Flag("db-path", "Path to the SQLite execution history database.").Default(conventions.DBPath(home)).StringVar(&c.DBPath)
	app.Flag("no-history", "Don't store the execution history.").BoolVar(&c.NoHistory)

	return c
}

func (c *RootCommand) newSettingsRepository() (*storageio.SettingsYAMLRepository, error) {
	repo, err := storageio.NewSettingsYAMLRepository(storageio.SettingsYAMLRepositoryConfig{
		Path:           c.ConfigPath,
		DefaultRootDir: c.DefaultRootDir,
		Logger:         c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create settings repository: %w", err)
	}

	return repo, nil
}

// newHistoryRepository returns the history repository and a function to release it.
func (c *RootCommand) newHistoryRepository(ctx context.Context) (storage.HistoryRepository, func() error, error) {
	if c.NoHistory {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: c.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create memory repository: %w", err)
		}
		return repo, func() error { return nil }, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.DBPath,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create history repository: %w", err)
	}

	return repo, repo.Close, nil
}

// loadRoot applies the persisted root to the jail and returns the root service managing it with the settings.
func (c *RootCommand) loadRoot(ctx context.Context, j *jail.Jail, pending root.PendingCounter) (*root.Service, *model.Settings, error) {
	settingsRepo, err := c.newSettingsRepository()
	if err != nil {
		return nil, nil, err
	}

	return c.loadRootFrom(ctx, settingsRepo, j, pending)
}

// loadRootFrom is like loadRoot but using an already created settings repository.
func (c *RootCommand) loadRootFrom(ctx context.Context, settingsRepo storage.SettingsRepository, j *jail.Jail, pending root.PendingCounter) (*root.Service, *model.Settings, error) {
	svc, err := root.NewService(root.ServiceConfig{
		Jail:     j,
		Settings: settingsRepo,
		Pending:  pending,
		Logger:   c.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create root service: %w", err)
	}

	settings, err := svc.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	return svc, settings, nil
}

func (c *RootCommand) newPrinter(format string) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(c.Stdout)
	}
	return printer.NewTablePrinter(c.Stdout, c.Stderr)
}
