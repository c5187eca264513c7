package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pxm/internal/metadata"
	"github.com/desertthunder/pxm/internal/repositories"
	"github.com/desertthunder/pxm/internal/services"
	"github.com/desertthunder/pxm/internal/shared"
	"github.com/desertthunder/pxm/internal/stage"
	"github.com/desertthunder/pxm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services and the journal are built from the config on first use, so commands such as
// `setup config` work before any credentials exist.
type Runner struct {
	config     *shared.Config
	configPath string
	source     services.Source
	dest       services.Destination
	db         *sql.DB
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Source      services.Source
	Destination services.Destination
	DB          *sql.DB
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		source:     opts.Source,
		dest:       opts.Destination,
		db:         opts.DB,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, migrateCommand, albumsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and every service it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// loadConfig returns the config named by --config, or the embedded defaults when that file does not exist.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := r.configPath
	if cmd != nil && cmd.String("config") != "" {
		path = cmd.String("config")
	}

	if _, err := os.Stat(path); path == "" || errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("config file not found, using defaults", "path", path)
		r.config = shared.DefaultConfig()
		return r.config, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	r.config = config
	return config, nil
}

func (r *Runner) client(config *shared.Config) *http.Client {
	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: config.HTTP.Timeout}
	}
	return r.httpClient
}

// sourceService returns the Flickr source, creating it from config on first use.
func (r *Runner) sourceService(config *shared.Config) (services.Source, error) {
	if r.source != nil {
		return r.source, nil
	}

	flickr := config.Credentials.Flickr
	svc, err := services.NewFlickrService(services.FlickrOptions{
		Username:   flickr.Username,
		Credential: services.StaticCredential(flickr.APIKey),
		HTTPClient: r.client(config),
		RateLimit:  config.Migration.RateLimit,
		Logger:     shared.WithLogger(r.logger, "service", "flickr"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}
	r.source = svc
	return svc, nil
}

// destinationService returns the Google Photos destination backed by the cached OAuth token.
func (r *Runner) destinationService(config *shared.Config) (services.Destination, error) {
	if r.dest != nil {
		return r.dest, nil
	}

	google := config.Credentials.Google
	oauthConfig, err := services.GoogleOAuthConfig(google.ClientSecretFile, google.RedirectURI)
	if err != nil {
		return nil, err
	}

	token, err := services.LoadToken(google.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w (run `pxm auth google` first)", err)
	}

	logger := shared.WithLogger(r.logger, "service", "gphotos")
	credential := services.NewRefreshingCredential(oauthConfig, token, config.Migration.RefreshAfter, google.TokenFile, logger)
	r.dest = services.NewGooglePhotosService(credential, r.client(config), "", logger)
	return r.dest, nil
}

// journal opens the run journal, applying migrations. The returned func closes a database opened here.
func (r *Runner) journal(ctx context.Context, config *shared.Config) (*repositories.RunRepository, func(), error) {
	if r.db != nil {
		return repositories.NewRunRepository(r.db), func() {}, nil
	}

	db, err := shared.NewDatabase(ctx, config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repositories.NewRunRepository(db), func() { db.Close() }, nil
}

// engine wires a [tasks.MigrationEngine] from config.
//
// The journal is optional: when it cannot be opened the run proceeds without it.
func (r *Runner) engine(ctx context.Context, cmd *cli.Command, withJournal bool) (*tasks.MigrationEngine, func(), error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	src, err := r.sourceService(config)
	if err != nil {
		return nil, nil, err
	}
	dst, err := r.destinationService(config)
	if err != nil {
		return nil, nil, err
	}

	closer := func() {}
	var recorder tasks.RunRecorder
	if withJournal {
		repo, closeJournal, err := r.journal(ctx, config)
		if err != nil {
			r.logger.Warn("run journal unavailable, continuing without it", "error", err)
		} else {
			recorder = repo
			closer = closeJournal
		}
	}

	engine, err := tasks.NewMigrationEngine(tasks.EngineConfig{
		Source:      src,
		Destination: dst,
		Stage:       stage.New(config.Migration.StageDir),
		Stamper:     metadata.Stamper{},
		Reader: tasks.ReaderOptions{
			PreferredSize:    config.Migration.PreferredSize,
			PageRetries:      config.Migration.PageRetries,
			RetryDelay:       config.Migration.RetryDelay,
			DownloadAttempts: config.Migration.DownloadAttempts,
		},
		Recorder: recorder,
		Logger:   r.logger,
	})
	if err != nil {
		closer()
		return nil, nil, err
	}
	return engine, closer, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
