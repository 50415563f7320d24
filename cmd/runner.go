package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jam/internal/auth"
	"github.com/desertthunder/jam/internal/lock"
	"github.com/desertthunder/jam/internal/repositories"
	"github.com/desertthunder/jam/internal/services"
	"github.com/desertthunder/jam/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    *services.SpotifyService
	store      lock.Store
	db         *sql.DB
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Store opens the SQLite key-value store named by the config on first use.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    *services.SpotifyService
	Store      lock.Store
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger swaps the logger, e.g. for a file logger while the terminal UI owns the screen.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, lockCommand, sessionCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openStore returns the shared key-value store, opening and migrating the database on first use.
func (r *Runner) openStore() (lock.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.store = repositories.NewKVRepository(db)
	return r.store, nil
}

// Close releases the database opened by [Runner.openStore].
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) refreshLock(store lock.Store) *lock.RefreshLock {
	return lock.New(store, lock.WithTTL(r.config.Lock.TTL))
}

// provider builds the credential provider. Refreshing needs Spotify client credentials; reading and storing do not.
func (r *Runner) provider() (*auth.Provider, error) {
	store, err := r.openStore()
	if err != nil {
		return nil, err
	}

	var cfg *oauth2.Config
	if r.spotify != nil {
		cfg = r.spotify.Config()
	}
	return auth.NewProvider(cfg, store, r.refreshLock(store), r.logger), nil
}

func (r *Runner) requireSpotify() error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configName())
	}
	return nil
}

func (r *Runner) configName() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
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
