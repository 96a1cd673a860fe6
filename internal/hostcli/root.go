package hostcli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/skobkin/macsniff/internal/app"
	"github.com/skobkin/macsniff/internal/config"
	"github.com/skobkin/macsniff/internal/logging"
	"github.com/skobkin/macsniff/internal/notifications"
	"github.com/skobkin/macsniff/internal/persistence"
)

// Options replace the process-wide collaborators in tests.
type Options struct {
	Notifier notifications.Sender
	Now      func() time.Time
}

// env is the state shared by every subcommand after the root pre-run.
type env struct {
	opts Options

	configPath string
	dbPath     string
	logLevel   string

	paths  app.Paths
	cfg    config.AppConfig
	logMgr *logging.Manager
	logger *slog.Logger
}

// NewRootCmd builds the macsniff-host command tree.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   app.HostName,
		Short: "Receive, convert and archive macsniff scan dumps",
		Long: `macsniff-host is the host side of the macsniff sniffer.

It receives dump sessions sent by the device over a serial port or TCP,
converts the binary scan files into text or CSV listings and keeps an
sqlite archive of every address ever seen.`,
		Example: `  # Receive a dump from the device and archive it
  macsniff-host receive --port /dev/ttyUSB0

  # Convert a directory of scan files to CSV
  macsniff-host convert ./dump --format csv --out ./converted

  # Import files dropped into a directory as they appear
  macsniff-host watch ./dump`,
		Version:           app.BuildVersionWithDate(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: e.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.logMgr != nil {
				_ = e.logMgr.Close()
			}
		},
	}
	root.SuggestionsMinimumDistance = 2

	root.PersistentFlags().StringVar(&e.configPath, "config", "", "config file path (default: user config dir)")
	root.PersistentFlags().StringVar(&e.dbPath, "db", "", "archive database path (default: user data dir)")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newReceiveCmd(e),
		newConvertCmd(e),
		newImportCmd(e),
		newStatsCmd(e),
		newWatchCmd(e),
	)

	return root
}

// Execute runs the command tree with process defaults.
func Execute(ctx context.Context) error {
	return NewRootCmd(Options{}).ExecuteContext(ctx)
}

func (e *env) setup(cmd *cobra.Command, _ []string) error {
	paths, err := app.ResolvePaths()
	if err != nil {
		return err
	}
	if e.configPath != "" {
		paths.ConfigFile = e.configPath
	}
	e.paths = paths

	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return err
	}
	if e.logLevel != "" {
		cfg.Logging.Level = e.logLevel
	}
	e.cfg = cfg

	e.logMgr = logging.NewManager()
	e.logMgr.SetConsole(cmd.ErrOrStderr())
	if err := e.logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	e.logger = e.logMgr.Logger("host")

	if e.opts.Notifier == nil {
		if cfg.Host.Notify {
			e.opts.Notifier = notifications.NewDesktopSender(e.logMgr.Logger("notify"))
		} else {
			e.opts.Notifier = notifications.Discard{}
		}
	}

	return nil
}

func (e *env) archivePath() string {
	switch {
	case e.dbPath != "":
		return e.dbPath
	case e.cfg.Host.DatabasePath != "":
		return e.cfg.Host.DatabasePath
	default:
		return e.paths.DBFile
	}
}

func (e *env) openArchive(ctx context.Context) (*sql.DB, error) {
	db, err := persistence.Open(ctx, e.archivePath())
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	return db, nil
}

func (e *env) dumpsDir() string {
	if e.cfg.Host.OutputDir != "" {
		return e.cfg.Host.OutputDir
	}

	return e.paths.DumpsDir
}

func out(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}

	return cmd.OutOrStdout()
}
