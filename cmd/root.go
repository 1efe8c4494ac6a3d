/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/seckatie/mirrorup/internal/core"
	"github.com/seckatie/mirrorup/internal/core/db"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "mirrorup",
	Short:   "Upload a file to many file hosts and print the links",
	Version: version,
	Long: `mirrorup uploads one file (or a directory, archived to .tar.gz) to every
host in its registry, one after another, and prints the links it got back.

Hosts that take noticeably longer than the ones before them are abandoned
once a few uploads have succeeded, so one slow host cannot stall the run.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runUpload(cmd); err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to the SQLite history database (history is off when empty)")

	rootCmd.Flags().StringP("input", "i", "", "File or directory to upload")
	rootCmd.Flags().StringP("style", "s", string(core.StyleLines), "Output style: lines, list, markdown or reddit")
	rootCmd.Flags().BoolP("more-links", "m", false, "Also upload through browser-driven hosts")
	rootCmd.Flags().IntP("number", "n", 0, "Stop after this many links (0 = no limit)")
	rootCmd.Flags().BoolP("delete", "d", false, "Delete the input after uploading")
	rootCmd.Flags().BoolP("check-status", "c", false, "Check which hosts are reachable before uploading")
	rootCmd.Flags().BoolP("log", "l", false, "Write debug logs to "+core.DefaultLogFile)
	rootCmd.Flags().BoolP("debug", "D", false, "Stop after the first host that is contacted")
	rootCmd.Flags().BoolP("verbose", "v", false, "Print failed uploads on the console")
	rootCmd.Flags().String("hosts", "", "Path to a host registry JSON file (defaults to the built-in registry)")
	rootCmd.Flags().Int("workers", core.DefaultBrowserPool, "Number of browser uploads to run at once")
	rootCmd.Flags().String("chrome-path", "", "Path to Chrome/Chromium executable")
	rootCmd.Flags().Bool("headful", false, "Run Chrome with a visible window (not headless)")

	if err := rootCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
}

// uploadFlags are the root command's parsed flags.
type uploadFlags struct {
	input      string
	style      core.Style
	moreLinks  bool
	number     int
	deleteSrc  bool
	check      bool
	logFile    bool
	debug      bool
	verbose    bool
	hosts      string
	dbPath     string
	workers    int
	chromePath string
	headful    bool
}

func readUploadFlags(cmd *cobra.Command) (uploadFlags, error) {
	var f uploadFlags
	var err error
	flags := cmd.Flags()

	if f.input, err = flags.GetString("input"); err != nil {
		return f, fmt.Errorf("failed to read --input: %w", err)
	}
	style, err := flags.GetString("style")
	if err != nil {
		return f, fmt.Errorf("failed to read --style: %w", err)
	}
	if f.style, err = core.ParseStyle(style); err != nil {
		return f, err
	}
	if f.moreLinks, err = flags.GetBool("more-links"); err != nil {
		return f, fmt.Errorf("failed to read --more-links: %w", err)
	}
	if f.number, err = flags.GetInt("number"); err != nil {
		return f, fmt.Errorf("failed to read --number: %w", err)
	}
	if f.number < 0 {
		return f, fmt.Errorf("--number must not be negative, got %d", f.number)
	}
	if f.deleteSrc, err = flags.GetBool("delete"); err != nil {
		return f, fmt.Errorf("failed to read --delete: %w", err)
	}
	if f.check, err = flags.GetBool("check-status"); err != nil {
		return f, fmt.Errorf("failed to read --check-status: %w", err)
	}
	if f.logFile, err = flags.GetBool("log"); err != nil {
		return f, fmt.Errorf("failed to read --log: %w", err)
	}
	if f.debug, err = flags.GetBool("debug"); err != nil {
		return f, fmt.Errorf("failed to read --debug: %w", err)
	}
	if f.verbose, err = flags.GetBool("verbose"); err != nil {
		return f, fmt.Errorf("failed to read --verbose: %w", err)
	}
	if f.hosts, err = flags.GetString("hosts"); err != nil {
		return f, fmt.Errorf("failed to read --hosts: %w", err)
	}
	if f.dbPath, err = flags.GetString("db"); err != nil {
		return f, fmt.Errorf("failed to read --db: %w", err)
	}
	if f.workers, err = flags.GetInt("workers"); err != nil {
		return f, fmt.Errorf("failed to read --workers: %w", err)
	}
	if f.chromePath, err = flags.GetString("chrome-path"); err != nil {
		return f, fmt.Errorf("failed to read --chrome-path: %w", err)
	}
	if f.headful, err = flags.GetBool("headful"); err != nil {
		return f, fmt.Errorf("failed to read --headful: %w", err)
	}

	if f.chromePath == "" && runtime.GOOS == "darwin" {
		// Best-effort default for macOS.
		f.chromePath = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
	}
	return f, nil
}

// runUpload is the main function for the root command.
func runUpload(cmd *cobra.Command) error {
	f, err := readUploadFlags(cmd)
	if err != nil {
		return err
	}

	logFile := ""
	if f.logFile {
		logFile = core.DefaultLogFile
	}
	closeLog, err := core.SetupLogging(core.LogOptions{Verbose: f.verbose, File: logFile})
	if err != nil {
		return err
	}
	defer closeLog()

	registry, err := core.LoadRegistry(f.hosts)
	if err != nil {
		return err
	}

	prepared, err := core.Prepare(f.input)
	if err != nil {
		return err
	}

	var database *db.DB
	if f.dbPath != "" {
		if database, err = initDB(f.dbPath); err != nil {
			return err
		}
		defer func() {
			if err := database.Close(); err != nil {
				log.WithField("err", err).Warn("failed to close database")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := core.NewConsole()
	console.Out = cmd.ErrOrStderr()
	pids := core.NewPIDTracker()
	stopKill := pids.KillOnDone(ctx)
	defer stopKill()

	opts := core.UploadOptions{
		Input:   prepared.Source,
		File:    prepared.File,
		Style:   f.style,
		Quota:   f.number,
		Debug:   f.debug,
		Verbose: f.verbose,
		Hosts:   registry.Hosts(),
		Workers: f.workers,
		Console: console,
	}
	if f.check {
		prober := core.NewProber()
		prober.Report = console.Reachability
		opts.Prober = prober
	}
	if f.moreLinks {
		opts.Providers = core.NewPageProviders(registry.Browser(), core.BrowserOptions{
			ChromePath: f.chromePath,
			Headless:   !f.headful,
			PIDs:       pids,
		})
	}

	res, err := core.RunUpload(ctx, database, opts)
	if err != nil {
		if core.IsInterrupted(err) {
			if err := prepared.Cleanup(false); err != nil {
				log.WithField("err", err).Warn("Cleanup failed")
			}
			console.Notice("Quitting...")
			return nil
		}
		return err
	}

	if res.Output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Output)
	} else {
		console.Notice("No links were collected.")
	}
	console.Summary(res.Took, len(res.Entries), len(res.State.Attempts))
	log.WithField("run", res.RunID).Info(res.Describe())

	if err := prepared.Cleanup(f.deleteSrc); err != nil {
		log.WithField("err", err).Error("Cleanup failed")
	}
	return nil
}

func initDB(path string) (*db.DB, error) {
	database, err := db.NewSQLiteDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Debug("Database migrated successfully")
	return database, nil
}

// historyDB opens the database named by --db, or the default history file.
func historyDB(cmd *cobra.Command) (*db.DB, error) {
	path, err := cmd.Flags().GetString("db")
	if err != nil {
		return nil, fmt.Errorf("failed to read --db: %w", err)
	}
	if path == "" {
		path = core.DefaultHistoryDB
	}
	return initDB(path)
}
