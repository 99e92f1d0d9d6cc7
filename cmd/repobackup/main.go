package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/repobackup/internal/catalog"
	"git.home.luguber.info/inful/repobackup/internal/changelog"
	"git.home.luguber.info/inful/repobackup/internal/config"
	"git.home.luguber.info/inful/repobackup/internal/daemon"
	"git.home.luguber.info/inful/repobackup/internal/drive"
	"git.home.luguber.info/inful/repobackup/internal/gitrepo"
	"git.home.luguber.info/inful/repobackup/internal/logfields"
	"git.home.luguber.info/inful/repobackup/internal/metrics"
	"git.home.luguber.info/inful/repobackup/internal/mirror"
	"git.home.luguber.info/inful/repobackup/internal/retry"
	"git.home.luguber.info/inful/repobackup/internal/version"
)

const timeRound = 10 * time.Millisecond

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"repobackup.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Backup struct {
		Repo     string `short:"r" help:"Repository path, overrides the configured one"`
		Revision string `help:"Commit hash, tag, or HEAD to back up"`
		Folder   string `help:"Drive folder ID to back up into, overrides the configured one"`
	} `cmd:"" help:"Back up the repository tree at a revision to Google Drive"`

	Changelog struct {
		Revision string `help:"Commit hash, tag, or HEAD"`
		Output   string `short:"o" help:"Write the changelog to a file instead of stdout"`
	} `cmd:"" help:"Print the changelog that a backup of the revision would contain"`

	Login struct{} `cmd:"" help:"Run the OAuth flow and cache the Drive token"`

	List struct{} `cmd:"" help:"List existing backups of the repository on Drive"`

	History struct {
		Limit int `help:"Maximum number of runs to show" default:"20"`
	} `cmd:"" help:"Show recorded backup runs from the local catalog"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Daemon struct{} `cmd:"" help:"Run periodic backups on the configured interval"`

	Version struct{} `cmd:"" help:"Show version information"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch kctx.Command() {
	case "backup":
		cfg := mustLoadConfig()
		applyBackupOverrides(cfg)
		ctx, cancel := signalContext()
		defer cancel()
		if err := runBackupCommand(ctx, cfg); err != nil {
			slog.Error("Backup failed", logfields.Error(err))
			os.Exit(1)
		}
	case "changelog":
		cfg := mustLoadConfig()
		if err := runChangelog(cfg); err != nil {
			slog.Error("Changelog failed", logfields.Error(err))
			os.Exit(1)
		}
	case "login":
		cfg := mustLoadConfig()
		ctx, cancel := signalContext()
		defer cancel()
		if err := runLogin(ctx, cfg); err != nil {
			slog.Error("Login failed", logfields.Error(err))
			os.Exit(1)
		}
	case "list":
		cfg := mustLoadConfig()
		ctx, cancel := signalContext()
		defer cancel()
		if err := runList(ctx, cfg); err != nil {
			slog.Error("List failed", logfields.Error(err))
			os.Exit(1)
		}
	case "history":
		cfg := mustLoadConfig()
		if err := runHistory(cfg, CLI.History.Limit); err != nil {
			slog.Error("History failed", logfields.Error(err))
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", CLI.Config)
	case "daemon":
		cfg := mustLoadConfig()
		ctx, cancel := signalContext()
		defer cancel()
		d := daemon.New(cfg, runBackup)
		if err := d.Start(ctx, CLI.Config); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	case "version":
		fmt.Printf("repobackup %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", logfields.Error(err))
		os.Exit(1)
	}
	return cfg
}

func applyBackupOverrides(cfg *config.Config) {
	if CLI.Backup.Repo != "" {
		cfg.Repository.Path = CLI.Backup.Repo
	}
	if CLI.Backup.Revision != "" {
		cfg.Repository.Revision = CLI.Backup.Revision
	}
	if CLI.Backup.Folder != "" {
		cfg.Drive.RootFolderID = CLI.Backup.Folder
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runBackup performs one backup run. It also serves as the daemon's RunFunc.
func runBackup(ctx context.Context, cfg *config.Config, recorder metrics.Recorder) (*mirror.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := gitrepo.Open(cfg.Repository.Path)
	if err != nil {
		return nil, err
	}

	client, err := newDriveClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return mirror.New(repo, client, cfg.Changelog.Filename).
		WithRecorder(recorder).
		Run(ctx, cfg.Drive.RootFolderID, cfg.Repository.Revision)
}

func runBackupCommand(ctx context.Context, cfg *config.Config) error {
	res, err := runBackup(ctx, cfg, metrics.NoopRecorder{})
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		slog.Warn("Failed to open catalog, run not recorded", logfields.Error(err))
	} else {
		defer func() { _ = store.Close() }()
		if err := store.Record(ctx, res); err != nil {
			slog.Warn("Failed to record run in catalog", logfields.Error(err))
		}
	}

	if res.Skipped {
		fmt.Printf("Backup %s of %s already exists, nothing to do\n", res.Label, res.Repository)
		return nil
	}
	fmt.Printf("Backed up %s at %s: %d files, %d folders, %d bytes in %s\n",
		res.Repository, res.Label, res.FilesUploaded, res.FoldersCreated, res.Bytes, res.Duration.Round(timeRound))
	return nil
}

func runChangelog(cfg *config.Config) error {
	repo, err := gitrepo.Open(cfg.Repository.Path)
	if err != nil {
		return err
	}

	revision := cfg.Repository.Revision
	if CLI.Changelog.Revision != "" {
		revision = CLI.Changelog.Revision
	}
	commit, err := repo.ResolveCommit(revision)
	if err != nil {
		return err
	}
	label, err := repo.LabelFor(commit)
	if err != nil {
		return err
	}
	text, err := changelog.Generate(repo, label, commit)
	if err != nil {
		return err
	}

	if CLI.Changelog.Output != "" {
		return os.WriteFile(CLI.Changelog.Output, []byte(text+"\n"), 0o600)
	}
	fmt.Println(text)
	return nil
}

func runLogin(ctx context.Context, cfg *config.Config) error {
	if _, err := drive.Authenticate(ctx, cfg.Drive.CredentialsFile, cfg.Drive.TokenFile); err != nil {
		return err
	}
	fmt.Printf("Token cached in %s\n", cfg.Drive.TokenFile)
	return nil
}

func runList(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := newDriveClient(ctx, cfg)
	if err != nil {
		return err
	}

	repoFolderID, err := client.FindFolder(ctx, cfg.Repository.Name, cfg.Drive.RootFolderID)
	if err != nil {
		return err
	}
	if repoFolderID == "" {
		fmt.Printf("No backups of %s found\n", cfg.Repository.Name)
		return nil
	}

	folders, err := client.ListFolders(ctx, repoFolderID)
	if err != nil {
		return err
	}
	for _, f := range folders {
		fmt.Println(f.Name)
	}
	return nil
}

func runHistory(cfg *config.Config, limit int) error {
	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.List(context.Background(), cfg.Repository.Name, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tLABEL\tCOMMIT\tFILES\tBYTES\tDURATION\tSKIPPED")
	for _, r := range runs {
		short := r.Commit
		if len(short) > 8 {
			short = short[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%v\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Label, short,
			r.Files, r.Bytes, r.Duration.Round(timeRound), r.Skipped)
	}
	return w.Flush()
}

func newDriveClient(ctx context.Context, cfg *config.Config) (*drive.Client, error) {
	httpClient, err := drive.Authenticate(ctx, cfg.Drive.CredentialsFile, cfg.Drive.TokenFile)
	if err != nil {
		return nil, err
	}
	return drive.NewClient(ctx, httpClient, drive.Options{
		SharedDrives: cfg.Drive.SharedDrives,
		Retry:        retry.FromUploadConfig(cfg.Upload),
	})
}
