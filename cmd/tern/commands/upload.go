package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/seqarc/tern/internal/archive"
	"github.com/seqarc/tern/internal/config"
	"github.com/seqarc/tern/internal/core"
	"github.com/seqarc/tern/internal/dispatch"
	"github.com/seqarc/tern/internal/locator"
	"github.com/seqarc/tern/internal/manifest"
	"github.com/seqarc/tern/internal/progress"
	"github.com/seqarc/tern/internal/report"
	"github.com/seqarc/tern/internal/transfer"
	"github.com/seqarc/tern/pkg/logx"
)

var (
	flagFiles   []string
	flagAll     bool
	flagPattern string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload manifest files to the remote archive",
	Long:  "Upload files named in the metadata manifest to the remote archive, resuming partial transfers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagConfig == "" {
			return errors.New("required flag \"config\" not set")
		}
		return runUpload(cmd.Context())
	},
}

func init() {
	uploadCmd.Flags().StringArrayVarP(&flagFiles, "file", "f", nil, "manifest file name to upload (repeatable)")
	uploadCmd.Flags().BoolVarP(&flagAll, "all", "a", false, "upload every file in the manifest")
	uploadCmd.Flags().StringVarP(&flagPattern, "pattern", "p", "", "upload manifest files matching a glob pattern")
}

func runUpload(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logx.StartTimer()

	// Handle OS signals for graceful shutdown: in-flight attempts stop and
	// pending tasks are reported as failed.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()
	if err := config.Validate(&cfg); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	entries, err := selectEntries(cfg)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("nothing to upload: no manifest entries selected")
	}

	tasks := buildTasks(cfg, entries)

	runners, err := prepareRunners(cfg)
	if err != nil {
		return err
	}

	dispatcher, err := dispatch.New("dispatcher-upload", runners)
	if err != nil {
		return err
	}

	logx.As().Info().
		Int("files", len(tasks)).
		Int("workers", len(runners)).
		Str("backend", cfg.Archive.Backend).
		Msg("Starting upload batch")

	rep := report.New()
	rep.Add(dispatcher.Run(ctx, tasks)...)
	rep.Sort()

	if err := rep.WriteTSV(cfg.Report.Path); err != nil {
		return err
	}
	fmt.Println(rep.Render())

	logx.As().Info().
		Str("report", cfg.Report.Path).
		Str("total_time", logx.ExecutionTime()).
		Bool("all_succeeded", rep.AllSucceeded()).
		Msg("Upload batch finished")

	if !rep.AllSucceeded() {
		return errors.New("one or more uploads did not succeed, see the report for details")
	}
	return nil
}

// selectEntries resolves the command-line selection against the manifest.
func selectEntries(cfg config.Config) ([]manifest.Entry, error) {
	m, err := manifest.Load(cfg.Manifest.Path)
	if err != nil {
		return nil, err
	}

	switch {
	case flagAll:
		return m.Entries(), nil
	case flagPattern != "":
		return m.Filter(flagPattern)
	case len(flagFiles) > 0:
		entries := make([]manifest.Entry, 0, len(flagFiles))
		for _, name := range flagFiles {
			entry, err := m.Resolve(name)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		return entries, nil
	default:
		return nil, errors.New("select files with --file, --pattern or --all")
	}
}

// buildTasks locates each entry's file on disk. An entry whose file cannot be
// found still yields a task, with an empty resolved path; the executor reports
// it as skipped so the batch outcome reflects it.
func buildTasks(cfg config.Config, entries []manifest.Entry) []core.UploadTask {
	loc := locator.New(cfg.Discovery.Root, cfg.Discovery.Subdirs)

	tasks := make([]core.UploadTask, 0, len(entries))
	for _, entry := range entries {
		task := core.UploadTask{
			FileName:  entry.FileName,
			FileUUID:  entry.ID,
			ProjectID: entry.ProjectID,
		}

		path, size, err := loc.Locate(entry.FileName)
		if err != nil {
			logx.As().Warn().
				Str("file_name", entry.FileName).
				Str("root", cfg.Discovery.Root).
				Err(err).
				Msg("File not found, it will be skipped")
		} else {
			task.ResolvedPath = path
			task.SizeBytes = size
		}

		tasks = append(tasks, task)
	}
	return tasks
}

// prepareRunners builds one executor per worker. Each executor owns its
// archive backend so workers share nothing below the task channel.
func prepareRunners(cfg config.Config) ([]core.Runner, error) {
	retryDelay, err := time.ParseDuration(cfg.Upload.RetryDelay)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse retry delay")
	}

	progressInterval, err := time.ParseDuration(cfg.Upload.ProgressInterval)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse progress interval")
	}

	var token string
	if cfg.Archive.Backend == archive.TypeHTTP {
		token, err = archive.ReadToken(cfg.Archive.TokenFile)
		if err != nil {
			return nil, err
		}
	}

	sampler := progress.New(progress.NewProbe(), progressInterval)

	runners := make([]core.Runner, 0, cfg.Upload.Workers)
	for i := 0; i < cfg.Upload.Workers; i++ {
		var backend core.Archive
		switch cfg.Archive.Backend {
		case archive.TypeHTTP:
			backend, err = archive.NewHTTP(fmt.Sprintf("http-%d", i), cfg.Archive, token)
		case archive.TypeS3:
			backend, err = archive.NewS3(fmt.Sprintf("s3-%d", i), *cfg.Archive.S3, cfg.Archive.TransportRetries)
		default:
			err = errors.Errorf("unknown archive backend: %s", cfg.Archive.Backend)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create archive backend for worker %d", i)
		}

		executor, err := transfer.New(fmt.Sprintf("executor-%d", i), backend,
			cfg.Upload.RetryLimit, transfer.NewConstantPolicy(retryDelay), sampler)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create executor for worker %d", i)
		}

		runners = append(runners, executor)
	}

	return runners, nil
}
