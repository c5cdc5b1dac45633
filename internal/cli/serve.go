package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lsmux/lsmux/internal/config"
	"github.com/lsmux/lsmux/internal/session"
	"github.com/lsmux/lsmux/internal/ui"
	"github.com/lsmux/lsmux/internal/workspace"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [folder ...]",
		Short: "Watch workspace folders and run language servers for them",
		Long: `Serve watches the given workspace folders (the current directory when
none are given) and keeps one terraform-ls instance running per outermost
root that contains opened documents. The binary is installed on first use
and confirmations are auto-approved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfgPath, err := resolveConfigPath(*configPath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if !cfg.Enabled {
				logger.Info("lsmux is disabled, waiting for a configuration change")
			}
			// Serve mode has no interactive terminal to answer prompts.
			cfg.AutoApprove = true

			folders := args
			if len(folders) == 0 {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
				folders = []string{cwd}
			}
			for _, folder := range folders {
				if _, err := os.Stat(folder); err != nil {
					return fmt.Errorf("workspace folder %s: %w", folder, err)
				}
			}

			notifier := &ui.Terminal{
				In:          cmd.InOrStdin(),
				Out:         cmd.OutOrStdout(),
				AutoApprove: true,
				Log:         logger,
			}
			installer, err := buildInstaller(cfg, notifier, stageProgress{log: logger}, logger)
			if err != nil {
				return err
			}

			manager := session.NewManager(session.Config{
				Settings:  cfg,
				Folders:   folders,
				Installer: installer,
				Notifier:  notifier,
				Logger:    logger,
			})

			watcher, err := workspace.NewWatcher(logger, folders)
			if err != nil {
				return fmt.Errorf("watch workspace folders: %w", err)
			}
			defer watcher.Close()

			logger.Info("serving", "folders", folders)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return manager.Run(ctx)
			})
			g.Go(func() error {
				return watcher.Run(ctx)
			})
			g.Go(func() error {
				for {
					select {
					case ev, ok := <-watcher.Events():
						if !ok {
							return nil
						}
						manager.Dispatch(ctx, translate(ev))
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			})
			g.Go(func() error {
				return watchConfig(ctx, logger, cfgPath, cfg, func(ev session.Event) {
					manager.Dispatch(ctx, ev)
				})
			})
			return g.Wait()
		},
	}
}

// translate maps a filesystem observation onto a lifecycle event.
func translate(ev workspace.Event) session.Event {
	switch ev.Kind {
	case workspace.FolderGone:
		return session.FolderRemoved{Path: ev.Path}
	default:
		return session.DocumentOpened{Path: ev.Path}
	}
}

// watchConfig observes the config file and dispatches lifecycle events when
// it changes: a flip of the enabled flag becomes a Toggle, any other change
// becomes a ConfigChanged reload notice. The containing directory is watched
// because editors typically replace the file rather than write in place.
func watchConfig(ctx context.Context, logger *log.Logger, path string, current config.Config, dispatch func(session.Event)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}

			next, err := config.Load(path)
			if err != nil {
				logger.Warn("ignoring malformed config change", "path", path, "error", err)
				continue
			}
			next.AutoApprove = true

			switch {
			case next.Enabled != current.Enabled:
				logger.Info("configuration toggled", "enabled", next.Enabled)
				dispatch(session.Toggle{Enabled: next.Enabled})
			case !next.Equal(current):
				logger.Info("configuration changed")
				dispatch(session.ConfigChanged{})
			}
			current = next
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watch error", "error", err)
		}
	}
}
