package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/pgshift/pgshift/internal/config"
	"github.com/pgshift/pgshift/internal/debug"
	"github.com/pgshift/pgshift/internal/ui"
	"github.com/pgshift/pgshift/migrate/chain"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check the schema against the chain whenever schema files change",
		Long: `Watch the declarative schema directory and, on every change, diff it
against the state reached by the migration chain. Reports when a generate run
is needed. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(cfg)
			if err != nil {
				return err
			}
			if err := e.differ().CheckVersion(ctx); err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			// fsnotify does not recurse, so register every subdirectory.
			err = filepath.Walk(cfg.SchemaDir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() {
					return watcher.Add(path)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to watch %s: %w", cfg.SchemaDir, err)
			}

			runCheck := func() {
				ch, err := chain.Load(config.AppFs, cfg.MigrationsDir)
				if err != nil {
					ui.PrintError("%v", err)
					return
				}
				delta, err := e.orchestrator(nil).ChainVsSchema(ctx, ch)
				if err != nil {
					ui.PrintError("%v", err)
					return
				}
				if delta == "" {
					ui.PrintSuccess("schema and migration chain are in sync")
					return
				}
				ui.PrintWarning("schema has drifted from the chain, run generate:")
				ui.PrintSQL(delta)
			}

			ui.PrintInfo("watching %s", cfg.SchemaDir)
			runCheck()

			debounce := time.NewTimer(0)
			if !debounce.Stop() {
				<-debounce.C
			}
			var pending <-chan time.Time

			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
						debug.Debug("schema change", "op", event.Op.String(), "path", event.Name)
						debounce.Reset(500 * time.Millisecond)
						pending = debounce.C
						// New subdirectories need their own watch.
						if event.Op&fsnotify.Create != 0 {
							if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
								watcher.Add(event.Name)
							}
						}
					}
				case <-pending:
					pending = nil
					runCheck()
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					ui.PrintWarning("watch error: %v", err)
				}
			}
		},
	}
	return cmd
}
