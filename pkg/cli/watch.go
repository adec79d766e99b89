package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jointcomp/jointcomp/internal/project"
	"github.com/jointcomp/jointcomp/internal/watch"
	"github.com/jointcomp/jointcomp/pkg/logger"
	"github.com/jointcomp/jointcomp/pkg/notifier"
	"github.com/jointcomp/jointcomp/pkg/plan"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var noNotify bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild whenever a source or the script changes",
		Long: `Build every target, then keep watching the targets script, the template,
the configuration and every assembly source and dependency. A settled change
triggers a full rebuild; the watched set is refreshed after each rebuild.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runWatch(ctx, p, noNotify)
		},
	}

	cmd.Flags().BoolVar(&noNotify, "no-notify", false, "disable desktop notifications")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, p *project.Project, noNotify bool) error {
	w, err := watch.New(c.logger, p.Config.Watch.SettlingDuration())
	if err != nil {
		return err
	}
	defer w.Close()

	notifierFor := func(p *project.Project) *notifier.BuildNotifier {
		return notifier.New(notifier.Config{Enabled: p.Config.Notifications.Enabled && !noNotify}, c.logger)
	}
	n := notifierFor(p)

	rebuild := func(changed []string) {
		if len(changed) > 0 {
			c.logger.Info(fmt.Sprintf("%d file(s) changed, rebuilding", len(changed)),
				logger.WithField("files", changed))
		}

		if configChanged(p, changed) {
			next, err := c.openProject()
			if err != nil {
				// keep the old project and its watched set until the config is fixed
				c.logger.Error("Failed to reload configuration", logger.WithField("error", err))
				n.NotifyBuildFailure(err)
				return
			}
			p = next
			n = notifierFor(p)
			c.logger.Info("Configuration reloaded", logger.WithField("file", p.ConfigFile))
		}

		compiled, err := c.buildOnce(ctx, p, n)
		if err := w.SetFiles(p.WatchPaths(compiled)); err != nil {
			c.logger.Warn("Failed to update watched files", logger.WithField("error", err))
		}
		if err != nil {
			c.logger.Error(err.Error())
		}
	}

	rebuild(nil)
	c.logger.Info(fmt.Sprintf("Watching %d file(s) for changes", len(w.Files())))

	err = w.Run(ctx, rebuild)
	if errors.Is(err, context.Canceled) {
		c.logger.Info("Stopped watching")
		return nil
	}
	return err
}

// configChanged reports whether changed includes the project's config file
func configChanged(p *project.Project, changed []string) bool {
	if p.ConfigFile == "" {
		return false
	}
	cfg, err := filepath.Abs(p.ConfigFile)
	if err != nil {
		return false
	}
	for _, path := range changed {
		if abs, err := filepath.Abs(path); err == nil && abs == cfg {
			return true
		}
	}
	return false
}

// buildOnce builds the project and notifies. The plan is returned even when
// the build fails so its sources stay watched.
func (c *CLI) buildOnce(ctx context.Context, p *project.Project, n *notifier.BuildNotifier) (*plan.Plan, error) {
	compiled, err := p.Plan()
	if err != nil {
		n.NotifyBuildFailure(err)
		return nil, err
	}

	report, err := p.Engine(c.output, c.runner).Run(ctx, compiled)
	if err != nil {
		n.NotifyBuildFailure(err)
		return compiled, err
	}
	n.NotifyBuildSuccess(len(report.Results), report.Duration)
	return compiled, nil
}
