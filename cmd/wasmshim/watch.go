package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gramcheck/wasmshim"
	"github.com/gramcheck/wasmshim/internal/config"
	"github.com/gramcheck/wasmshim/internal/watch"
)

func newWatchCmd(o *options) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-checks the guest every time it is rebuilt",
		Long: `Loads and checks the guest, then again each time the file changes, until
interrupted. Compiled code is cached in memory across reloads, or in
--cachedir when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("debounce") {
				o.cfg.Watch.Debounce = debounce
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.watch(ctx)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", config.Default().Watch.Debounce, "wait this long after the last change before reloading")
	return cmd
}

func (o *options) watch(ctx context.Context) error {
	// Watch first, so a build finishing during the initial check is not missed.
	w, err := watch.New(o.cfg.Wasm, o.cfg.Watch.Debounce, o.log)
	if err != nil {
		return err
	}

	cache, err := wasmshim.NewCompilationCache(o.cfg.CacheDir)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("invalid cachedir: %w", err)
	}
	defer cache.Close(context.Background())

	reload := func(ctx context.Context) error {
		s, err := wasmshim.Load(ctx, w.Path(), o.shimConfig(cache))
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		fmt.Fprintf(o.stdOut, "loaded %s\n", w.Path())
		return runCheck(ctx, s, o.stdOut)
	}

	if err = reload(ctx); err != nil {
		// Likely not built yet, or broken. Keep watching either way.
		o.log.Warn("initial load failed", zap.Error(err))
	}
	o.log.Info("watching for changes", zap.String("path", w.Path()))
	return w.Run(ctx, reload)
}
