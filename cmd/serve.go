package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mcz2osz/batch"
	"mcz2osz/server"
	"mcz2osz/watch"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an upload form that converts .mcz files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			a, err := newApp(cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &server.Server{
				Orchestrator:   a.orchestrator,
				UploadDir:      cfg.UploadDir,
				AllowedOrigins: cfg.AllowedOrigins,
				Logger:         opts.logger,
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return srv.ListenAndServe(ctx, cfg.Listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default :8080)")
	return cmd
}

func newWatchCmd(opts *options) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Convert .mcz files as they are dropped into a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("debounce") {
				cfg.WatchDebounce = debounce
			}
			a, err := newApp(cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			w := &watch.Watcher{
				Dir:      dir,
				Debounce: cfg.WatchDebounce,
				Ext:      batch.ContainerExt,
				Logger:   opts.logger,
				Convert: func(path string) {
					out, err := a.orchestrator.ConvertContainer(path)
					if err != nil {
						opts.logger.Printf("container %s: %v", path, err)
						return
					}
					if cfg.Summary {
						printReport(cmd.OutOrStdout(), []batch.Output{*out}, 0)
					}
				},
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return w.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before a container is converted (default 2s)")
	return cmd
}
