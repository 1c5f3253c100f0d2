package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mcz2osz/batch"
	"mcz2osz/fetch"
)

func newFetchCmd(opts *options) *cobra.Command {
	var (
		dir       string
		noConvert bool
	)
	cmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Download .mcz containers and convert them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			client, err := fetch.New(cfg.Fetch, opts.logger)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return run(cfg, opts, cmd, func(a *app) ([]batch.Output, error) {
				var outputs []batch.Output
				var errs []error
				for _, url := range args {
					path, err := client.Download(ctx, url, dir)
					if err != nil {
						errs = append(errs, err)
						if ctx.Err() != nil {
							break
						}
						continue
					}
					if noConvert {
						fmt.Fprintln(cmd.OutOrStdout(), path)
						continue
					}
					out, err := a.orchestrator.ConvertContainer(path)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", path, err))
						continue
					}
					outputs = append(outputs, *out)
				}
				return outputs, errors.Join(errs...)
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to download into")
	cmd.Flags().BoolVar(&noConvert, "no-convert", false, "only download")
	return cmd
}

func newRemoteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remote <server> <x.mcz>...",
		Short: "Convert .mcz containers on a running serve instance",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			client, err := fetch.New(cfg.Fetch, opts.logger)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			remoteOpts := fetch.Options{Rate: cfg.Rate, Speed: cfg.SpeedModifier}
			var errs []error
			for _, path := range args[1:] {
				out, err := client.ConvertRemote(ctx, args[0], path, remoteOpts)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return errors.Join(errs...)
		},
	}
}
