package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mcz2osz/batch"
	"mcz2osz/config"
)

func newConvertCmd(opts *options) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "convert [dir]",
		Short: "Convert every .mcz under a directory",
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
			if interactive {
				in := bufio.NewReader(cmd.InOrStdin())
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Malody MCZ to Osu! OSZ Converter")
				fmt.Fprintln(out, "--------------------------------")
				cfg.Rate = askBool(in, out, "Calculate star rating for beatmaps? (y/n): ", cfg.Rate)
				cfg.Summary = askBool(in, out, "Show conversion summary? (y/n): ", cfg.Summary)
			}

			return run(cfg, opts, cmd, func(a *app) ([]batch.Output, error) {
				return a.orchestrator.ConvertDir(dir)
			})
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "ask for rating and summary options")
	return cmd
}

func newFileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "file <x.mcz>...",
		Short: "Convert the given .mcz containers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return run(cfg, opts, cmd, func(a *app) ([]batch.Output, error) {
				var outputs []batch.Output
				var errs []error
				for _, path := range args {
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
}

func newMcCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mc <x.mc>",
		Short: "Convert one loose .mc chart and the files it references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return run(cfg, opts, cmd, func(a *app) ([]batch.Output, error) {
				out, err := a.orchestrator.ConvertChart(args[0])
				if err != nil {
					return nil, err
				}
				return []batch.Output{*out}, nil
			})
		},
	}
}

// run builds the app, converts, and prints the report when enabled. Outputs
// produced before an error are still reported.
func run(cfg config.Config, opts *options, cmd *cobra.Command, convert func(*app) ([]batch.Output, error)) error {
	a, err := newApp(cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	outputs, err := convert(a)
	if cfg.Summary && len(outputs) > 0 {
		printReport(cmd.OutOrStdout(), outputs, time.Since(start))
	}
	return err
}
