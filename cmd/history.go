package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mcz2osz/store"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit    int
		failures bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversions or failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Database == "" {
				return errors.New("no database configured, set --database or MCZ2OSZ_DATABASE")
			}
			s, err := store.Open(cfg.Database, opts.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if failures {
				list, err := s.Failures(limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "WHEN\tCATEGORY\tUNIT\tREASON")
				for _, f := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", humanize.Time(f.CreatedAt), f.Category, f.Unit, f.Reason)
				}
				return nil
			}

			list, err := s.Recent(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "WHEN\tOUTPUT\tCHART\tKEYS\tSR")
			for _, c := range list {
				for _, chart := range c.Charts {
					sr := "N/A"
					if chart.Rating != nil {
						sr = fmt.Sprintf("%.2f", *chart.Rating)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s [%s]\t%dK\t%s\n",
						humanize.Time(c.CreatedAt), c.Output, chart.Title, chart.Version, chart.Columns, sr)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().BoolVar(&failures, "failures", false, "list failed units instead")
	return cmd
}
