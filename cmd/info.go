package cmd

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"

	"mcz2osz/transcode"
)

func newInfoCmd(opts *options) *cobra.Command {
	var openCards bool
	cmd := &cobra.Command{
		Use:   "info [dir|x.osz]",
		Short: "Summarize osu!mania .osz files and optionally render info cards",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			stat, err := os.Stat(target)
			if err != nil {
				return err
			}
			if openCards && cfg.CardDir == "" {
				cfg.CardDir = target
				if !stat.IsDir() {
					cfg.CardDir = filepath.Dir(target)
				}
			}

			a, err := newApp(cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			byPath := map[string][]transcode.Summary{}
			if stat.IsDir() {
				if byPath, err = a.orchestrator.InspectDir(target); err != nil {
					return err
				}
			} else {
				summaries, err := a.orchestrator.InspectContainer(target)
				if err != nil {
					return err
				}
				byPath[target] = summaries
			}

			paths := make([]string, 0, len(byPath))
			for p := range byPath {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			for _, p := range paths {
				printInspection(cmd.OutOrStdout(), p, byPath[p])
			}

			if openCards {
				a.mu.Lock()
				cards := slices.Clone(a.cards)
				a.mu.Unlock()
				for _, c := range cards {
					if err := open.Run(c); err != nil {
						opts.logger.Printf("open %s: %v", c, err)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&openCards, "open", false, "open the rendered cards")
	return cmd
}
