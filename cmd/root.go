// Package cmd is the mcz2osz command line.
package cmd

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"mcz2osz/config"
)

// options holds the persistent flags. Only flags the user actually set
// override the loaded configuration.
type options struct {
	configPath    string
	rate          bool
	noRate        bool
	speed         float64
	workers       int
	summary       bool
	cardDir       string
	database      string
	previewOffset bool
	probeAudio    bool

	logger *log.Logger
	out    io.Writer
	in     io.Reader
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "mcz2osz",
		Short:         "Convert Malody key-mode charts to osu!mania",
		Long:          `mcz2osz converts Malody .mcz/.mc charts into osu!mania .osz/.osu beatmaps.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.out)
	root.SetIn(opts.in)

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "YAML config file (default $"+config.ConfigEnv+")")
	f.BoolVar(&opts.rate, "rate", true, "calculate star ratings")
	f.BoolVar(&opts.noRate, "no-rate", false, "skip star ratings")
	f.Float64Var(&opts.speed, "speed", 1, "speed modifier used for ratings")
	f.IntVar(&opts.workers, "workers", 0, "parallel conversions (default: number of CPUs)")
	f.BoolVar(&opts.summary, "summary", true, "print a summary of converted charts")
	f.StringVar(&opts.cardDir, "card-dir", "", "render info cards into this directory")
	f.StringVar(&opts.database, "database", "", "SQLite file to record conversions in")
	f.BoolVar(&opts.previewOffset, "preview-offset", true, "move preview points back by the audio offset")
	f.BoolVar(&opts.probeAudio, "probe-audio", false, "read audio tags and length")

	root.AddCommand(
		newConvertCmd(opts),
		newFileCmd(opts),
		newMcCmd(opts),
		newInfoCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		newFetchCmd(opts),
		newRemoteCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// load resolves the configuration for one command run.
func (o *options) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("rate") {
		cfg.Rate = o.rate
	}
	if flags.Changed("no-rate") && o.noRate {
		cfg.Rate = false
	}
	if flags.Changed("speed") {
		cfg.SpeedModifier = o.speed
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("summary") {
		cfg.Summary = o.summary
	}
	if flags.Changed("card-dir") {
		cfg.CardDir = o.cardDir
	}
	if flags.Changed("database") {
		cfg.Database = o.database
	}
	if flags.Changed("preview-offset") {
		cfg.PreviewOffset = o.previewOffset
	}
	if flags.Changed("probe-audio") {
		cfg.ProbeAudio = o.probeAudio
	}
	return cfg, nil
}

func Execute() {
	opts := &options{
		logger: log.New(os.Stderr, "mcz2osz ", log.LstdFlags|log.Lmsgprefix),
		out:    os.Stdout,
		in:     os.Stdin,
	}
	cobra.CheckErr(newRootCmd(opts).ExecuteContext(context.Background()))
}
