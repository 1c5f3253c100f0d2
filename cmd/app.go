package cmd

import (
	"log"
	"path/filepath"
	"sync"

	"mcz2osz/batch"
	"mcz2osz/card"
	"mcz2osz/config"
	"mcz2osz/rating"
	"mcz2osz/store"
	"mcz2osz/transcode"
)

// app is everything one command run needs, wired from the configuration.
type app struct {
	cfg          config.Config
	logger       *log.Logger
	orchestrator *batch.Orchestrator
	store        *store.Store

	mu    sync.Mutex
	cards []string
}

func newApp(cfg config.Config, logger *log.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	t := &transcode.Transcoder{
		SpeedModifier:     cfg.SpeedModifier,
		OverallDifficulty: cfg.OverallDifficulty,
		KeepPreview:       !cfg.PreviewOffset,
		ProbeAudio:        cfg.ProbeAudio,
		Logger:            logger,
	}
	if cfg.Rate {
		t.Rater = rating.Mania{}
	}
	a.orchestrator = &batch.Orchestrator{
		Transcoder: t,
		Workers:    cfg.Workers,
		Logger:     logger,
	}

	if cfg.Database != "" {
		s, err := store.Open(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		a.store = s
		a.orchestrator.Store = s
	}

	if cfg.CardDir != "" {
		renderer := &card.Renderer{Placeholder: cfg.CardPlaceholder}
		a.orchestrator.PostProcess = func(summaries []transcode.Summary, assetsDir string) error {
			path, err := renderer.Render(summaries, assetsDir, cfg.CardDir)
			if err != nil {
				return err
			}
			logger.Printf("card %s", filepath.Base(path))
			a.mu.Lock()
			a.cards = append(a.cards, path)
			a.mu.Unlock()
			return nil
		}
	}
	return a, nil
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
