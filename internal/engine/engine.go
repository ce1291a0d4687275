// Package engine provides OCR engine adapters. Engines are black boxes that
// turn an image into text; the evaluator only needs their output and a
// success flag, so every provider implements the same narrow interface.
package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ocrlab/ocreval/internal/config"
	"github.com/ocrlab/ocreval/internal/metrics"
)

// Engine recognizes text in a single image file.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// FromConfig builds the set of enabled engines. The returned slice order is
// stable (tesseract, mistral, claude, then spec-file engines in file order)
// so comparison runs are reproducible.
func FromConfig(cfg config.EnginesConfig) ([]Engine, error) {
	var engines []Engine

	if cfg.Tesseract.Enabled {
		engines = append(engines, NewTesseract(cfg.Tesseract.Languages))
	}
	if cfg.Mistral.Key != "" {
		engines = append(engines, NewMistral(cfg.Mistral.Key, cfg.Mistral.Model))
	}
	if cfg.Claude.Key != "" {
		engines = append(engines, NewClaude(cfg.Claude.Key, cfg.Claude.Model, cfg.Claude.MaxTokens))
	}
	if cfg.SpecFile != "" {
		fromSpec, err := LoadSpecFile(cfg.SpecFile)
		if err != nil {
			return nil, err
		}
		engines = append(engines, fromSpec...)
	}

	if len(engines) == 0 {
		return nil, eris.New("engine: no engines configured")
	}
	return engines, nil
}

// ByName returns the configured engine with the given name.
func ByName(engines []Engine, name string) (Engine, error) {
	for _, e := range engines {
		if e.Name() == name {
			return e, nil
		}
	}
	return nil, eris.Errorf("engine: unknown engine %q", name)
}

// RunAll runs every engine against the image concurrently and returns one
// result per engine, in engine order. A failing engine never aborts the set:
// its entry carries Success=false and the error message.
func RunAll(ctx context.Context, engines []Engine, imagePath string) []metrics.EngineResult {
	results := make([]metrics.EngineResult, len(engines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, e := range engines {
		g.Go(func() error {
			start := time.Now()
			text, err := e.Recognize(gctx, imagePath)
			if err != nil {
				zap.L().Warn("engine: recognition failed",
					zap.String("engine", e.Name()),
					zap.String("image", imagePath),
					zap.Error(err),
				)
				results[i] = metrics.EngineResult{Engine: e.Name(), Error: err.Error()}
				return nil
			}
			zap.L().Debug("engine: recognition complete",
				zap.String("engine", e.Name()),
				zap.Duration("elapsed", time.Since(start)),
			)
			results[i] = metrics.EngineResult{Engine: e.Name(), Text: text, Success: true}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines always return nil

	return results
}
