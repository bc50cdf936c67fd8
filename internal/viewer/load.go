package viewer

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/config"
	"github.com/Carmen-Shannon/oxy-graph/engine/loader"
	"github.com/Carmen-Shannon/oxy-graph/engine/scene"
	"github.com/Carmen-Shannon/oxy-graph/examples"
)

// LoadGraph loads what the viewer draws into s. A configuration with a graph block is loaded
// as is; otherwise the named example is loaded and the style blocks of cfg, if any, are
// applied on top.
//
// Parameters:
//   - ctx: cancels the load
//   - s: the session to load into
//   - cfg: the configuration, nil when the viewer runs without one
//   - example: the example used when cfg has no graph, "basic" when empty
//
// Returns:
//   - scene.Scene: the loaded scene
//   - error: an error if loading or styling fails
func LoadGraph(ctx context.Context, s loader.Session, cfg *config.Config, example string) (scene.Scene, error) {
	if cfg != nil && cfg.Graph != nil {
		return s.LoadConfig(ctx, cfg)
	}
	example = common.Coalesce(example, "basic")
	gd, err := examples.ByName(example)
	if err != nil {
		return nil, err
	}
	sc, err := s.Load(ctx, gd)
	if err != nil {
		return nil, fmt.Errorf("viewer: example %s: %w", example, err)
	}
	if cfg != nil {
		if _, err := s.Apply(ctx, cfg.Style()); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

// Workers picks the packing pool size: the flag when set, else the renderer block.
func Workers(opts *Options, cfg *config.Config) int {
	if opts.Workers >= 0 {
		return opts.Workers
	}
	if cfg != nil && cfg.Renderer != nil {
		return cfg.Renderer.Workers
	}
	return 0
}
