// Package watch walks extracted camera footage and feeds each frame through
// the vision analyzer.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/storewatch/internal/config"
	"github.com/sells-group/storewatch/internal/store"
	"github.com/sells-group/storewatch/internal/vision"
)

// Summary tallies one watch run.
type Summary struct {
	Frames    int
	Analyzed  int
	Failed    int
	ByVerdict map[string]int
}

// Runner processes directories of frames. Each subdirectory of the root is
// treated as one video's frames and processed in order; videos run in
// parallel up to the configured limit.
type Runner struct {
	analyzer *vision.Analyzer
	store    store.Store
	cfg      config.Config
}

// NewRunner wires a watch runner.
func NewRunner(analyzer *vision.Analyzer, st store.Store, cfg config.Config) *Runner {
	return &Runner{analyzer: analyzer, store: st, cfg: cfg}
}

// Run analyzes every frame under root. A failed frame is counted and
// skipped, not fatal: one bad frame must not stop the rest of the footage.
func (r *Runner) Run(ctx context.Context, root string) (*Summary, error) {
	if err := r.store.RegisterModel(ctx, "frame-analyzer", r.cfg.Anthropic.Model, map[string]any{
		"max_tokens": r.cfg.Anthropic.MaxTokens,
	}); err != nil {
		zap.L().Warn("watch: model registration failed", zap.Error(err))
	}

	videos, err := videoDirs(root)
	if err != nil {
		return nil, err
	}

	parallel := r.cfg.Watch.MaxParallelVideos
	if parallel <= 0 {
		parallel = 1
	}

	summaries := make([]*Summary, len(videos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, dir := range videos {
		g.Go(func() error {
			s, err := r.runVideo(gctx, dir)
			if err != nil {
				return err
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &Summary{ByVerdict: make(map[string]int)}
	for _, s := range summaries {
		total.Frames += s.Frames
		total.Analyzed += s.Analyzed
		total.Failed += s.Failed
		for k, v := range s.ByVerdict {
			total.ByVerdict[k] += v
		}
	}

	zap.L().Info("watch run complete",
		zap.String("root", root),
		zap.Int("videos", len(videos)),
		zap.Int("frames", total.Frames),
		zap.Int("analyzed", total.Analyzed),
		zap.Int("failed", total.Failed),
	)
	return total, nil
}

func (r *Runner) runVideo(ctx context.Context, dir string) (*Summary, error) {
	frames, err := frameFiles(dir)
	if err != nil {
		return nil, err
	}

	summary := &Summary{ByVerdict: make(map[string]int)}
	log := zap.L().With(zap.String("video", dir))

	for _, path := range frames {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Frames++

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("watch: unreadable frame", zap.String("frame", path), zap.Error(err))
			summary.Failed++
			continue
		}

		obs, err := r.analyzer.Analyze(ctx, vision.Frame{
			Reference: path,
			Data:      data,
			MediaType: mediaTypeFor(path),
		})
		if err != nil {
			log.Warn("watch: frame analysis failed", zap.String("frame", path), zap.Error(err))
			summary.Failed++
			continue
		}
		summary.Analyzed++
		summary.ByVerdict[string(obs.VerdictCategory)]++
	}

	return summary, nil
}

// videoDirs returns the subdirectories of root, or root itself when it holds
// frames directly.
func videoDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, eris.Wrapf(err, "watch: read dir %s", root)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	if len(dirs) == 0 {
		dirs = []string{root}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func frameFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "watch: read dir %s", dir)
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			frames = append(frames, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}

func mediaTypeFor(path string) string {
	if strings.ToLower(filepath.Ext(path)) == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}
