package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/config"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/source"
)

func target(snap config.Snapshot) source.Target {
	return source.Target{
		Location: snap.City,
		State:    snap.State,
		Category: snap.Category,
		Creators: snap.TargetCreators[snap.Category],
	}
}

// acquire fills the daily target through the channels in order. The primary
// channel is asked for the whole target, each later channel for what is
// still missing. Only a primary failure is returned; later channels that fail
// count as zero yield.
func (p *Pipeline) acquire(ctx context.Context, snap config.Snapshot) (int, error) {
	t := target(snap)
	want := snap.DailyTarget

	primary, primaryErr := p.harvest(ctx, p.deps.Primary, t, want)
	if primaryErr != nil {
		primaryErr = eris.Wrapf(primaryErr, "pipeline: %s", p.deps.Primary.Name())
	}
	total := primary
	if ctx.Err() != nil {
		return total, ctx.Err()
	}

	for _, src := range []source.Source{p.deps.Secondary, p.deps.Tertiary} {
		remaining := want - total
		if remaining <= 0 {
			break
		}
		if src == nil {
			continue
		}
		saved, err := p.harvest(ctx, src, t, remaining)
		total += saved
		if err != nil {
			zap.L().Warn("pipeline: spillover channel failed",
				zap.String("channel", string(src.Name())),
				zap.String("kind", string(resilience.Classify(err))),
				zap.Error(err),
			)
			continue
		}
	}
	return total, primaryErr
}

// harvest scrapes one channel and saves what it found, returning the number
// of new prospects. Prospects a failing channel returned are still saved and
// counted.
func (p *Pipeline) harvest(ctx context.Context, src source.Source, t source.Target, limit int) (int, error) {
	log := zap.L().With(zap.String("channel", string(src.Name())), zap.Int("limit", limit))
	raws, scrapeErr := src.Scrape(ctx, t, limit)
	if len(raws) == 0 {
		return 0, scrapeErr
	}
	res, err := source.Save(ctx, p.deps.Store, raws)
	log.Info("pipeline: channel harvested",
		zap.Int("found", len(raws)),
		zap.Int("saved", res.Saved),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors),
	)
	if scrapeErr != nil {
		return res.Saved, scrapeErr
	}
	return res.Saved, err
}
