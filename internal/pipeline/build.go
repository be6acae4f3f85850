package pipeline

import (
	"context"

	"wisher/internal/worklist"
)

// checkResume reuses a worklist that already belongs to today so a
// restart never sends a wish twice.
func (c *Controller) checkResume(ctx context.Context, rc *RunContext) (Outcome, error) {
	if c.opts.Fresh {
		c.log.Info("Fresh run requested, rebuilding today's worklist")
		return OK, nil
	}
	if !c.deps.Files.Worklist.Exists() {
		return OK, nil
	}

	lines, err := c.deps.Files.Worklist.ReadLines()
	if err != nil {
		return OK, err
	}
	if !worklist.BelongsToday(lines, rc.Today) {
		return OK, nil
	}

	total, _ := worklist.Counts(lines)
	c.log.WithField("entries", total).Info("Resuming today's worklist")

	wishes, err := c.deps.Files.Wishes.ReadLines()
	if err != nil || worklist.NewWishPool(wishes).Len() == 0 {
		return ResumeNoWishes, nil
	}
	return Resume, nil
}

func (c *Controller) resetWorklist(ctx context.Context, rc *RunContext) (Outcome, error) {
	if err := c.deps.Files.Worklist.Reset(); err != nil {
		return OK, err
	}
	// A new worklist has not been uploaded yet.
	if err := c.deps.Files.Report.Reset(); err != nil {
		return OK, err
	}
	// The rebuild happened; a later restart must resume, not rebuild.
	c.opts.Fresh = false
	c.log.Info("Today birthday list contact reset")
	return OK, nil
}

func (c *Controller) fillWorklist(ctx context.Context, rc *RunContext) (Outcome, error) {
	entries, skipped, err := c.deps.Records.TodayBirthdays(ctx, rc.Today)
	if err != nil {
		return OK, recordsErr(err)
	}

	if err := c.deps.Files.Worklist.Reset(); err != nil {
		return OK, err
	}
	for _, e := range entries {
		if err := c.deps.Files.Worklist.AppendLine(e.Line()); err != nil {
			// An empty worklist is rebuilt on restart; a partial one would be resumed.
			_ = c.deps.Files.Worklist.Reset()
			return OK, err
		}
	}

	c.log.Infof("Transferred %d birthdays to Today birthday list contact", len(entries))
	if skipped > 0 {
		c.log.Warnf("Skipped %d records due to validation errors", skipped)
	}
	return OK, nil
}

func (c *Controller) resetWishPool(ctx context.Context, rc *RunContext) (Outcome, error) {
	if err := c.deps.Files.Wishes.Reset(); err != nil {
		return OK, err
	}
	return OK, nil
}

func (c *Controller) fillWishPool(ctx context.Context, rc *RunContext) (Outcome, error) {
	wishes, err := c.deps.Records.DedupeWishes(ctx)
	if err != nil {
		return OK, recordsErr(err)
	}

	lines := make([]string, 0, len(wishes))
	for _, w := range wishes {
		if w = worklist.SingleLine(w); w != "" {
			lines = append(lines, w)
		}
	}
	if err := c.deps.Files.Wishes.Rewrite(lines); err != nil {
		return OK, err
	}
	c.log.Infof("Transferred %d wishes to the wish pool", len(lines))
	return OK, nil
}
