package pipeline

import (
	"context"
	"errors"
	"time"

	"wisher/internal/worklist"
)

func (c *Controller) nextContact(ctx context.Context, rc *RunContext) (Outcome, error) {
	lines, err := c.deps.Files.Worklist.ReadLines()
	if err != nil {
		return OK, configFatal("Today birthday list contact", err)
	}
	if worklist.AllProcessed(lines) {
		c.log.Info("Every contact in today's worklist is processed")
		return Done, nil
	}

	_, phone, err := worklist.NextPending(lines)
	if err != nil {
		return OK, dataFatal("Today birthday list contact", err)
	}

	rc.Phone = phone
	rc.Message = ""
	rc.Multiline = false
	rc.ResumeConfirm = false
	rc.Redos = 0
	rc.SentAt = c.now()
	c.log.WithField("phone", phone).Info("Processing contact")
	return OK, nil
}

func (c *Controller) markNotFound(ctx context.Context, rc *RunContext) (Outcome, error) {
	c.deps.Session.Close()
	if err := c.stamp(rc.Phone, c.now(), worklist.NotFoundMarker); err != nil {
		return OK, err
	}
	c.log.WithField("phone", rc.Phone).Warn("Contact not found in WhatsApp")
	return OK, nil
}

func (c *Controller) markSent(ctx context.Context, rc *RunContext) (Outcome, error) {
	if err := c.stamp(rc.Phone, rc.SentAt, rc.Message); err != nil {
		return OK, err
	}
	c.log.WithField("phone", rc.Phone).Info("Wish sent")
	return OK, nil
}

// stamp rewrites the worklist with the outcome for phone. A contact that
// is no longer pending was stamped before a restart and is left as is.
func (c *Controller) stamp(phone string, at time.Time, outcome string) error {
	lines, err := c.deps.Files.Worklist.ReadLines()
	if err != nil {
		return configFatal("Today birthday list contact", err)
	}
	updated, err := worklist.Stamp(lines, phone, at, outcome)
	if errors.Is(err, worklist.ErrEntryNotFound) {
		log := c.log.WithField("phone", phone)
		if i := worklist.FindEntry(lines, phone); i >= 0 {
			log.WithField("line", i+1).Info("Worklist entry already stamped")
		} else {
			log.Warn("No worklist entry to update")
		}
		return nil
	}
	if err != nil {
		return err
	}
	return c.deps.Files.Worklist.Rewrite(updated)
}
