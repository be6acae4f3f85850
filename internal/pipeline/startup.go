package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"wisher/internal/config"
	"wisher/internal/records"
	"wisher/internal/workfile"
	"wisher/internal/worklist"
)

// recordsErr turns a missing spreadsheet key into a configuration
// failure. Everything else is left for the restart path.
func recordsErr(err error) error {
	if errors.Is(err, records.ErrCredentialsMissing) {
		return configFatal("spread sheet access key", err)
	}
	return err
}

func (c *Controller) startup(ctx context.Context, rc *RunContext) (Outcome, error) {
	c.log.WithField("date", rc.Today.Format(worklist.DateLayout)).Info("Script started")
	for _, f := range c.deps.Required {
		if _, err := os.Stat(f.Path); err != nil {
			return OK, configFatal(f.Artifact, fmt.Errorf("%w: %s", workfile.ErrMissing, f.Path))
		}
	}
	return OK, nil
}

func (c *Controller) dedupeBirthdays(ctx context.Context, rc *RunContext) (Outcome, error) {
	removed, err := c.deps.Records.DedupeBirthdays(ctx)
	if err != nil {
		return OK, recordsErr(err)
	}
	c.log.Infof("Removed %d duplicate birthday record(s)", removed)
	return OK, nil
}

func (c *Controller) countBirthdays(ctx context.Context, rc *RunContext) (Outcome, error) {
	count, err := c.deps.Records.CountToday(ctx, rc.Today)
	if err != nil {
		return OK, recordsErr(err)
	}
	rc.BirthdayCount = count
	c.log.Infof("%d birthday(s) today", count)

	if message, notice := worklist.Notice(count, config.SpamLimit); notice {
		rc.Message = message
		return Notice, nil
	}
	return OK, nil
}

// prepareNotice aims the delivery steps at the report recipient with the
// admin line already chosen by countBirthdays.
func (c *Controller) prepareNotice(ctx context.Context, rc *RunContext) (Outcome, error) {
	recipient, err := c.recipient()
	if err != nil {
		return OK, err
	}
	rc.Phone = recipient
	rc.Multiline = false
	rc.ResumeConfirm = false
	rc.Redos = 0
	c.log.Info(rc.Message)
	return OK, nil
}

func (c *Controller) recipient() (string, error) {
	lines, err := c.deps.Files.Recipient.ReadLines()
	if err != nil {
		return "", configFatal("Report number", err)
	}
	recipient, err := worklist.ReadRecipient(lines)
	if err != nil {
		return "", configFatal("Report number", err)
	}
	return recipient, nil
}
