package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"wisher/internal/worklist"
)

func (c *Controller) uploadSentLog(ctx context.Context, rc *RunContext) (Outcome, error) {
	lines, err := c.deps.Files.Worklist.ReadLines()
	if err != nil {
		return OK, configFatal("Today birthday list contact", err)
	}
	if c.reportWritten(rc, lines) {
		c.log.Info("Sent message log already uploaded for this worklist")
		return OK, nil
	}
	rows := worklist.SentRows(lines)
	if len(rows) == 0 {
		return OK, nil
	}
	if err := c.deps.Records.AppendSentLog(ctx, rows); err != nil {
		return OK, recordsErr(err)
	}
	c.log.Infof("Uploaded %d row(s) to the sent message log", len(rows))
	return OK, nil
}

// reportWritten reports whether the report file already holds the report
// for lines. buildReport only writes it after a successful upload, so it
// doubles as the upload checkpoint across restarts.
func (c *Controller) reportWritten(rc *RunContext, lines []string) bool {
	content, err := c.deps.Files.Report.ReadAll()
	if err != nil {
		return false
	}
	return content == worklist.NewReport(rc.Today, lines).String()
}

func (c *Controller) buildReport(ctx context.Context, rc *RunContext) (Outcome, error) {
	lines, err := c.deps.Files.Worklist.ReadLines()
	if err != nil {
		return OK, configFatal("Today birthday list contact", err)
	}
	report := worklist.NewReport(rc.Today, lines)

	if err := c.deps.Files.Report.Reset(); err != nil {
		return OK, err
	}
	if err := c.deps.Files.Report.Write(report.String()); err != nil {
		return OK, err
	}
	c.log.WithFields(logrus.Fields{
		"total":     report.Total,
		"not_found": report.NotFound,
		"sent":      report.Sent(),
	}).Info("WhatsApp report written")
	return OK, nil
}

func (c *Controller) prepareReport(ctx context.Context, rc *RunContext) (Outcome, error) {
	content, err := c.deps.Files.Report.ReadAll()
	if err != nil {
		return OK, configFatal("WhatsApp report", err)
	}
	recipient, err := c.recipient()
	if err != nil {
		return OK, err
	}
	rc.Phone = recipient
	rc.Message = content
	rc.Multiline = true
	rc.ResumeConfirm = false
	rc.Redos = 0
	return OK, nil
}
