package pipeline

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"wisher/internal/config"
	"wisher/internal/selectors"
	"wisher/internal/session"
	"wisher/internal/workfile"
	"wisher/internal/worklist"
)

// echoPrefix is how much of a typed message is checked against the
// message field.
const echoPrefix = 100

// openClient makes sure WhatsApp Web is up and clicks the chat search
// entry point.
func (c *Controller) openClient(ctx context.Context, rc *RunContext) (Outcome, error) {
	if !c.deps.Session.IsAlive() {
		if _, err := c.deps.Session.Open(ctx); err != nil {
			return OK, err
		}
	}
	xpath, err := c.deps.Selectors.Resolve(ctx, selectors.OpenChat)
	if err != nil {
		return OK, err
	}
	if err := c.deps.Session.ClickWithRefresh(ctx, xpath); err != nil {
		return OK, err
	}
	return OK, nil
}

func (c *Controller) search(ctx context.Context, rc *RunContext) (Outcome, error) {
	page, err := c.deps.Session.Page()
	if err != nil {
		return OK, err
	}
	field := c.deps.Config.Page.SearchFieldXPath

	for attempt := 1; attempt <= config.TypeAttempts; attempt++ {
		if err := page.Input(field, rc.Phone); err != nil {
			c.log.WithError(err).Debugf("Typing number, attempt %d", attempt)
		} else if text, err := page.Text(field); err == nil && strings.Contains(compact(text), compact(rc.Phone)) {
			c.log.WithField("phone", rc.Phone).Debug("Number entered in search field")
			return OK, nil
		}
		if err := c.sleep(ctx, config.InputRetryDelay); err != nil {
			return OK, err
		}
	}

	c.log.WithField("phone", rc.Phone).Warn("Search field did not take the number, reopening WhatsApp")
	c.deps.Session.Close()
	return Timeout, nil
}

func (c *Controller) awaitNetwork(ctx context.Context, rc *RunContext) (Outcome, error) {
	if err := c.sleep(ctx, config.NetworkSettle); err != nil {
		return OK, err
	}
	if c.deps.Gate != nil && !c.deps.Gate.Probe(ctx) {
		if err := c.deps.Gate.Await(ctx); err != nil {
			return OK, err
		}
	}
	return OK, nil
}

func (c *Controller) checkNotFound(ctx context.Context, rc *RunContext) (Outcome, error) {
	xpath, err := c.deps.Selectors.Resolve(ctx, selectors.NoResults)
	if err != nil {
		return OK, err
	}
	found, err := c.deps.Session.WaitFor(ctx, xpath, config.Poll)
	if err != nil {
		return OK, err
	}
	if found {
		return NotFound, nil
	}
	return OK, nil
}

// openChat selects the first search result and focuses the message box.
// On the redo path it stops there and goes straight to confirmation.
func (c *Controller) openChat(ctx context.Context, rc *RunContext) (Outcome, error) {
	page, err := c.deps.Session.Page()
	if err != nil {
		return OK, err
	}
	if err := c.sleep(ctx, config.StabilitySettle); err != nil {
		return OK, err
	}
	if err := page.Press(session.KeyArrowDown); err != nil {
		return OK, err
	}
	if err := c.sleep(ctx, config.KeySettle); err != nil {
		return OK, err
	}
	if err := page.Press(session.KeyEnter); err != nil {
		return OK, err
	}

	xpath, err := c.deps.Selectors.Resolve(ctx, selectors.MessageInput)
	if err != nil {
		return OK, err
	}
	if err := c.deps.Session.ClickWithin(ctx, xpath, config.ElementWait); err != nil {
		if errors.Is(err, session.ErrElementNotFound) {
			c.log.Warn("Message box did not appear, reopening WhatsApp")
			c.deps.Session.Close()
			return Timeout, nil
		}
		return OK, err
	}

	if rc.ResumeConfirm {
		return Resume, nil
	}
	return OK, nil
}

func (c *Controller) typeMessage(ctx context.Context, rc *RunContext) (Outcome, error) {
	if rc.State.Phase == PhaseSendLoop && rc.Message == "" {
		wish, err := c.pickWish()
		if err != nil {
			return OK, err
		}
		rc.Message = wish
	}

	page, err := c.deps.Session.Page()
	if err != nil {
		return OK, err
	}
	field := c.deps.Config.Page.MessageFieldXPath

	for attempt := 1; attempt <= config.TypeAttempts; attempt++ {
		if err := c.typeInto(page, field, rc.Message, rc.Multiline); err != nil {
			c.log.WithError(err).Debugf("Typing message, attempt %d", attempt)
		} else if text, err := page.Text(field); err == nil && echoed(text, rc.Message) {
			return OK, nil
		}
		if err := c.sleep(ctx, config.InputRetryDelay); err != nil {
			return OK, err
		}
	}

	c.log.Warn("Message box did not take the text, reopening WhatsApp")
	c.deps.Session.Close()
	return Timeout, nil
}

func (c *Controller) pickWish() (string, error) {
	lines, err := c.deps.Files.Wishes.ReadLines()
	if err != nil {
		return "", dataFatal("Wishes", err)
	}
	wish, err := worklist.NewWishPool(workfile.NonEmpty(lines)).Pick(c.deps.Rand)
	if err != nil {
		return "", dataFatal("Wishes", err)
	}
	return wish, nil
}

// typeInto clears the field with the first line and adds the rest as
// soft line breaks so the text goes out as one message.
func (c *Controller) typeInto(page session.Page, field, message string, multiline bool) error {
	if !multiline {
		return page.Input(field, message)
	}
	lines := strings.Split(strings.ReplaceAll(message, "\r\n", "\n"), "\n")
	if err := page.Input(field, lines[0]); err != nil {
		return err
	}
	for _, line := range lines[1:] {
		if err := page.ShiftEnter(); err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if err := page.Type(line); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) sendMessage(ctx context.Context, rc *RunContext) (Outcome, error) {
	page, err := c.deps.Session.Page()
	if err != nil {
		return OK, err
	}
	if err := c.sleep(ctx, config.KeySettle); err != nil {
		return OK, err
	}
	if err := page.Press(session.KeyEnter); err != nil {
		if ctx.Err() != nil {
			return OK, ctx.Err()
		}
		// The key may have gone through. Confirmation decides, never a resend.
		c.log.WithError(err).Warn("Session lost while sending")
		c.deps.Session.Close()
		return OK, nil
	}
	c.log.WithField("phone", rc.Phone).Debug("Message sent, waiting for delivery")
	return OK, nil
}

// confirmDelivery waits for the pending clock icon to go away. The
// session is closed either way. A timeout or a lost session either redoes
// the contact without retyping or, with no rounds left, accepts it as
// sent.
func (c *Controller) confirmDelivery(ctx context.Context, rc *RunContext) (Outcome, error) {
	xpath, err := c.deps.Selectors.Resolve(ctx, selectors.PendingIndicator)
	if err != nil {
		return OK, err
	}
	if err := c.sleep(ctx, config.NetworkSettle); err != nil {
		return OK, err
	}
	log := c.log.WithField("phone", rc.Phone)
	gone, err := c.deps.Session.WaitGone(ctx, xpath, config.DeliveryWait)
	if err != nil {
		if ctx.Err() != nil {
			return OK, ctx.Err()
		}
		log.WithError(err).Warn("Session lost before delivery was confirmed")
		gone = false
	}
	rc.SentAt = c.now()
	c.deps.Session.Close()

	if gone {
		log.Info("Message delivered")
		return OK, nil
	}

	retries := c.deps.Config.ReportConfirmRetries
	if rc.State.Phase == PhaseSendLoop {
		retries = c.deps.Config.ContactConfirmRetries
	}
	if rc.Redos < retries {
		log.Warn("Delivery not confirmed, reopening to check again")
		return Timeout, nil
	}
	log.Warn("Delivery still not confirmed, giving up on confirmation")
	return Exhausted, nil
}

func (c *Controller) redo(ctx context.Context, rc *RunContext) (Outcome, error) {
	rc.Redos++
	rc.ResumeConfirm = true
	return OK, nil
}

func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// echoed reports whether the start of message shows in the field text.
func echoed(text, message string) bool {
	want := []rune(message)
	if len(want) > echoPrefix {
		want = want[:echoPrefix]
	}
	return strings.Contains(compact(text), compact(string(want)))
}
