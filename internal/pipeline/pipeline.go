// Package pipeline is the controller that takes a day from the birthday
// sheet to delivered WhatsApp wishes and a summary report. It is a single
// loop over an explicit state machine; see steps.go for the table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"wisher/internal/config"
	"wisher/internal/retry"
	"wisher/internal/selectors"
	"wisher/internal/session"
	"wisher/internal/workfile"
	"wisher/internal/worklist"
)

// Records is the part of the record store the controller uses.
type Records interface {
	DedupeBirthdays(ctx context.Context) (int, error)
	CountToday(ctx context.Context, now time.Time) (int, error)
	TodayBirthdays(ctx context.Context, now time.Time) ([]worklist.Entry, int, error)
	DedupeWishes(ctx context.Context) ([]string, error)
	AppendSentLog(ctx context.Context, rows [][]string) error
}

// RequiredFile is a local credential that must exist before a run.
type RequiredFile struct {
	Artifact string
	Path     string
}

// Files groups the working files.
type Files struct {
	Worklist  *workfile.File
	Wishes    *workfile.File
	Report    *workfile.File
	Recipient *workfile.File
}

type Deps struct {
	Config    *config.Config
	Session   *session.Manager
	Selectors *selectors.Directory
	Records   Records
	Gate      retry.Gate
	Files     Files
	Required  []RequiredFile
	Clock     retry.Clock
	Rand      *rand.Rand
	Log       logrus.FieldLogger
}

type Options struct {
	// Fresh rebuilds today's worklist even when it could be resumed.
	Fresh bool
}

// RunContext is the in-flight state of one pass through the machine. It
// is rebuilt from the working files after every restart.
type RunContext struct {
	State State
	Today time.Time

	BirthdayCount int

	// Phone is the search text: a contact or the report recipient.
	Phone string
	// Message is the text being delivered.
	Message   string
	Multiline bool

	// ResumeConfirm sends the redo path straight to delivery polling
	// instead of typing the message again.
	ResumeConfirm bool
	Redos         int
	SentAt        time.Time
}

type handler func(ctx context.Context, rc *RunContext) (Outcome, error)

type Controller struct {
	deps     Deps
	opts     Options
	log      logrus.FieldLogger
	handlers map[Step]handler
}

func New(deps Deps, opts Options) *Controller {
	if deps.Clock == nil {
		deps.Clock = retry.SystemClock{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	c := &Controller{deps: deps, opts: opts, log: deps.Log}
	c.handlers = map[Step]handler{
		StepStartup:         c.startup,
		StepDedupeBirthdays: c.dedupeBirthdays,
		StepCountBirthdays:  c.countBirthdays,
		StepPrepareNotice:   c.prepareNotice,
		StepCheckResume:     c.checkResume,
		StepResetWorklist:   c.resetWorklist,
		StepFillWorklist:    c.fillWorklist,
		StepResetWishPool:   c.resetWishPool,
		StepFillWishPool:    c.fillWishPool,
		StepNextContact:     c.nextContact,
		StepMarkNotFound:    c.markNotFound,
		StepMarkSent:        c.markSent,
		StepUploadSentLog:   c.uploadSentLog,
		StepBuildReport:     c.buildReport,
		StepPrepareReport:   c.prepareReport,
		StepOpenClient:      c.openClient,
		StepSearch:          c.search,
		StepAwaitNetwork:    c.awaitNetwork,
		StepCheckNotFound:   c.checkNotFound,
		StepOpenChat:        c.openChat,
		StepTypeMessage:     c.typeMessage,
		StepSendMessage:     c.sendMessage,
		StepConfirmDelivery: c.confirmDelivery,
		StepRedo:            c.redo,
	}
	return c
}

// Run drives the machine until the day is finished. Fatal errors end the
// run; anything else hard-resets the browser and starts over from the
// working files.
func (c *Controller) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := c.runOnce(ctx)
		if err == nil {
			return nil
		}

		var fatal *FatalError
		if errors.As(err, &fatal) {
			c.log.WithField("artifact", fatal.Artifact).Error(fatal.Err.Error())
			c.deps.Session.Close()
			c.log.Error("Closing script.")
			return err
		}

		if ctx.Err() != nil {
			c.log.Warn("Interrupted, closing browser")
			c.deps.Session.HardReset(context.Background())
			return ctx.Err()
		}

		c.log.WithError(err).WithField("attempt", attempt).Error("Unexpected error, restarting from the last checkpoint")
		c.deps.Session.HardReset(ctx)
		if err := c.deps.Clock.Sleep(ctx, config.RestartSettle); err != nil {
			c.deps.Session.HardReset(context.Background())
			return err
		}
	}
}

func (c *Controller) runOnce(ctx context.Context) error {
	rc := &RunContext{
		State: State{Phase: PhaseStartup, Step: StepStartup},
		Today: c.deps.Clock.Now(),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if rc.State.Step == StepFinish {
			c.deps.Session.Close()
			c.log.WithField("phase", rc.State.Phase).Info("Script completed successfully.")
			return nil
		}

		h, ok := c.handlers[rc.State.Step]
		if !ok {
			return fmt.Errorf("no handler for %s", rc.State)
		}

		log := c.log.WithFields(logrus.Fields{"phase": rc.State.Phase, "step": rc.State.Step})
		log.Debug("Entering step")

		outcome, err := h(ctx, rc)
		if err != nil {
			return fmt.Errorf("%s: %w", rc.State, err)
		}

		to, ok := next(rc.State, outcome)
		if !ok {
			return fmt.Errorf("no transition from %s on %s", rc.State, outcome)
		}
		log.WithField("outcome", outcome).Debugf("Next %s", to)
		rc.State = to
	}
}

func (c *Controller) now() time.Time {
	return c.deps.Clock.Now()
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	return c.deps.Clock.Sleep(ctx, d)
}
