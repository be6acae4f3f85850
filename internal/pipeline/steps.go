package pipeline

import "fmt"

type Phase int

const (
	// PhaseStartup covers the checks that decide which phase runs.
	PhaseStartup Phase = iota
	PhaseAdminNotify
	PhaseBuildWorklist
	PhaseSendLoop
	PhaseSummaryReport
)

var phaseNames = map[Phase]string{
	PhaseStartup:       "startup",
	PhaseAdminNotify:   "admin-notify",
	PhaseBuildWorklist: "build-worklist",
	PhaseSendLoop:      "send-loop",
	PhaseSummaryReport: "summary-report",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type Step int

const (
	StepStartup Step = iota
	StepDedupeBirthdays
	StepCountBirthdays

	StepPrepareNotice

	StepCheckResume
	StepResetWorklist
	StepFillWorklist
	StepResetWishPool
	StepFillWishPool

	StepNextContact
	StepMarkNotFound
	StepMarkSent

	StepUploadSentLog
	StepBuildReport
	StepPrepareReport

	// Delivery steps shared by every phase that sends a message.
	StepOpenClient
	StepSearch
	StepAwaitNetwork
	StepCheckNotFound
	StepOpenChat
	StepTypeMessage
	StepSendMessage
	StepConfirmDelivery
	StepRedo

	StepFinish
)

var stepNames = map[Step]string{
	StepStartup:         "startup",
	StepDedupeBirthdays: "dedupe-birthdays",
	StepCountBirthdays:  "count-birthdays",
	StepPrepareNotice:   "prepare-notice",
	StepCheckResume:     "check-resume",
	StepResetWorklist:   "reset-worklist",
	StepFillWorklist:    "fill-worklist",
	StepResetWishPool:   "reset-wish-pool",
	StepFillWishPool:    "fill-wish-pool",
	StepNextContact:     "next-contact",
	StepMarkNotFound:    "mark-not-found",
	StepMarkSent:        "mark-sent",
	StepUploadSentLog:   "upload-sent-log",
	StepBuildReport:     "build-report",
	StepPrepareReport:   "prepare-report",
	StepOpenClient:      "open-client",
	StepSearch:          "search",
	StepAwaitNetwork:    "await-network",
	StepCheckNotFound:   "check-not-found",
	StepOpenChat:        "open-chat",
	StepTypeMessage:     "type-message",
	StepSendMessage:     "send-message",
	StepConfirmDelivery: "confirm-delivery",
	StepRedo:            "redo",
	StepFinish:          "finish",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

type Outcome int

const (
	OK Outcome = iota
	// Notice: today's count needs an admin notice instead of wishes.
	Notice
	// Resume: today's worklist is reused.
	Resume
	// ResumeNoWishes: worklist reused, wish pool must be rebuilt.
	ResumeNoWishes
	// NotFound: the contact does not exist in WhatsApp.
	NotFound
	// Timeout: a bounded UI wait ran out.
	Timeout
	// Exhausted: no confirmation rounds left.
	Exhausted
	// Done: every worklist entry carries an outcome.
	Done
)

var outcomeNames = map[Outcome]string{
	OK:             "ok",
	Notice:         "notice",
	Resume:         "resume",
	ResumeNoWishes: "resume-no-wishes",
	NotFound:       "not-found",
	Timeout:        "timeout",
	Exhausted:      "exhausted",
	Done:           "done",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// State is a position in the state machine.
type State struct {
	Phase Phase
	Step  Step
}

func (s State) String() string {
	return s.Phase.String() + "/" + s.Step.String()
}

type transitionKey struct {
	phase   Phase
	step    Step
	outcome Outcome
}

// anyPhase marks a transition that applies in every phase unless a
// phase-specific entry overrides it.
const anyPhase Phase = -1

func in(p Phase, s Step) State { return State{Phase: p, Step: s} }

// transitions maps (phase, step, outcome) to the next state. Steps that
// keep the current phase use anyPhase targets resolved at lookup.
var transitions = map[transitionKey]State{
	{PhaseStartup, StepStartup, OK}:            in(PhaseStartup, StepDedupeBirthdays),
	{PhaseStartup, StepDedupeBirthdays, OK}:    in(PhaseStartup, StepCountBirthdays),
	{PhaseStartup, StepCountBirthdays, OK}:     in(PhaseBuildWorklist, StepCheckResume),
	{PhaseStartup, StepCountBirthdays, Notice}: in(PhaseAdminNotify, StepPrepareNotice),

	{PhaseAdminNotify, StepPrepareNotice, OK}: in(anyPhase, StepOpenClient),

	{PhaseBuildWorklist, StepCheckResume, OK}:             in(anyPhase, StepResetWorklist),
	{PhaseBuildWorklist, StepCheckResume, Resume}:         in(PhaseSendLoop, StepNextContact),
	{PhaseBuildWorklist, StepCheckResume, ResumeNoWishes}: in(anyPhase, StepResetWishPool),
	{PhaseBuildWorklist, StepResetWorklist, OK}:           in(anyPhase, StepFillWorklist),
	{PhaseBuildWorklist, StepFillWorklist, OK}:            in(anyPhase, StepResetWishPool),
	{PhaseBuildWorklist, StepResetWishPool, OK}:           in(anyPhase, StepFillWishPool),
	{PhaseBuildWorklist, StepFillWishPool, OK}:            in(PhaseSendLoop, StepNextContact),

	{PhaseSendLoop, StepNextContact, OK}:   in(anyPhase, StepOpenClient),
	{PhaseSendLoop, StepNextContact, Done}: in(PhaseSummaryReport, StepUploadSentLog),
	{PhaseSendLoop, StepMarkNotFound, OK}:  in(anyPhase, StepNextContact),
	{PhaseSendLoop, StepMarkSent, OK}:      in(anyPhase, StepNextContact),

	{PhaseSummaryReport, StepUploadSentLog, OK}: in(anyPhase, StepBuildReport),
	{PhaseSummaryReport, StepBuildReport, OK}:   in(anyPhase, StepPrepareReport),
	{PhaseSummaryReport, StepPrepareReport, OK}: in(anyPhase, StepOpenClient),

	// Shared delivery sub-routine.
	{anyPhase, StepOpenClient, OK}:             in(anyPhase, StepSearch),
	{anyPhase, StepSearch, OK}:                 in(anyPhase, StepAwaitNetwork),
	{anyPhase, StepSearch, Timeout}:            in(anyPhase, StepOpenClient),
	{anyPhase, StepAwaitNetwork, OK}:           in(anyPhase, StepOpenChat),
	{anyPhase, StepOpenChat, OK}:               in(anyPhase, StepTypeMessage),
	{anyPhase, StepOpenChat, Resume}:           in(anyPhase, StepConfirmDelivery),
	{anyPhase, StepOpenChat, Timeout}:          in(anyPhase, StepOpenClient),
	{anyPhase, StepTypeMessage, OK}:            in(anyPhase, StepSendMessage),
	{anyPhase, StepTypeMessage, Timeout}:       in(anyPhase, StepOpenClient),
	{anyPhase, StepSendMessage, OK}:            in(anyPhase, StepConfirmDelivery),
	{anyPhase, StepConfirmDelivery, OK}:        in(anyPhase, StepFinish),
	{anyPhase, StepConfirmDelivery, Timeout}:   in(anyPhase, StepRedo),
	{anyPhase, StepConfirmDelivery, Exhausted}: in(anyPhase, StepFinish),
	{anyPhase, StepRedo, OK}:                   in(anyPhase, StepOpenClient),

	// Contacts are checked against the no-results indicator; the report
	// recipient is not.
	{PhaseSendLoop, StepAwaitNetwork, OK}:           in(anyPhase, StepCheckNotFound),
	{PhaseSendLoop, StepCheckNotFound, OK}:          in(anyPhase, StepOpenChat),
	{PhaseSendLoop, StepCheckNotFound, NotFound}:    in(anyPhase, StepMarkNotFound),
	{PhaseSendLoop, StepConfirmDelivery, OK}:        in(anyPhase, StepMarkSent),
	{PhaseSendLoop, StepConfirmDelivery, Exhausted}: in(anyPhase, StepMarkSent),
}

// next resolves the state after from finished with outcome.
func next(from State, outcome Outcome) (State, bool) {
	to, ok := transitions[transitionKey{from.Phase, from.Step, outcome}]
	if !ok {
		to, ok = transitions[transitionKey{anyPhase, from.Step, outcome}]
	}
	if !ok {
		return State{}, false
	}
	if to.Phase == anyPhase {
		to.Phase = from.Phase
	}
	return to, true
}
