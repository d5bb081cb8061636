package campaign

import (
	"context"

	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/outcome"
	"outbound-dialer/internal/phone"
	"outbound-dialer/pkg/logger"
)

// RunSource yields the run webhooks are applied to. Manager implements it.
type RunSource interface {
	Current() *Run
}

// AgentPicker chooses the human-agent line a transfer is bridged to.
type AgentPicker interface {
	PickAgent(ctx context.Context, p phone.Canonical) (string, bool)
}

// ActionURLFunc builds the menu-response endpoint for a resolved contact.
type ActionURLFunc func(p phone.Canonical, token string) string

type VoiceEvent struct {
	Token      string
	To         string
	CallSid    string
	AnsweredBy string
}

type MenuEvent struct {
	// Phone is the canonical phone carried by the menu action URL.
	Phone   string
	Token   string
	To      string
	CallSid string
	Digits  string
	Speech  string
}

type StatusEvent struct {
	Token           string
	To              string
	CallSid         string
	Status          string
	DurationSeconds int
	AnsweredBy      string
}

type ReplyKind string

const (
	ReplyPrompt      ReplyKind = "prompt"
	ReplyVoicemail   ReplyKind = "voicemail"
	ReplyTransfer    ReplyKind = "transfer"
	ReplyUnavailable ReplyKind = "unavailable"
	ReplyGoodbye     ReplyKind = "goodbye"
	ReplyFallback    ReplyKind = "fallback"
)

// Reply is the provider-agnostic instruction returned to a voice webhook.
// The telephony adapter renders it (TwiML for Twilio).
type Reply struct {
	Kind  ReplyKind
	Name  string
	Phone phone.Canonical

	// Action is the menu-response endpoint for ReplyPrompt.
	Action string
	// DialTo is the agent line for ReplyTransfer.
	DialTo string
}

// StatusResult describes what a call-status event did.
type StatusResult struct {
	Phone    phone.Canonical
	Ignored  string
	Result   outcome.Kind
	Recorded bool
	Counted  bool
	Released bool
}

// Engine is the webhook state machine. Every handler is idempotent: the
// outcome store enforces precedence, the terminal ledger suppresses duplicate
// counting, and the dispatcher only releases the slot held by the phone.
type Engine struct {
	runs       RunSource
	store      *outcome.Store
	ledger     TerminalLedger
	classifier IntentClassifier
	agents     AgentPicker
	actionURL  ActionURLFunc
}

func NewEngine(runs RunSource, store *outcome.Store, ledger TerminalLedger, classifier IntentClassifier, agents AgentPicker, actionURL ActionURLFunc) *Engine {
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	if classifier == nil {
		classifier = NewKeywordClassifier(DefaultTransferDigit, nil)
	}
	return &Engine{
		runs:       runs,
		store:      store,
		ledger:     ledger,
		classifier: classifier,
		agents:     agents,
		actionURL:  actionURL,
	}
}

// VoiceEntry answers the call with the prompt. It never writes an outcome.
func (e *Engine) VoiceEntry(ctx context.Context, ev VoiceEvent) Reply {
	log := logger.From(ctx)
	run := e.runs.Current()
	if run == nil {
		log.Warn("voice entry without an active run", "call_sid", ev.CallSid)
		return Reply{Kind: ReplyFallback}
	}
	c, p, ok := run.resolve(ev.Token, ev.To)
	if !ok {
		log.Warn("voice entry for unknown contact", "run_id", run.ID, "call_sid", ev.CallSid, "to", ev.To)
		return Reply{Kind: ReplyFallback}
	}
	if calls.IsMachine(ev.AnsweredBy) {
		log.Info("answering machine reached", "run_id", run.ID, "phone", p, "answered_by", ev.AnsweredBy)
		return Reply{Kind: ReplyVoicemail, Name: c.Name, Phone: p}
	}

	action := ""
	if e.actionURL != nil {
		action = e.actionURL(p, ev.Token)
	}
	return Reply{Kind: ReplyPrompt, Name: c.Name, Phone: p, Action: action}
}

// MenuResponse classifies the caller's input. A transfer records
// successfully_transferred and bridges to an agent line; anything else says
// goodbye and leaves the outcome to the terminal call-status.
func (e *Engine) MenuResponse(ctx context.Context, ev MenuEvent) Reply {
	log := logger.From(ctx)
	run := e.runs.Current()
	if run == nil {
		log.Warn("menu response without an active run", "call_sid", ev.CallSid)
		return Reply{Kind: ReplyGoodbye}
	}
	c, p, ok := run.resolve(ev.Token, ev.Phone, ev.To)
	if !ok {
		log.Warn("menu response for unknown contact", "run_id", run.ID, "call_sid", ev.CallSid, "phone", ev.Phone)
		return Reply{Kind: ReplyGoodbye}
	}
	log = log.With("run_id", run.ID, "phone", p)

	if e.classifier.Classify(ev.Digits, ev.Speech) != IntentTransfer {
		run.markDeclined(p)
		log.Info("menu declined", "digits", ev.Digits)
		return Reply{Kind: ReplyGoodbye, Name: c.Name, Phone: p}
	}

	target, ok := "", false
	if e.agents != nil {
		target, ok = e.agents.PickAgent(ctx, p)
	}
	if !ok {
		log.Error("transfer requested but no agent line available")
		run.markDeclined(p)
		return Reply{Kind: ReplyUnavailable, Name: c.Name, Phone: p}
	}

	if _, _, err := e.store.Record(ctx, p, c.Name, outcome.KindTransferred, 0); err != nil {
		log.Error("transfer outcome not recorded", "err", err)
	}
	return Reply{Kind: ReplyTransfer, Name: c.Name, Phone: p, DialTo: target}
}

// OutcomeFor maps a terminal provider status onto an outcome kind.
// declined marks a contact who answered the menu without asking for a transfer.
func OutcomeFor(status calls.CallStatus, durationSeconds int, answeredBy string, declined bool) outcome.Kind {
	switch status {
	case calls.CallStatusNoAnswer:
		return outcome.KindNoAnswer
	case calls.CallStatusBusy:
		return outcome.KindBusy
	case calls.CallStatusFailed:
		return outcome.KindFailed
	case calls.CallStatusCanceled:
		return outcome.KindCanceled
	case calls.CallStatusCompleted:
		switch {
		case durationSeconds <= 0:
			return outcome.KindNoAnswer
		case calls.IsMachine(answeredBy):
			return outcome.KindLeftVoicemail
		case declined:
			return outcome.KindAnsweredNoAction
		default:
			return outcome.KindAnsweredNoTransfer
		}
	default:
		return ""
	}
}

// CallStatus applies a provider lifecycle callback. Only terminal statuses
// for known contacts change state: the outcome is recorded unless a transfer
// or voicemail is already stored, the tracker is incremented the first time
// the phone terminates in this run, and the dispatcher slot is released.
func (e *Engine) CallStatus(ctx context.Context, ev StatusEvent) StatusResult {
	log := logger.From(ctx)

	status, ok := calls.ParseStatus(ev.Status)
	if !ok {
		log.Warn("unknown call status", "status", ev.Status, "call_sid", ev.CallSid)
		return StatusResult{Ignored: "unknown_status"}
	}
	if !status.Terminal() {
		return StatusResult{Ignored: "non_terminal"}
	}

	run := e.runs.Current()
	if run == nil {
		log.Warn("call status without an active run", "call_sid", ev.CallSid, "status", status)
		return StatusResult{Ignored: "no_run"}
	}
	c, p, ok := run.resolve(ev.Token, ev.To)
	if !ok {
		log.Warn("call status for unknown contact", "run_id", run.ID, "call_sid", ev.CallSid, "to", ev.To)
		return StatusResult{Ignored: "unknown_contact"}
	}
	log = log.With("run_id", run.ID, "phone", p)
	res := StatusResult{Phone: p}

	if e.store.Final(ctx, p) {
		log.Debug("call status after final outcome", "status", status)
	} else {
		res.Result = OutcomeFor(status, ev.DurationSeconds, ev.AnsweredBy, run.hasDeclined(p))
		_, accepted, err := e.store.Record(ctx, p, c.Name, res.Result, ev.DurationSeconds)
		if err != nil {
			log.Error("call outcome not recorded", "status", status, "err", err)
		}
		res.Recorded = accepted
	}

	if e.ledger.First(ctx, run.ID, p) {
		res.Counted = true
		run.Tracker.Increment()
	} else {
		log.Debug("duplicate terminal status", "status", status)
	}

	res.Released = run.Dispatcher.Complete(context.WithoutCancel(ctx), p)
	return res
}
