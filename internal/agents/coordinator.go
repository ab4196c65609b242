package agents

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"minerva/internal/domain/conversation"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// TurnState tracks where a query turn is in its lifecycle.
type TurnState string

const (
	StateClassifying      TurnState = "CLASSIFYING"
	StateDispatchedJunior TurnState = "DISPATCHED_JUNIOR"
	StateDispatchedMaster TurnState = "DISPATCHED_MASTER"
	StateEscalating       TurnState = "ESCALATING"
	StateSynthesizing     TurnState = "SYNTHESIZING"
	StateDone             TurnState = "DONE"
	StateFailed           TurnState = "FAILED"
)

// Classifier decides the complexity class and ticker scope of a raw query.
type Classifier interface {
	Classify(ctx context.Context, text string, session *conversation.Session) (conversation.Query, error)
}

// Coordinator owns the per-turn state machine: classify, dispatch to a
// worker tier, escalate at most once, synthesize, and record the turn. A
// turn that fails inside a worker leaves the session history untouched.
type Coordinator struct {
	classifier Classifier
	junior     Worker
	master     Worker
	synth      *Synthesizer
	sessions   conversation.Repository
	// preseedMaster runs a junior pass before every master dispatch so the
	// master starts from an already-grounded first answer.
	preseedMaster bool
	log           *logger.Logger
}

// NewCoordinator wires the turn state machine
func NewCoordinator(
	classifier Classifier,
	junior Worker,
	master Worker,
	synth *Synthesizer,
	sessions conversation.Repository,
	preseedMaster bool,
) *Coordinator {
	return &Coordinator{
		classifier:    classifier,
		junior:        junior,
		master:        master,
		synth:         synth,
		sessions:      sessions,
		preseedMaster: preseedMaster,
		log:           logger.Get().With("component", "coordinator"),
	}
}

// HandleQuery runs one complete turn for the session. The returned response
// is already part of the session history; on error nothing was appended.
func (c *Coordinator) HandleQuery(ctx context.Context, sessionID uuid.UUID, text string) (*conversation.SynthesizedResponse, error) {
	start := time.Now()
	log := c.log.With("session_id", sessionID.String())

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty query")
	}

	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}

	state := StateClassifying
	query, err := c.classifier.Classify(ctx, text, session)
	if err != nil {
		return nil, c.failTurn(log, state, "", start, errors.Wrap(err, "classify query"))
	}
	log.Infow("Query classified",
		"class", query.Class,
		"tickers", query.Tickers,
		"narrow_margin", query.NarrowMargin,
	)

	// Without a ticker scope there is nothing to dispatch on; portfolio
	// reviews are the exception since they can discuss strategy in general.
	if len(query.Tickers) == 0 && query.Class != conversation.ClassPortfolio {
		resp := c.synth.Clarification()
		if err := c.appendTurn(ctx, sessionID, query, resp); err != nil {
			return nil, c.failTurn(log, state, query.Class, start, err)
		}
		metrics.RecordTurn(string(query.Class), time.Since(start), nil)
		return resp, nil
	}

	task := Task{Query: query, History: session.Turns}
	var outputs []*conversation.WorkerOutput
	escalated := false

	if query.Class == conversation.ClassSimple {
		state = c.transition(log, state, StateDispatchedJunior)
		jout, err := c.junior.Run(ctx, task)
		if err != nil {
			return nil, c.failTurn(log, state, query.Class, start, errors.Wrap(err, "junior pass"))
		}
		outputs = append(outputs, jout)

		if trigger, ok := escalationTrigger(query, jout); ok {
			state = c.transition(log, state, StateEscalating)
			escalated = true
			metrics.RecordEscalation(trigger)
			log.Infow("Escalating to master",
				"trigger", trigger,
				"junior_confidence", jout.Confidence,
				"low_reason", jout.LowReason,
			)

			mtask := task
			mtask.PriorOutput = jout
			mout, err := c.master.Run(ctx, mtask)
			if err != nil {
				return nil, c.failTurn(log, state, query.Class, start, errors.Wrap(err, "escalated master pass"))
			}
			outputs = append(outputs, mout)
		}
	} else {
		state = c.transition(log, state, StateDispatchedMaster)
		mtask := task
		if c.preseedMaster {
			jout, err := c.junior.Run(ctx, task)
			if err != nil {
				log.Warnw("Preseed junior pass failed, master starts cold", "error", err)
			} else {
				outputs = append(outputs, jout)
				mtask.PriorOutput = jout
			}
		}
		mout, err := c.master.Run(ctx, mtask)
		if err != nil {
			return nil, c.failTurn(log, state, query.Class, start, errors.Wrap(err, "master pass"))
		}
		outputs = append(outputs, mout)
	}

	state = c.transition(log, state, StateSynthesizing)
	resp := c.synth.Compose(query, outputs, escalated)

	if err := c.appendTurn(ctx, sessionID, query, resp); err != nil {
		return nil, c.failTurn(log, state, query.Class, start, err)
	}

	c.transition(log, state, StateDone)
	metrics.RecordTurn(string(query.Class), time.Since(start), nil)
	log.Infow("Turn complete",
		"class", query.Class,
		"escalated", escalated,
		"workers", resp.ContributingWorkers,
		"warnings", len(resp.Warnings),
		"elapsed", time.Since(start),
	)

	return resp, nil
}

// escalationTrigger decides whether a junior pass warrants the master.
// Low confidence from missing market data never escalates: the master would
// hit the same provider failures and burn budget for nothing.
func escalationTrigger(query conversation.Query, out *conversation.WorkerOutput) (string, bool) {
	if out.Confidence == conversation.ConfidenceLow && out.LowReason != conversation.LowReasonDataUnavailable {
		return "low_confidence", true
	}
	if query.NarrowMargin {
		return "narrow_margin", true
	}
	return "", false
}

func (c *Coordinator) appendTurn(ctx context.Context, sessionID uuid.UUID, query conversation.Query, resp *conversation.SynthesizedResponse) error {
	turn := conversation.Turn{
		Query:    query,
		Response: *resp,
		At:       time.Now().UTC(),
	}
	if err := c.sessions.AppendTurn(ctx, sessionID, turn); err != nil {
		return errors.Wrap(err, "append turn")
	}
	return nil
}

func (c *Coordinator) failTurn(log *logger.Logger, state TurnState, class conversation.ComplexityClass, start time.Time, err error) error {
	log.Errorw("Turn failed",
		"state", StateFailed,
		"failed_in", state,
		"class", class,
		"error", err,
	)
	label := string(class)
	if label == "" {
		label = "unclassified"
	}
	metrics.RecordTurn(label, time.Since(start), err)
	return err
}

func (c *Coordinator) transition(log *logger.Logger, from, to TurnState) TurnState {
	log.Debugw("State transition", "from", from, "to", to)
	return to
}
