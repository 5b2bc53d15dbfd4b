package core

import (
	"context"

	"go.uber.org/zap"

	"nephro-assistant/internal/metrics"
)

const logMessageLimit = 200

// Turn is the outcome of one message.
type Turn struct {
	Reply  string
	Agent  Agent
	Label  Label
	Reason string
	// Handoff is set when the receptionist judged the message clinical.
	// It is informational only.
	Handoff bool
	// Path is set for clinical turns.
	Path ClinicalPath
}

// Orchestrator is the only place the handlers are composed.  It runs one
// turn synchronously against a session the caller owns exclusively.
type Orchestrator struct {
	identity     *IdentityResolver
	router       *Router
	receptionist *Receptionist
	clinical     *ClinicalAssembler
	logger       *zap.Logger
	recorder     metrics.Recorder
}

// NewOrchestrator wires the handlers together.
func NewOrchestrator(identity *IdentityResolver, router *Router, receptionist *Receptionist, clinical *ClinicalAssembler, logger *zap.Logger, recorder metrics.Recorder) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Orchestrator{
		identity:     identity,
		router:       router,
		receptionist: receptionist,
		clinical:     clinical,
		logger:       logger,
		recorder:     recorder,
	}
}

// HandleMessage runs one turn.  The inbound message is appended to history
// before routing so the classifier sees it.  On error the session has been
// partially mutated and should be discarded by the caller.
func (o *Orchestrator) HandleMessage(ctx context.Context, sess *Session, message string) (*Turn, error) {
	sess.appendUser(message)

	if !sess.HasIdentity() {
		o.logRoute(sess, AgentReceptionist, ReasonNoIdentity, "", message)
		reply, _, err := o.identity.Resolve(ctx, message, sess)
		if err != nil {
			return nil, err
		}
		return o.finish(sess, &Turn{Reply: reply, Agent: AgentReceptionist, Reason: ReasonNoIdentity}), nil
	}

	decision, err := o.router.Route(ctx, message, sess)
	if err != nil {
		return nil, err
	}
	o.logRoute(sess, decision.Agent, decision.Reason, decision.Label, message)

	turn := &Turn{Agent: decision.Agent, Label: decision.Label, Reason: decision.Reason}
	switch decision.Agent {
	case AgentReceptionist:
		turn.Reply, turn.Handoff, err = o.receptionist.Respond(ctx, message, sess)
		if turn.Handoff {
			o.logger.Info("receptionist handoff",
				zap.String("session_id", sess.ID),
				zap.String("intent", string(decision.Label)))
		}
	default:
		var ans ClinicalAnswer
		ans, err = o.clinical.Answer(ctx, message, sess, sess.AllowWeb)
		turn.Reply, turn.Path = ans.Text, ans.Path
	}
	if err != nil {
		return nil, err
	}
	return o.finish(sess, turn), nil
}

func (o *Orchestrator) finish(sess *Session, turn *Turn) *Turn {
	sess.Mode = turn.Agent
	sess.appendAssistant(turn.Agent, turn.Reply)
	o.recorder.ObserveRoute(string(turn.Agent), turn.Reason)
	o.logger.Info("ROUTER",
		zap.String("session_id", sess.ID),
		zap.String("final_agent", string(turn.Agent)),
		zap.String("intent", string(turn.Label)))
	return turn
}

func (o *Orchestrator) logRoute(sess *Session, agent Agent, reason string, label Label, message string) {
	o.logger.Info("ROUTER",
		zap.String("session_id", sess.ID),
		zap.String("route", string(agent)),
		zap.String("reason", reason),
		zap.String("intent", string(label)),
		zap.Bool("allow_web", sess.AllowWeb),
		zap.String("message", truncate(message, logMessageLimit)))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
