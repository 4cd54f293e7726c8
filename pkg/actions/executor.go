// Package actions applies one state transition to the local node's record.
//
// Each action resolves the node, makes its remote call once, and records the
// result in an outcome. Nothing is retried and nothing is rolled back.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"swisctl/pkg/inventory"
	"swisctl/pkg/models"
	"swisctl/pkg/outcome"
	"swisctl/pkg/swis"
)

// ErrAction marks a remote call the server did not accept.
var ErrAction = errors.New("remote call failed")

// ErrUnknownAction is a configuration fault: the requested kind has no handler.
var ErrUnknownAction = errors.New("unknown action")

// Step names as they appear in the log.
const (
	StepDispatch         = "select action"
	StepResolveNode      = "resolve node"
	StepSuppressAlerts   = "suppress alerts"
	StepResumeAlerts     = "resume alerts"
	StepUnmanage         = "unmanage node"
	StepRemanage         = "remanage node"
	StepPollNow          = "poll now"
	StepResolveGroup     = "resolve group"
	StepAddToGroup       = "add to group"
	StepCustomProperties = "set custom properties"
)

const (
	unmanageSpan = 10 // years
	remanageSpan = 99 // years
)

// Session is the subset of *swis.Session the executor needs.
type Session interface {
	inventory.Querier
	Invoke(ctx context.Context, entity, verb string, args ...any) swis.Reply
	Update(ctx context.Context, uri string, properties map[string]any) swis.Reply
}

// Request is the run context handed to the executor.
type Request struct {
	Kind       models.ActionKind
	Host       string
	Group      string
	City       string
	Department string
	DryRun     bool
}

// Executor runs actions against one session.
type Executor struct {
	session Session
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the time source used for action timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func NewExecutor(session Session, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{session: session, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the state of one Execute call.
type run struct {
	*Executor
	ctx context.Context
	req Request
	out *outcome.Outcome
}

// Execute applies req.Kind and returns the recorded outcome.
func (e *Executor) Execute(ctx context.Context, req Request) *outcome.Outcome {
	r := &run{Executor: e, ctx: ctx, req: req, out: outcome.New(req.Kind, req.Host)}
	e.logger.Info("Executing action", "component", "ActionExecutor", "action", req.Kind, "host", req.Host, "dry_run", req.DryRun)

	switch req.Kind {
	case models.ActionMute:
		r.mute()
	case models.ActionUnmute:
		r.unmute()
	case models.ActionUnmanage:
		r.unmanage()
	case models.ActionManage:
		r.manage()
	case models.ActionInit:
		r.initialize()
	default:
		r.out.Fail(outcome.StatusClientUnavailable, StepDispatch, fmt.Errorf("%w: %q", ErrUnknownAction, req.Kind))
	}
	return r.out
}

func (r *run) resolve(mode inventory.Mode) (models.Entity, bool) {
	entity, err := inventory.Resolve(r.ctx, r.session, mode, r.req.Host)
	if err != nil {
		r.logger.Error("Node resolution failed", "component", "ActionExecutor", "host", r.req.Host, "match", mode.String(), "error", err)
		r.out.Fail(outcome.StatusResolutionFailed, StepResolveNode, err)
		return models.Entity{}, false
	}
	r.logger.Info("Node resolved", "component", "ActionExecutor", "host", r.req.Host, "match", mode.String(), "node_id", entity.NodeID, "uri", entity.URI)
	r.out.Pass(StepResolveNode, fmt.Sprintf("%s (%s)", entity.URI, NodeDescriptor(entity.NodeID)))
	return entity, true
}

// invoke calls entity.verb once and records the step. Any accepted reply,
// including the null that void verbs return, passes; a fault fails the step
// with status.
func (r *run) invoke(status outcome.Status, step, entity, verb string, args ...any) bool {
	if r.req.DryRun {
		r.logger.Info("Dry run, skipping verb", "component", "ActionExecutor", "step", step, "entity", entity, "verb", verb, "args", args)
		r.out.Pass(step, "dry run")
		return true
	}

	r.logger.Info("Invoking verb", "component", "ActionExecutor", "step", step, "entity", entity, "verb", verb)
	reply := r.session.Invoke(r.ctx, entity, verb, args...)
	if !reply.OK() {
		err := r.callError(entity+"."+verb, reply)
		r.logger.Error("Verb failed", "component", "ActionExecutor", "step", step, "error", err)
		r.out.Fail(status, step, err)
		return false
	}
	r.logger.Info("Verb succeeded", "component", "ActionExecutor", "step", step)
	r.out.Pass(step, entity+"."+verb)
	return true
}

func (r *run) callError(call string, reply swis.Reply) error {
	return fmt.Errorf("%s: %w: %w", call, ErrAction, reply.Err)
}

func (r *run) mute() (models.Entity, bool) {
	entity, ok := r.resolve(inventory.BySysName)
	if !ok {
		return entity, false
	}
	now := r.now()
	ok = r.invoke(outcome.StatusActionFailed, StepSuppressAlerts,
		"Orion.AlertSuppression", "SuppressAlerts", entity.URI, Timestamp(now))
	return entity, ok
}

func (r *run) unmute() {
	entity, ok := r.resolve(inventory.BySysName)
	if !ok {
		return
	}
	r.invoke(outcome.StatusActionFailed, StepResumeAlerts,
		"Orion.AlertSuppression", "ResumeAlerts", []string{entity.URI})
}

func (r *run) unmanage() {
	entity, ok := r.resolve(inventory.ByCaption)
	if !ok {
		return
	}
	now := r.now()
	r.invoke(outcome.StatusActionFailed, StepUnmanage,
		"Orion.Nodes", "Unmanage",
		NodeDescriptor(entity.NodeID), Timestamp(now), Timestamp(now.AddDate(unmanageSpan, 0, 0)), false)
}

func (r *run) manage() {
	entity, ok := r.resolve(inventory.ByCaption)
	if !ok {
		return
	}
	now := r.now()
	if !r.invoke(outcome.StatusActionFailed, StepRemanage,
		"Orion.Nodes", "Remanage",
		NodeDescriptor(entity.NodeID), Timestamp(now), Timestamp(now.AddDate(remanageSpan, 0, 0)), false) {
		return
	}

	// The poll only refreshes status; its failure does not change the run's result.
	if r.req.DryRun {
		r.out.Pass(StepPollNow, "dry run")
		return
	}
	reply := r.session.Invoke(r.ctx, "Orion.Nodes", "PollNow", NodeDescriptor(entity.NodeID))
	if !reply.OK() {
		err := r.callError("Orion.Nodes.PollNow", reply)
		r.logger.Warn("Poll after remanage failed", "component", "ActionExecutor", "error", err)
		r.out.Warn(StepPollNow, err)
		return
	}
	r.out.Pass(StepPollNow, "Orion.Nodes.PollNow")
}

// initialize mutes the node, adds it to the configured group and sets its
// custom properties. Earlier steps stay in effect when a later one fails.
func (r *run) initialize() {
	entity, ok := r.mute()
	if !ok {
		return
	}

	group, err := inventory.ResolveGroup(r.ctx, r.session, r.req.Group)
	if err != nil {
		r.logger.Error("Group resolution failed", "component", "ActionExecutor", "group", r.req.Group, "error", err)
		r.out.Fail(outcome.StatusGroupLookupFailed, StepResolveGroup, err)
		return
	}
	r.logger.Info("Group resolved", "component", "ActionExecutor", "group", group.Name, "container_id", group.ContainerID)
	r.out.Pass(StepResolveGroup, group.URI)

	if !r.invoke(outcome.StatusGroupAddFailed, StepAddToGroup,
		"Orion.Container", "AddDefinition", group.ContainerID, MembershipDefinition(entity.URI)) {
		return
	}

	r.setCustomProperties(entity)
}

func (r *run) setCustomProperties(entity models.Entity) {
	uri := CustomPropertiesURI(entity.URI)
	properties := map[string]any{
		"City":       r.req.City,
		"Department": r.req.Department,
	}
	if r.req.DryRun {
		r.logger.Info("Dry run, skipping update", "component", "ActionExecutor", "uri", uri)
		r.out.Pass(StepCustomProperties, "dry run")
		return
	}

	r.logger.Info("Setting custom properties", "component", "ActionExecutor", "uri", uri, "city", r.req.City, "department", r.req.Department)
	reply := r.session.Update(r.ctx, uri, properties)
	if !reply.OK() {
		err := r.callError("update "+uri, reply)
		r.logger.Error("Custom properties not set", "component", "ActionExecutor", "error", err)
		r.out.Fail(outcome.StatusAttributesFailed, StepCustomProperties, err)
		return
	}
	r.out.Pass(StepCustomProperties, uri)
}
