package lib

import (
	"context"

	"github.com/slok/kage/internal/app/approval"
)

// Submit queues a shell command waiting for a decision and returns it. It
// doesn't wait for the decision, unless [Config].AutoApprove is set the
// command only runs after [Client.Approve].
//
// The command runs with the jail root as working directory, whatever the
// requested cwd in opts. Pass nil opts for defaults (generated ID).
//
// Returns [ErrNotValid] if the command is empty or [ErrAlreadyExists] if the
// ID is already pending.
func (c *Client) Submit(ctx context.Context, command string, opts *SubmitOpts) (*PendingCommand, error) {
	req := approval.SubmitRequest{Command: command}
	if opts != nil {
		req.ID = opts.ID
		req.Cwd = opts.Cwd
	}

	resp, err := c.approval.Submit(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	p := fromInternalPending(resp.Pending)
	return &p, nil
}

// Approve runs the pending command and returns its result. It blocks until
// the command finishes or the timeout kills it. The caller context cancellation
// doesn't stop the command once approved.
//
// Approving an ID that is not pending (unknown or already decided) returns an
// error result and doesn't run anything.
func (c *Client) Approve(ctx context.Context, id string) Result {
	return c.decide(ctx, id, true)
}

// Reject discards the pending command without running it.
func (c *Client) Reject(ctx context.Context, id string) Result {
	return c.decide(ctx, id, false)
}

func (c *Client) decide(ctx context.Context, id string, approved bool) Result {
	res := c.approval.Decide(ctx, approval.DecideRequest{ID: id, Approved: approved})
	return fromInternalResult(res)
}

// ListPending returns the commands waiting for a decision, oldest first.
func (c *Client) ListPending(ctx context.Context) []PendingCommand {
	return fromInternalPendingList(c.approval.Pending(ctx))
}
