package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"rostercal/internal/invite"
	"rostercal/internal/models"
	"rostercal/internal/recipients"
	"rostercal/internal/roster"
)

// RowSource provides the roster rows for one run.
type RowSource interface {
	Rows(ctx context.Context) ([]models.RawRow, error)
}

// Sink delivers one invite and returns a receipt such as an event or message ID.
type Sink interface {
	Send(ctx context.Context, inv *models.Invite) (string, error)
}

// SinkError wraps a row-level delivery failure.
type SinkError struct {
	Line int
	Err  error
}

func (e *SinkError) Error() string { return fmt.Sprintf("row %d: send invite: %v", e.Line, e.Err) }

func (e *SinkError) Unwrap() error { return e.Err }

// Dispatcher runs every roster row through normalize, resolve, build and send.
type Dispatcher struct {
	logger     *slog.Logger
	source     RowSource
	normalizer *roster.Normalizer
	resolver   *recipients.Resolver
	builder    *invite.Builder
	sink       Sink
	dryRun     bool
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(logger *slog.Logger, source RowSource, n *roster.Normalizer, r *recipients.Resolver, b *invite.Builder, sink Sink, dryRun bool) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		source:     source,
		normalizer: n,
		resolver:   r,
		builder:    b,
		sink:       sink,
		dryRun:     dryRun,
	}
}

// Run performs a single pass over the roster.
//
// Row-level failures are recorded in the report and never stop the pass.
// The returned error is set only for infrastructure failures: the row source
// failing, the sink reporting models.ErrSinkUnavailable, or ctx ending. In the
// latter two cases the report holds the outcomes reached so far.
func (d *Dispatcher) Run(ctx context.Context) (*Report, error) {
	d.logger.Info("Starting roster run.", "dryRun", d.dryRun)

	rows, err := d.source.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster rows: %w", err)
	}
	d.logger.Info("Fetched roster rows.", "count", len(rows))

	report := &Report{Outcomes: make([]Outcome, 0, len(rows))}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run interrupted before %s: %w", row.ID(), err)
		}

		out := d.dispatchRow(ctx, row)
		report.Outcomes = append(report.Outcomes, out)
		d.logOutcome(out)

		if out.State == StateFailed && errors.Is(out.Err, models.ErrSinkUnavailable) {
			return report, fmt.Errorf("aborting run at %s: %w", row.ID(), out.Err)
		}
		if out.State == StateFailed && ctx.Err() != nil {
			return report, fmt.Errorf("run interrupted at %s: %w", row.ID(), ctx.Err())
		}
	}

	d.logger.Info("Roster run finished.", report.Summary().LogAttrs()...)
	return report, nil
}

// dispatchRow moves one row through the pipeline states.
func (d *Dispatcher) dispatchRow(ctx context.Context, row models.RawRow) Outcome {
	out := Outcome{Line: row.Line, Week: row.Week, State: StatePending}

	appt, err := d.normalizer.Normalize(row)
	if err != nil {
		return out.fail(err)
	}
	out.State = StateNormalized
	out.Assignee = appt.Assignee

	to := d.resolver.Resolve(appt.Assignee)
	out.State = StateResolved
	out.Attendees = len(to)
	out.Unaddressed = !d.resolver.Known(appt.Assignee)

	inv := d.builder.Build(appt, to)
	out.State = StateBuilt
	out.Title = inv.Title

	if d.dryRun {
		d.logger.Info("[DRY RUN] Would send invite", "row", row.Line, "title", inv.Title, "start", inv.StartDate(), "attendees", inv.Attendees)
		out.State = StateDispatched
		out.DryRun = true
		return out
	}

	receipt, err := d.sink.Send(ctx, inv)
	if errors.Is(err, models.ErrAlreadySent) {
		out.State = StateSkipped
		return out
	}
	if err != nil {
		return out.fail(&SinkError{Line: row.Line, Err: err})
	}

	out.State = StateDispatched
	out.Receipt = receipt
	return out
}

func (d *Dispatcher) logOutcome(out Outcome) {
	switch {
	case out.State == StateFailed:
		d.logger.Error("Row failed.", "row", out.Line, "week", out.Week, "error", out.Err)
	case out.State == StateSkipped:
		d.logger.Info("Row already sent in an earlier run, skipping.", "row", out.Line, "title", out.Title)
	case out.Unaddressed:
		d.logger.Warn("No address known for assignee.", "row", out.Line, "assignee", out.Assignee, "attendees", out.Attendees, "receipt", out.Receipt)
	default:
		d.logger.Info("Invite sent.", "row", out.Line, "title", out.Title, "attendees", out.Attendees, "receipt", out.Receipt)
	}
}
