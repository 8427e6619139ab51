// Package pipeline runs one webhook payload through normalization,
// classification, valuation, and alert composition, then hands each alert to
// the notifier. A failure while handling one transfer never stops the rest of
// the batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/solwatch/internal/alert"
	"github.com/alanyoungcy/solwatch/internal/classify"
	"github.com/alanyoungcy/solwatch/internal/domain"
	"github.com/alanyoungcy/solwatch/internal/normalize"
	"github.com/alanyoungcy/solwatch/internal/observability"
)

// errorEvent is the notification event used for batch failure notices.
const errorEvent = "error"

// Deliverer sends a rendered alert. It matches notify.Notifier.
type Deliverer interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Enricher values a transfer. It matches valuation.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, t domain.Transfer, info domain.TokenInfo) domain.Valuation
}

// TokenLookup returns registry metadata. It matches registry.Registry.
type TokenLookup interface {
	Info(id string) domain.TokenInfo
}

// Config selects which transfers produce alerts.
type Config struct {
	// TargetTokens are the token identifiers that produce alerts. Transfers
	// of any other token, including every token when the list is empty, are
	// skipped.
	TargetTokens []string
	// MonitoredWallets are the operator's own addresses.
	MonitoredWallets []string
}

// Deps bundles the collaborators a Pipeline needs. Deliverer and Metrics may
// be nil.
type Deps struct {
	Tokens    TokenLookup
	Enricher  Enricher
	Composer  *alert.Composer
	Deliverer Deliverer
	Metrics   *observability.Metrics
}

// Pipeline is the webhook orchestrator. It holds no per-request state and is
// safe for concurrent use by many HTTP handlers.
type Pipeline struct {
	targets map[string]struct{}
	wallets classify.WalletSet
	deps    Deps
	logger  *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config, deps Deps, logger *slog.Logger) *Pipeline {
	targets := make(map[string]struct{}, len(cfg.TargetTokens))
	for _, t := range cfg.TargetTokens {
		if t = strings.TrimSpace(t); t != "" {
			targets[t] = struct{}{}
		}
	}
	if deps.Composer == nil {
		deps.Composer = alert.NewComposer("")
	}
	return &Pipeline{
		targets: targets,
		wallets: classify.NewWalletSet(cfg.MonitoredWallets),
		deps:    deps,
		logger:  logger.With(slog.String("component", "webhook_pipeline")),
	}
}

// Outcome is the per-transfer result. Message is empty when the transfer
// failed outright.
type Outcome struct {
	Index    int
	Transfer domain.ClassifiedTransfer
	Message  string
	Reports  []domain.ErrorReport
	Failed   bool
}

// Result aggregates a whole batch.
type Result struct {
	BatchID  string
	Shape    normalize.Shape
	Detected int
	Skipped  int
	Outcomes []Outcome
	Alerts   []string
	Reports  []domain.ErrorReport
}

// Err returns domain.ErrMalformedPayload when the payload matched no known
// layout, and nil otherwise. Per-transfer problems are only reported.
func (r Result) Err() error {
	if r.Shape == normalize.ShapeUnknown {
		return domain.ErrMalformedPayload
	}
	return nil
}

// Handle processes one raw payload.
func (p *Pipeline) Handle(ctx context.Context, raw []byte) Result {
	start := time.Now()
	res := Result{BatchID: uuid.NewString()}
	logger := p.logger.With(slog.String("batch_id", res.BatchID))

	norm := normalize.Normalize(raw)
	res.Shape = norm.Shape
	res.Detected = len(norm.Transfers)
	res.Skipped = norm.Skipped

	if !norm.Recognised() {
		p.report(&res, domain.ErrorReport{
			Kind:    domain.KindMalformedPayload,
			Index:   -1,
			Message: "payload matched no known webhook layout",
		})
		logger.WarnContext(ctx, "malformed webhook payload", slog.Int("bytes", len(raw)))
		p.deps.Metrics.RecordBatch(res.Shape.String(), time.Since(start))
		return res
	}

	for i, t := range norm.Transfers {
		if !p.isTarget(t.TokenID) {
			continue
		}

		out := p.process(ctx, i, t)
		if !out.Failed {
			p.deps.Metrics.RecordTransfer(string(out.Transfer.Action))
			res.Alerts = append(res.Alerts, out.Message)
			if err := p.deliver(ctx, out); err != nil {
				out.Reports = append(out.Reports, domain.ErrorReport{
					Kind:    domain.KindDeliveryFailed,
					Index:   i,
					TokenID: t.TokenID,
					Message: err.Error(),
				})
			}
		}
		for _, r := range out.Reports {
			p.report(&res, r)
			logger.WarnContext(ctx, "transfer problem",
				slog.String("kind", string(r.Kind)),
				slog.Int("index", r.Index),
				slog.String("token", r.TokenID),
				slog.String("error", r.Message),
			)
		}
		res.Outcomes = append(res.Outcomes, out)
	}

	p.noticeFailures(ctx, &res)

	p.deps.Metrics.RecordBatch(res.Shape.String(), time.Since(start))
	logger.InfoContext(ctx, "webhook handled",
		slog.String("shape", res.Shape.String()),
		slog.Int("detected", res.Detected),
		slog.Int("alerts", len(res.Alerts)),
		slog.Int("reports", len(res.Reports)),
		slog.Duration("duration", time.Since(start)),
	)
	return res
}

func (p *Pipeline) isTarget(tokenID string) bool {
	_, ok := p.targets[tokenID]
	return ok
}

// process classifies, values, and composes one transfer. A panic anywhere in
// those stages is confined to this transfer.
func (p *Pipeline) process(ctx context.Context, idx int, t domain.Transfer) (out Outcome) {
	out.Index = idx
	defer func() {
		if r := recover(); r != nil {
			out.Failed = true
			out.Message = ""
			out.Reports = append(out.Reports, domain.ErrorReport{
				Kind:    domain.KindUnexpectedFailure,
				Index:   idx,
				TokenID: t.TokenID,
				Message: fmt.Sprint(r),
			})
		}
	}()

	info := p.deps.Tokens.Info(t.TokenID)
	ct := domain.ClassifiedTransfer{
		Transfer:  t,
		Action:    classify.Classify(t, p.wallets),
		Valuation: p.deps.Enricher.Enrich(ctx, t, info),
	}
	out.Transfer = ct

	switch {
	case !t.Amount.Valid:
		out.Reports = append(out.Reports, domain.ErrorReport{
			Kind:    domain.KindUnparsableAmount,
			Index:   idx,
			TokenID: t.TokenID,
			Message: fmt.Sprintf("amount %q is not a number", t.Amount.Raw),
		})
	case !ct.Priced():
		out.Reports = append(out.Reports, domain.ErrorReport{
			Kind:    domain.KindOracleUnavailable,
			Index:   idx,
			TokenID: t.TokenID,
			Message: "price unavailable, valuation omitted",
		})
	}

	out.Message = p.deps.Composer.Compose(ct, info)
	return out
}

// deliver hands one composed alert to the Deliverer. A panic is returned as
// a delivery error for this transfer only.
func (p *Pipeline) deliver(ctx context.Context, out Outcome) (err error) {
	if p.deps.Deliverer == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deliverer panic: %v", r)
			p.deps.Metrics.RecordDelivery(err)
		}
	}()
	info := p.deps.Tokens.Info(out.Transfer.TokenID)
	err = p.deps.Deliverer.Notify(ctx,
		out.Transfer.Action.Event(),
		p.deps.Composer.Title(out.Transfer.Action),
		p.deps.Composer.Body(out.Transfer, info),
	)
	p.deps.Metrics.RecordDelivery(err)
	return err
}

// noticeFailures sends one error notification summarising the transfers that
// failed unexpectedly.
func (p *Pipeline) noticeFailures(ctx context.Context, res *Result) {
	if p.deps.Deliverer == nil {
		return
	}
	var lines []string
	for _, r := range res.Reports {
		if r.Kind == domain.KindUnexpectedFailure {
			lines = append(lines, r.String())
		}
	}
	if len(lines) == 0 {
		return
	}
	msg := fmt.Sprintf("batch %s\n%s", res.BatchID, strings.Join(lines, "\n"))
	if err := p.deps.Deliverer.Notify(ctx, errorEvent, "⚠️ Error processing webhook", msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to send error notice",
			slog.String("batch_id", res.BatchID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pipeline) report(res *Result, r domain.ErrorReport) {
	res.Reports = append(res.Reports, r)
	p.deps.Metrics.RecordReport(string(r.Kind))
}
