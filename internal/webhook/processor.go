package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/email-validator/internal/domain"
	"github.com/ignite/email-validator/internal/hubspot"
	"github.com/ignite/email-validator/internal/metrics"
	"github.com/ignite/email-validator/internal/pkg/logger"
)

// Event outcomes, used in logs and metrics.
const (
	OutcomeProcessed        = "processed"
	OutcomeSubscriptionSkip = "subscription_type_skipped"
	OutcomeNoEmail          = "no_email"
	OutcomeDuplicate        = "duplicate"
	OutcomeFailed           = "failed"
)

// Validator runs an address through the validation pipeline.
type Validator interface {
	Validate(ctx context.Context, address, source string) (domain.Verdict, error)
}

// ContactUpdater pushes properties onto a CRM contact.
type ContactUpdater interface {
	UpdateContact(ctx context.Context, contactID string, props map[string]string) error
}

// Result describes what happened to one event.
type Result struct {
	EventID   string
	ContactID string
	Outcome   string
	Verdict   *domain.Verdict
	Err       error
}

// Processor drives the validation pipeline from HubSpot events.
type Processor struct {
	validator Validator
	crm       ContactUpdater // optional
	dedupe    Deduper        // optional
	metrics   *metrics.Metrics
}

// NewProcessor returns a processor. crm and dedupe may be nil.
func NewProcessor(v Validator, crm ContactUpdater, dedupe Deduper, m *metrics.Metrics) *Processor {
	return &Processor{validator: v, crm: crm, dedupe: dedupe, metrics: m}
}

// Process handles every event in a raw webhook body. It returns an error
// when the body cannot be decoded or any event failed.
func (p *Processor) Process(ctx context.Context, body []byte) ([]Result, error) {
	events, err := hubspot.ParseEvents(body)
	if err != nil {
		p.metrics.ObserveWebhookEvent("malformed")
		return nil, err
	}

	results := make([]Result, 0, len(events))
	var errs []error
	for _, ev := range events {
		res := p.ProcessEvent(ctx, ev)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("contact %s: %w", res.ContactID, res.Err))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// ProcessEvent validates the email carried by one event and, when a CRM
// client is configured, writes the verdict back to the contact.
func (p *Processor) ProcessEvent(ctx context.Context, ev hubspot.Event) Result {
	res := Result{EventID: ev.EventID.String(), ContactID: ev.ObjectID.String()}
	defer func() {
		p.metrics.ObserveWebhookEvent(res.Outcome)
	}()

	if !hubspot.IsEmailSubscription(ev.SubscriptionType) {
		res.Outcome = OutcomeSubscriptionSkip
		logger.Info("skipping webhook event",
			"reason", OutcomeSubscriptionSkip,
			"contact_id", res.ContactID,
			"subscription_type", ev.SubscriptionType,
		)
		return res
	}

	email, ok := ev.Email()
	if !ok {
		res.Outcome = OutcomeNoEmail
		logger.Info("skipping webhook event", "reason", OutcomeNoEmail, "contact_id", res.ContactID)
		return res
	}

	release := func() {}
	if p.dedupe != nil {
		var claimed bool
		claimed, release = p.dedupe.Claim(ctx, res.EventID)
		if !claimed {
			res.Outcome = OutcomeDuplicate
			logger.Info("skipping webhook event", "reason", OutcomeDuplicate, "event_id", res.EventID)
			return res
		}
	}

	verdict, err := p.validator.Validate(ctx, email, domain.SourceHubSpotWebhook)
	if err != nil {
		release()
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("validate: %w", err)
		return res
	}
	res.Verdict = &verdict

	logger.Info("validated webhook email",
		"contact_id", res.ContactID,
		"email", email,
		"status", string(verdict.Status),
		"corrected", verdict.WasCorrected,
	)

	if p.crm != nil {
		if err := p.crm.UpdateContact(ctx, res.ContactID, hubspot.ContactProperties(verdict)); err != nil {
			p.metrics.ObserveCRMUpdate("error")
			release()
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("update contact: %w", err)
			return res
		}
		p.metrics.ObserveCRMUpdate("ok")
	}

	res.Outcome = OutcomeProcessed
	return res
}
