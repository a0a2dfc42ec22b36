package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/email-validator/internal/correction"
	"github.com/ignite/email-validator/internal/domain"
	"github.com/ignite/email-validator/internal/metrics"
	"github.com/ignite/email-validator/internal/pkg/logger"
)

// MaxBatchSize caps ValidateBatch input accepted from callers.
const MaxBatchSize = 500

// Retention windows used when the config leaves them unset.
const (
	DefaultKnownValidTTL = 30 * 24 * time.Hour
	DefaultResultLogTTL  = 90 * 24 * time.Hour
)

// Config carries the retention windows applied to persisted entries.
type Config struct {
	KnownValidTTL time.Duration
	ResultLogTTL  time.Duration
}

// Service runs addresses through the validation pipeline. It is safe for
// concurrent use as long as its stores are.
type Service struct {
	corrector *correction.Corrector
	known     KnownValidStore
	results   ResultLog
	cfg       Config
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService creates a validation service backed by the given stores.
func NewService(corrector *correction.Corrector, known KnownValidStore, results ResultLog, cfg Config) *Service {
	if cfg.KnownValidTTL <= 0 {
		cfg.KnownValidTTL = DefaultKnownValidTTL
	}
	if cfg.ResultLogTTL <= 0 {
		cfg.ResultLogTTL = DefaultResultLogTTL
	}
	return &Service{
		corrector: corrector,
		known:     known,
		results:   results,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetMetrics attaches Prometheus counters. Optional.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Validate runs one address through the pipeline and returns its verdict.
// Storage failures are logged and degrade the verdict; they are never
// returned. The only error is a context that is already done.
func (s *Service) Validate(ctx context.Context, address, source string) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.Verdict{}, fmt.Errorf("validate: %w", err)
	}

	v := domain.Verdict{
		OriginalAddress: address,
		CurrentAddress:  address,
		Status:          domain.StatusUnknown,
		RecheckNeeded:   true,
		Steps:           make([]domain.Step, 0, 4),
		CheckedAt:       s.now().UTC(),
	}

	// Step 1: format.
	v.FormatValid = correction.IsValidFormat(address)
	v.Steps = append(v.Steps, domain.Step{Name: domain.StepFormatCheck, Passed: v.FormatValid})
	if !v.FormatValid {
		sub := domain.SubStatusBadFormat
		v.Status = domain.StatusInvalid
		v.SubStatus = &sub
		v.RecheckNeeded = false
		s.finish(ctx, &v, source)
		return v, nil
	}

	// Step 2: typo correction.
	fixed := s.corrector.Correct(address)
	v.WasCorrected = fixed.Corrected
	v.CurrentAddress = fixed.Address
	applied := fixed.Corrected
	v.Steps = append(v.Steps, domain.Step{
		Name:      domain.StepTypoCorrection,
		Passed:    true,
		Applied:   &applied,
		Original:  address,
		Corrected: fixed.Address,
	})

	// Step 3: known-valid cache.
	entry, lookupErr := s.known.Get(ctx, v.CurrentAddress)
	if lookupErr != nil {
		logger.Error("known-valid lookup failed", "email", v.CurrentAddress, "error", lookupErr)
		s.metrics.ObserveStorageError("known_valid_get")
		entry = nil
	}
	v.IsKnownValid = entry != nil
	v.Steps = append(v.Steps, domain.Step{Name: domain.StepKnownValidCheck, Passed: v.IsKnownValid})
	if v.IsKnownValid {
		v.Status = domain.StatusValid
		v.RecheckNeeded = false
		s.finish(ctx, &v, source)
		return v, nil
	}

	// Step 4: common-domain heuristic.
	v.DomainValid = correction.IsCommonDomain(v.CurrentAddress)
	v.Steps = append(v.Steps, domain.Step{Name: domain.StepDomainCheck, Passed: v.DomainValid})
	if v.DomainValid {
		v.Status = domain.StatusValid
	} else {
		v.Status = domain.StatusUnknown
	}
	// A failed cache read leaves the address unresolved regardless of the
	// heuristic.
	v.RecheckNeeded = !v.DomainValid || lookupErr != nil

	// Step 5: remember heuristic hits. An address that could not be cached
	// will not short-circuit next time, so it stays flagged for recheck.
	if v.Status == domain.StatusValid && !s.rememberValid(ctx, v.CurrentAddress) {
		v.RecheckNeeded = true
	}

	s.finish(ctx, &v, source)
	return v, nil
}

// ValidateBatch validates addresses one at a time, in order. A failure for
// one address becomes a check_failed verdict and never aborts the batch.
func (s *Service) ValidateBatch(ctx context.Context, addresses []string, source string) []domain.Verdict {
	out := make([]domain.Verdict, 0, len(addresses))
	for _, addr := range addresses {
		v, err := s.validateIsolated(ctx, addr, source)
		if err != nil {
			logger.Error("batch item failed", "email", addr, "error", err)
			s.metrics.ObserveVerdict(string(domain.StatusCheckFailed))
			v = domain.Verdict{
				OriginalAddress: addr,
				CurrentAddress:  addr,
				Status:          domain.StatusCheckFailed,
				RecheckNeeded:   true,
				Error:           err.Error(),
				CheckedAt:       s.now().UTC(),
			}
		}
		out = append(out, v)
	}
	return out
}

func (s *Service) validateIsolated(ctx context.Context, address, source string) (v domain.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during validation: %v", r)
		}
	}()
	return s.Validate(ctx, address, source)
}

// History returns result log entries for email, newest first.
func (s *Service) History(ctx context.Context, email string) ([]domain.ResultLogEntry, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	entries, err := s.results.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find results: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ValidatedAt.After(entries[j].ValidatedAt)
	})
	return entries, nil
}

func (s *Service) rememberValid(ctx context.Context, address string) bool {
	entry := domain.KnownValidEntry{
		Email:       strings.ToLower(address),
		ValidatedAt: s.now().UTC(),
		Source:      domain.SourceValidationService,
	}
	if err := s.known.Put(ctx, entry, s.cfg.KnownValidTTL); err != nil {
		logger.Error("known-valid write failed", "email", address, "error", err)
		s.metrics.ObserveStorageError("known_valid_put")
		return false
	}
	return true
}

// finish appends the result log entry for a terminal verdict. It runs exactly
// once per Validate call.
func (s *Service) finish(ctx context.Context, v *domain.Verdict, source string) {
	s.metrics.ObserveVerdict(string(v.Status))

	entry := domain.ResultLogEntry{
		ID:             uuid.NewString(),
		OriginalEmail:  v.OriginalAddress,
		CorrectedEmail: v.CurrentAddress,
		Status:         v.Status,
		ValidatedAt:    v.CheckedAt,
		RecheckNeeded:  v.RecheckNeeded,
		Source:         source,
	}
	if err := s.results.Append(ctx, entry, s.cfg.ResultLogTTL); err != nil {
		logger.Error("result log append failed", "email", v.OriginalAddress, "error", err)
		s.metrics.ObserveStorageError("result_append")
	}
}
