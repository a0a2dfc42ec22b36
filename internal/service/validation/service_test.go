package validation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/email-validator/internal/correction"
	"github.com/ignite/email-validator/internal/domain"
)

// mockKnown is an in-memory known-valid store honouring TTLs against a
// controllable clock.
type mockKnown struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]knownRow
	puts    int
	getErr  error
	putErr  error
	panicOn string
}

type knownRow struct {
	entry     domain.KnownValidEntry
	expiresAt time.Time
}

func newMockKnown(now func() time.Time) *mockKnown {
	return &mockKnown{now: now, entries: make(map[string]knownRow)}
}

func (m *mockKnown) Get(_ context.Context, email string) (*domain.KnownValidEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOn != "" && strings.EqualFold(email, m.panicOn) {
		panic("store exploded")
	}
	if m.getErr != nil {
		return nil, m.getErr
	}
	row, ok := m.entries[strings.ToLower(email)]
	if !ok || !m.now().Before(row.expiresAt) {
		return nil, nil
	}
	e := row.entry
	return &e, nil
}

func (m *mockKnown) Put(_ context.Context, entry domain.KnownValidEntry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[strings.ToLower(entry.Email)] = knownRow{entry: entry, expiresAt: m.now().Add(ttl)}
	return nil
}

type mockResults struct {
	mu        sync.Mutex
	entries   []domain.ResultLogEntry
	ttls      []time.Duration
	appendErr error
	findErr   error
}

func (m *mockResults) Append(_ context.Context, entry domain.ResultLogEntry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, entry)
	m.ttls = append(m.ttls, ttl)
	return nil
}

func (m *mockResults) FindByEmail(_ context.Context, email string) ([]domain.ResultLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []domain.ResultLogEntry
	for _, e := range m.entries {
		if strings.EqualFold(e.OriginalEmail, email) || strings.EqualFold(e.CorrectedEmail, email) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fixture struct {
	svc     *Service
	known   *mockKnown
	results *mockResults
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }
	f.known = newMockKnown(now)
	f.results = &mockResults{}
	f.svc = NewService(correction.New(correction.DefaultOptions()), f.known, f.results, Config{})
	f.svc.now = now
	return f
}

func stepNames(v domain.Verdict) []string {
	names := make([]string, 0, len(v.Steps))
	for _, s := range v.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestValidate_BadFormat(t *testing.T) {
	for _, addr := range []string{"not-an-email", "a@b", "", "spaces in@x.com", "@x.com"} {
		t.Run(addr, func(t *testing.T) {
			f := newFixture(t)

			v, err := f.svc.Validate(context.Background(), addr, domain.SourceAPI)
			require.NoError(t, err)

			assert.Equal(t, domain.StatusInvalid, v.Status)
			require.NotNil(t, v.SubStatus)
			assert.Equal(t, domain.SubStatusBadFormat, *v.SubStatus)
			assert.False(t, v.RecheckNeeded)
			assert.False(t, v.FormatValid)
			assert.Equal(t, []string{domain.StepFormatCheck}, stepNames(v))
			assert.Equal(t, addr, v.CurrentAddress)
			require.Len(t, f.results.entries, 1)
			assert.Equal(t, 0, f.known.puts)
		})
	}
}

func TestValidate_CommonDomainIsValidAndCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Validate(ctx, "Jane@Gmail.com", domain.SourceAPI)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusValid, v.Status)
	assert.True(t, v.DomainValid)
	assert.False(t, v.IsKnownValid)
	assert.False(t, v.RecheckNeeded)
	assert.True(t, v.WasCorrected)
	assert.Equal(t, "jane@gmail.com", v.CurrentAddress)
	assert.Equal(t, "Jane@Gmail.com", v.OriginalAddress)
	assert.Equal(t, []string{
		domain.StepFormatCheck, domain.StepTypoCorrection, domain.StepKnownValidCheck, domain.StepDomainCheck,
	}, stepNames(v))
	assert.Equal(t, 1, f.known.puts)
	assert.Equal(t, domain.SourceValidationService, f.known.entries["jane@gmail.com"].entry.Source)
	assert.Equal(t, DefaultKnownValidTTL, f.known.entries["jane@gmail.com"].expiresAt.Sub(f.clock))

	require.Len(t, f.results.entries, 1)
	assert.Equal(t, DefaultResultLogTTL, f.results.ttls[0])
	assert.Equal(t, "jane@gmail.com", f.results.entries[0].CorrectedEmail)
	assert.Equal(t, domain.SourceAPI, f.results.entries[0].Source)
}

func TestValidate_SecondCallShortCircuitsOnKnownValid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Validate(ctx, "sam@outlook.com", domain.SourceAPI)
	require.NoError(t, err)
	require.Equal(t, 1, f.known.puts)

	f.clock = f.clock.Add(29 * 24 * time.Hour)
	v, err := f.svc.Validate(ctx, "SAM@outlook.com", domain.SourceAPI)
	require.NoError(t, err)

	assert.True(t, v.IsKnownValid)
	assert.Equal(t, domain.StatusValid, v.Status)
	assert.False(t, v.RecheckNeeded)
	assert.False(t, v.DomainValid)
	assert.Equal(t, []string{domain.StepFormatCheck, domain.StepTypoCorrection, domain.StepKnownValidCheck}, stepNames(v))
	assert.Equal(t, 1, f.known.puts, "cache hit must not rewrite the known-valid entry")
	assert.Len(t, f.results.entries, 2, "every run is logged")
}

func TestValidate_KnownValidExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Validate(ctx, "sam@yahoo.com", domain.SourceAPI)
	require.NoError(t, err)

	f.clock = f.clock.Add(31 * 24 * time.Hour)
	v, err := f.svc.Validate(ctx, "sam@yahoo.com", domain.SourceAPI)
	require.NoError(t, err)

	assert.False(t, v.IsKnownValid)
	assert.True(t, v.DomainValid)
	assert.Equal(t, 2, f.known.puts)
}

func TestValidate_UnknownDomain(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.Validate(context.Background(), "a@b.com", domain.SourceAPI)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnknown, v.Status)
	assert.Nil(t, v.SubStatus)
	assert.True(t, v.RecheckNeeded)
	assert.False(t, v.DomainValid)
	assert.Len(t, v.Steps, 4)
	assert.Equal(t, 0, f.known.puts)
	assert.Len(t, f.results.entries, 1)
}

func TestValidate_TypoCorrectionStep(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.Validate(context.Background(), "user@gmial.com", domain.SourceAPI)
	require.NoError(t, err)

	assert.True(t, v.WasCorrected)
	assert.Equal(t, "user@gmail.com", v.CurrentAddress)
	assert.Equal(t, domain.StatusValid, v.Status)

	step := v.Steps[1]
	require.NotNil(t, step.Applied)
	assert.True(t, *step.Applied)
	assert.Equal(t, "user@gmial.com", step.Original)
	assert.Equal(t, "user@gmail.com", step.Corrected)
}

func TestValidate_LookupFailureDegradesToRecheck(t *testing.T) {
	f := newFixture(t)
	f.known.getErr = errors.New("connection refused")

	v, err := f.svc.Validate(context.Background(), "x@gmail.com", domain.SourceAPI)
	require.NoError(t, err)

	assert.False(t, v.IsKnownValid)
	assert.Equal(t, domain.StatusValid, v.Status)
	assert.True(t, v.RecheckNeeded)
	assert.Len(t, f.results.entries, 1)
}

func TestValidate_WriteFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.known.putErr = errors.New("disk full")
	f.results.appendErr = errors.New("disk full")

	v, err := f.svc.Validate(context.Background(), "x@gmail.com", domain.SourceAPI)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusValid, v.Status)
	assert.True(t, v.RecheckNeeded, "an uncached valid address must be rechecked")
	assert.Equal(t, 1, f.known.puts)
}

func TestValidate_ResultLogFailureKeepsVerdict(t *testing.T) {
	f := newFixture(t)
	f.results.appendErr = errors.New("disk full")

	v, err := f.svc.Validate(context.Background(), "x@gmail.com", domain.SourceAPI)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusValid, v.Status)
	assert.False(t, v.RecheckNeeded)
}

func TestValidate_LeadingPlusGmailNotMangled(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.Validate(context.Background(), "+promo@gmail.com", domain.SourceAPI)
	require.NoError(t, err)

	assert.Equal(t, "+promo@gmail.com", v.CurrentAddress)
	assert.False(t, v.WasCorrected)
	_, mangled := f.known.entries["@gmail.com"]
	assert.False(t, mangled)
	for key := range f.known.entries {
		assert.True(t, correction.IsValidFormat(key), "cached malformed address %q", key)
	}
	require.Len(t, f.results.entries, 1)
	assert.Equal(t, "+promo@gmail.com", f.results.entries[0].CorrectedEmail)
}

func TestValidate_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Validate(ctx, "x@gmail.com", domain.SourceAPI)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.results.entries)
}

func TestValidateBatch_PreservesOrder(t *testing.T) {
	f := newFixture(t)

	out := f.svc.ValidateBatch(context.Background(), []string{"a@b.com", "not-an-email", "c@gmail.com"}, domain.SourceAPIBatch)

	require.Len(t, out, 3)
	assert.Equal(t, "a@b.com", out[0].OriginalAddress)
	assert.Equal(t, domain.StatusUnknown, out[0].Status)
	assert.Equal(t, "not-an-email", out[1].OriginalAddress)
	assert.Equal(t, domain.StatusInvalid, out[1].Status)
	assert.Equal(t, "c@gmail.com", out[2].OriginalAddress)
	assert.Equal(t, domain.StatusValid, out[2].Status)
	assert.Len(t, f.results.entries, 3)
}

func TestValidateBatch_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.known.panicOn = "boom@gmail.com"

	out := f.svc.ValidateBatch(context.Background(), []string{"ok@gmail.com", "boom@gmail.com", "fine@aol.com"}, domain.SourceAPIBatch)

	require.Len(t, out, 3)
	assert.Equal(t, domain.StatusValid, out[0].Status)
	assert.Equal(t, domain.StatusCheckFailed, out[1].Status)
	assert.Equal(t, "boom@gmail.com", out[1].OriginalAddress)
	assert.Contains(t, out[1].Error, "store exploded")
	assert.Equal(t, domain.StatusValid, out[2].Status)
}

func TestHistory_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Validate(ctx, "kim@example.com", domain.SourceAPI)
	f.clock = f.clock.Add(time.Hour)
	_, _ = f.svc.Validate(ctx, "KIM@example.com", domain.SourceHubSpotWebhook)
	_, _ = f.svc.Validate(ctx, "other@example.com", domain.SourceAPI)

	got, err := f.svc.History(ctx, " Kim@Example.com ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.SourceHubSpotWebhook, got[0].Source)
	assert.Equal(t, domain.SourceAPI, got[1].Source)
}

func TestHistory_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.History(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmailRequired)

	f.results.findErr = errors.New("unreachable")
	_, err = f.svc.History(context.Background(), "x@y.com")
	assert.Error(t, err)
}
