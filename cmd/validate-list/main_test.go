package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/email-validator/internal/domain"
)

func TestReadAddresses(t *testing.T) {
	in := "email,name\n  a@gmail.com , Ann\n\nb@yahoo.com\nemail\n"

	got, err := readAddresses(strings.NewReader(in))
	require.NoError(t, err)
	// Only a leading header is skipped.
	assert.Equal(t, []string{"a@gmail.com", "b@yahoo.com", "email"}, got)
}

func TestReadAddresses_Malformed(t *testing.T) {
	_, err := readAddresses(strings.NewReader("\"unterminated\n"))
	assert.ErrorContains(t, err, "reading input")
}

type chunkRecorder struct {
	chunks [][]string
	source string
}

func (c *chunkRecorder) ValidateBatch(_ context.Context, addresses []string, source string) []domain.Verdict {
	c.chunks = append(c.chunks, addresses)
	c.source = source
	out := make([]domain.Verdict, len(addresses))
	for i, a := range addresses {
		out[i] = domain.Verdict{OriginalAddress: a, Status: domain.StatusValid}
	}
	return out
}

func TestValidateAll_Chunks(t *testing.T) {
	rec := &chunkRecorder{}
	addrs := []string{"1@x.com", "2@x.com", "3@x.com", "4@x.com", "5@x.com"}

	got := validateAll(context.Background(), rec, addrs, 2)

	require.Len(t, got, 5)
	assert.Equal(t, "5@x.com", got[4].OriginalAddress)
	assert.Len(t, rec.chunks, 3)
	assert.Equal(t, domain.SourceCLI, rec.source)
}

func TestValidateAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &chunkRecorder{}
	got := validateAll(ctx, rec, []string{"a@b.com"}, 10)
	assert.Empty(t, got)
	assert.Empty(t, rec.chunks)
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	err := writeResults(&buf, []domain.Verdict{
		{OriginalAddress: "a@gmial.com", CurrentAddress: "a@gmail.com", Status: domain.StatusValid, WasCorrected: true},
		{OriginalAddress: "bad", CurrentAddress: "bad", Status: domain.StatusInvalid},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "original_email,current_email,status,was_corrected,recheck_needed", lines[0])
	assert.Equal(t, "a@gmial.com,a@gmail.com,valid,true,false", lines[1])
	assert.Equal(t, "bad,bad,invalid,false,false", lines[2])
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, []domain.Verdict{
		{Status: domain.StatusValid, WasCorrected: true},
		{Status: domain.StatusValid},
		{Status: domain.StatusUnknown},
	}, 1500*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "valid                2")
	assert.Contains(t, out, "unknown              1")
	assert.Contains(t, out, "corrected            1")
	assert.Contains(t, out, "total                3 (1.5s)")
}
