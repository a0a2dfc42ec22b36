// Command validate-list runs every address in a file through the validation
// pipeline, using the same storage backend as the server, and prints a
// report. Input is one address per line or a CSV whose first column holds
// the address.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/email-validator/internal/config"
	"github.com/ignite/email-validator/internal/correction"
	"github.com/ignite/email-validator/internal/domain"
	"github.com/ignite/email-validator/internal/pkg/logger"
	"github.com/ignite/email-validator/internal/service/validation"
	"github.com/ignite/email-validator/internal/storage"
)

// batchValidator is the slice of validation.Service used here.
type batchValidator interface {
	ValidateBatch(ctx context.Context, addresses []string, source string) []domain.Verdict
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	input := flag.String("input", "", "file of addresses (required, - for stdin)")
	output := flag.String("output", "", "write per-address results as CSV to this file")
	archive := flag.Bool("archive", false, "upload a JSON report to the configured S3 bucket")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: validate-list -input emails.txt [-output results.csv] [-archive]")
		os.Exit(2)
	}

	if err := run(*configPath, *input, *output, *archive); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, input, output string, archive bool) error {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	defer logger.Sync()

	addresses, err := readInput(input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	svc := validation.NewService(
		correction.New(correction.Options{
			RemoveGmailAliases:  cfg.Validation.RemoveGmailAliases,
			CheckAustralianTLDs: cfg.Validation.CheckAustralianTLDs,
		}),
		store.KnownValid, store.Results,
		validation.Config{
			KnownValidTTL: cfg.Validation.KnownValidTTL(),
			ResultLogTTL:  cfg.Validation.ResultLogTTL(),
		},
	)

	fmt.Println("=========================================================")
	fmt.Println(" Email List Validation")
	fmt.Println("=========================================================")
	fmt.Printf("Input:              %s\n", input)
	fmt.Printf("Addresses:          %d\n", len(addresses))
	fmt.Printf("Storage:            %s\n", cfg.Storage.Type)
	fmt.Println("---------------------------------------------------------")

	start := time.Now()
	verdicts := validateAll(ctx, svc, addresses, validation.MaxBatchSize)
	elapsed := time.Since(start)

	if output != "" {
		if err := writeOutputFile(output, verdicts); err != nil {
			return err
		}
		fmt.Printf("Results written to  %s\n", output)
	}

	if archive {
		if store.Archive == nil {
			return errors.New("-archive needs storage.s3_bucket (S3_BUCKET)")
		}
		key, err := store.Archive.SaveReport(ctx, domain.SourceCLI, verdicts)
		if err != nil {
			return fmt.Errorf("archiving report: %w", err)
		}
		fmt.Printf("Report archived to  s3://%s/%s\n", cfg.Storage.S3Bucket, key)
	}

	printSummary(os.Stdout, verdicts, elapsed)
	return ctx.Err()
}

func readInput(path string) ([]string, error) {
	if path == "-" {
		return readAddresses(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()
	return readAddresses(f)
}

// readAddresses takes the first column of each record, skipping blank lines
// and a leading "email" header.
func readAddresses(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		addr := strings.TrimSpace(rec[0])
		if addr == "" {
			continue
		}
		if len(out) == 0 && strings.EqualFold(addr, "email") {
			continue
		}
		out = append(out, addr)
	}
	return out, nil
}

// validateAll feeds addresses to v in chunks of at most size, stopping
// early when ctx is cancelled.
func validateAll(ctx context.Context, v batchValidator, addresses []string, size int) []domain.Verdict {
	out := make([]domain.Verdict, 0, len(addresses))
	for i := 0; i < len(addresses); i += size {
		if ctx.Err() != nil {
			break
		}
		end := min(i+size, len(addresses))
		out = append(out, v.ValidateBatch(ctx, addresses[i:end], domain.SourceCLI)...)
		if len(addresses) > size {
			fmt.Printf("  validated %d/%d\n", len(out), len(addresses))
		}
	}
	return out
}

func writeOutputFile(path string, verdicts []domain.Verdict) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := writeResults(f, verdicts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeResults(w io.Writer, verdicts []domain.Verdict) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"original_email", "current_email", "status", "was_corrected", "recheck_needed"}); err != nil {
		return err
	}
	for _, v := range verdicts {
		if err := cw.Write([]string{
			v.OriginalAddress,
			v.CurrentAddress,
			string(v.Status),
			strconv.FormatBool(v.WasCorrected),
			strconv.FormatBool(v.RecheckNeeded),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func printSummary(w io.Writer, verdicts []domain.Verdict, elapsed time.Duration) {
	counts := make(map[domain.Status]int)
	corrected := 0
	for _, v := range verdicts {
		counts[v.Status]++
		if v.WasCorrected {
			corrected++
		}
	}

	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=========================================================")
	fmt.Fprintln(w, " VALIDATION REPORT")
	fmt.Fprintln(w, "=========================================================")
	for _, s := range statuses {
		fmt.Fprintf(w, "  %-20s %d\n", s, counts[domain.Status(s)])
	}
	fmt.Fprintf(w, "  %-20s %d\n", "corrected", corrected)
	fmt.Fprintf(w, "  %-20s %d (%s)\n", "total", len(verdicts), elapsed.Round(time.Millisecond))
	fmt.Fprintln(w, "=========================================================")
}
