// Package correction holds the static typo, alias and TLD rules applied to a
// single email address. Everything here is pure: no I/O, no clocks.
package correction

import (
	"regexp"
	"strings"
	"unicode"
)

// Options toggles the optional rules.
type Options struct {
	RemoveGmailAliases  bool
	CheckAustralianTLDs bool
}

// DefaultOptions enables every rule.
func DefaultOptions() Options {
	return Options{RemoveGmailAliases: true, CheckAustralianTLDs: true}
}

// Result is the outcome of Correct.
type Result struct {
	Corrected bool
	Address   string
}

// Corrector applies the correction rules in a fixed order.
type Corrector struct {
	opts Options
}

// New returns a Corrector configured with opts.
func New(opts Options) *Corrector {
	return &Corrector{opts: opts}
}

var formatRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidFormat reports whether address has the minimal
// local@domain.tld shape with no embedded whitespace.
func IsValidFormat(address string) bool {
	return formatRegex.MatchString(address)
}

// IsCommonDomain reports whether the domain part of address is on the
// common-provider allow-list.
func IsCommonDomain(address string) bool {
	_, domain, ok := strings.Cut(address, "@")
	if !ok {
		return false
	}
	_, found := commonDomains[domain]
	return found
}

// Correct normalizes address and rewrites known typos. Rules run in order:
// whitespace/case cleanup, domain typo table, Gmail "+alias" stripping and
// Australian TLD dot restoration. Each rule sees the output of the previous one.
func (c *Corrector) Correct(address string) Result {
	if address == "" {
		return Result{Address: address}
	}

	corrected := false
	cleaned := stripSpace(strings.ToLower(strings.TrimSpace(address)))
	if cleaned != address {
		corrected = true
	}

	local, domain, hasAt := strings.Cut(cleaned, "@")
	if !hasAt || domain == "" {
		return Result{Corrected: corrected, Address: cleaned}
	}

	if fixed, ok := domainTypos[domain]; ok {
		domain = fixed
		corrected = true
	}

	if c.opts.RemoveGmailAliases && domain == gmailDomain {
		if base, _, found := strings.Cut(local, "+"); found && base != "" {
			local = base
			corrected = true
		}
	}

	if c.opts.CheckAustralianTLDs {
		if fixed, ok := restoreAustralianTLD(domain); ok {
			domain = fixed
			corrected = true
		}
	}

	return Result{Corrected: corrected, Address: local + "@" + domain}
}

func restoreAustralianTLD(domain string) (string, bool) {
	for _, tld := range australianSuffixes {
		noDot := strings.ReplaceAll(tld, ".", "")
		if strings.HasSuffix(domain, noDot) && !strings.HasSuffix(domain, tld) {
			prefix := strings.TrimSuffix(strings.TrimSuffix(domain, noDot), ".")
			return prefix + tld, true
		}
	}
	return domain, false
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
