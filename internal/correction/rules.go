package correction

// domainTypos maps commonly misspelled provider domains to their canonical form.
var domainTypos = map[string]string{
	"gmial.com":   "gmail.com",
	"gmal.com":    "gmail.com",
	"gmail.cm":    "gmail.com",
	"gmail.co":    "gmail.com",
	"gamil.com":   "gmail.com",
	"hotmial.com": "hotmail.com",
	"hotmail.cm":  "hotmail.com",
	"yahoo.cm":    "yahoo.com",
	"yaho.com":    "yahoo.com",
	"outlook.cm":  "outlook.com",
	"outlok.com":  "outlook.com",
}

// australianSuffixes is matched in order and the first hit wins. The bare
// ".au" must stay last: every other entry also ends in "au".
var australianSuffixes = []string{
	".com.au",
	".net.au",
	".org.au",
	".edu.au",
	".gov.au",
	".asn.au",
	".id.au",
	".au",
}

// commonDomains is the allow-list used by the domain heuristic.
var commonDomains = map[string]struct{}{
	"gmail.com":   {},
	"outlook.com": {},
	"hotmail.com": {},
	"yahoo.com":   {},
	"icloud.com":  {},
	"aol.com":     {},
}

const gmailDomain = "gmail.com"

// TypoDomains returns a copy of the typo table.
func TypoDomains() map[string]string {
	out := make(map[string]string, len(domainTypos))
	for k, v := range domainTypos {
		out[k] = v
	}
	return out
}
