package matcher

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// nameSuffixes are promotional or status annotations the delivery platform
// appends to restaurant names. Applied in order, case-insensitively.
var nameSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*-\s*CLOSED\s*$`),
	regexp.MustCompile(`(?i)\s*-\s*\$\d+(\.\d+)?\s+OFF.*$`),
	regexp.MustCompile(`(?i)\s*\$\d+(\.\d+)?\s+DELIVERY(\s*FEE)?\s*$`),
	regexp.MustCompile(`(?i)\s*\([^()]*\)\s*$`),
	regexp.MustCompile(`(?i)\s*-\s*(MIDTOWN|DOWNTOWN|UES|UWS|BROOKLYN|MANHATTAN)\s*$`),
	regexp.MustCompile(`(?i)\s+(BROADWAY|HUDSON)\s*$`),
}

var multiSpace = regexp.MustCompile(`\s{2,}`)

var apostrophes = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"ʼ", "'",
	"`", "'",
)

// Normalize folds a raw order restaurant name into the key used for mapping
// lookups. Normalize(Normalize(s)) == Normalize(s) for all s.
func Normalize(name string) string {
	n := name
	for {
		next := normalizeOnce(n)
		if next == n {
			return n
		}
		n = next
	}
}

func normalizeOnce(name string) string {
	n := norm.NFKC.String(name)
	n = apostrophes.Replace(n)
	n = strings.ToUpper(strings.TrimSpace(n))
	n = strings.TrimSpace(strings.Trim(n, `"`))
	n = stripSuffixes(n)
	n = multiSpace.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// stripSuffixes removes trailing annotations until none match. Every
// pattern needs at least one literal character, so each change shortens n.
func stripSuffixes(n string) string {
	for {
		prev := n
		for _, re := range nameSuffixes {
			n = re.ReplaceAllString(n, "")
		}
		if n == prev {
			return n
		}
	}
}
