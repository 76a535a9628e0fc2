package content

import (
	"strings"
	"unicode"
)

// Bucket is a coarse role category used to pick content templates.
type Bucket string

const (
	BucketCEO         Bucket = "CEO"
	BucketCTO         Bucket = "CTO"
	BucketCFO         Bucket = "CFO"
	BucketCOO         Bucket = "COO"
	BucketCMO         Bucket = "CMO"
	BucketAssistant   Bucket = "Assistant"
	BucketSales       Bucket = "Sales"
	BucketMarketing   Bucket = "Marketing"
	BucketEngineering Bucket = "Engineering"
	BucketFinance     Bucket = "Finance"
	BucketHR          Bucket = "HR"
	BucketOperations  Bucket = "Operations"
	BucketSupport     Bucket = "Support"
	BucketSpecialist  Bucket = "Specialist"
)

type bucketRule struct {
	bucket Bucket
	// acronyms match whole words only, so "Director" never hits "CTO".
	acronyms []string
	phrases  []string
}

// Rules are checked in order; the first match wins. Assistants come first so
// "Executive Assistant to the CEO" stays an assistant.
var bucketRules = []bucketRule{
	{bucket: BucketAssistant, phrases: []string{"assistant", "asistente", "secretar", "receptionist"}},
	{bucket: BucketCEO, acronyms: []string{"ceo"}, phrases: []string{"chief executive", "director general", "managing director"}},
	{bucket: BucketCTO, acronyms: []string{"cto"}, phrases: []string{"chief technology", "chief technical"}},
	{bucket: BucketCFO, acronyms: []string{"cfo"}, phrases: []string{"chief financial", "chief finance"}},
	{bucket: BucketCOO, acronyms: []string{"coo"}, phrases: []string{"chief operating", "chief operations"}},
	{bucket: BucketCMO, acronyms: []string{"cmo"}, phrases: []string{"chief marketing"}},
	{bucket: BucketSales, acronyms: []string{"sdr", "bdr"}, phrases: []string{"sales", "ventas", "comercial", "account executive", "business development"}},
	{bucket: BucketMarketing, acronyms: []string{"seo"}, phrases: []string{"marketing", "brand", "content", "growth"}},
	{bucket: BucketEngineering, acronyms: []string{"it", "qa"}, phrases: []string{"engineer", "developer", "devops", "software", "ingenier", "desarroll", "data scien", "architect"}},
	{bucket: BucketFinance, phrases: []string{"financ", "accountant", "accounting", "contab", "controller", "treasur"}},
	{bucket: BucketHR, acronyms: []string{"hr", "rrhh"}, phrases: []string{"human resources", "recursos humanos", "talent", "recruit", "people"}},
	{bucket: BucketOperations, phrases: []string{"operations", "operaciones", "logistic", "supply chain", "procurement"}},
	{bucket: BucketSupport, phrases: []string{"support", "soporte", "customer success", "customer service", "help desk"}},
}

// ResolveBucket maps a free-form role title to a bucket. It is total and
// deterministic: the same title always yields the same bucket, and titles
// that match no rule yield fallback. matched reports whether a rule hit.
func ResolveBucket(role string, fallback Bucket) (bucket Bucket, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(role))
	if lower == "" {
		return fallback, false
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, rule := range bucketRules {
		for _, a := range rule.acronyms {
			for _, w := range words {
				if w == a {
					return rule.bucket, true
				}
			}
		}
		for _, p := range rule.phrases {
			if strings.Contains(lower, p) {
				return rule.bucket, true
			}
		}
	}
	return fallback, false
}

// AllBuckets lists every bucket a rule can produce, plus the generic specialist.
func AllBuckets() []Bucket {
	out := make([]Bucket, 0, len(bucketRules)+1)
	for _, r := range bucketRules {
		out = append(out, r.bucket)
	}
	return append(out, BucketSpecialist)
}
