package knowledge

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/textnorm"
)

// RejectReason explains why a generated answer was not trusted.
type RejectReason string

const (
	ReasonMissingFields         RejectReason = "missing_fields"
	ReasonMissingSources        RejectReason = "missing_sources"
	ReasonUntrustedSources      RejectReason = "untrusted_sources"
	ReasonOverconfidentLanguage RejectReason = "overconfident_language"
)

// DefaultTrustedDomains are hostname globs for government, judicial and partner sites.
var DefaultTrustedDomains = []string{
	"gov.br",
	"*.gov.br",
	"*.jus.br",
	"*.leg.br",
	"*.mp.br",
	"*.def.br",
	"*.receita.fazenda.gov.br",
	"*.detran.*.gov.br",
	"*.serpro.gov.br",
	"*.bcb.gov.br",
	"*.procon.*.gov.br",
}

// DefaultForbiddenPhrases are over-certain expressions a legal/tax answer must not contain.
var DefaultForbiddenPhrases = []string{
	"com certeza",
	"certeza absoluta",
	"garantido",
	"garantia de",
	"sem duvida",
	"sem sombra de duvida",
	"100% de chance",
	"100 de chance",
	"voce vai ganhar",
	"voce ganhara",
	"nao ha risco",
	"risco zero",
	"causa ganha",
}

// Candidate is a freshly generated remote answer awaiting validation.
type Candidate struct {
	AnswerJSON      map[string]any
	AnswerText      string
	ConfidenceLevel string
	Sources         []model.Source
}

// Verdict is the outcome of validating a candidate.
type Verdict struct {
	Reason RejectReason
	Detail string
	OK     bool
}

// RejectionError reports a failed validation.
type RejectionError struct {
	Verdict Verdict
}

func (e *RejectionError) Error() string {
	if e.Verdict.Detail != "" {
		return fmt.Sprintf("answer rejected: %s (%s)", e.Verdict.Reason, e.Verdict.Detail)
	}
	return fmt.Sprintf("answer rejected: %s", e.Verdict.Reason)
}

// Err converts a failed verdict into a *RejectionError, or nil when it passed.
func (v Verdict) Err() error {
	if v.OK {
		return nil
	}
	return &RejectionError{Verdict: v}
}

// Validator checks structure, source trust and certainty of generated answers.
type Validator struct {
	trusted   []*regexp.Regexp
	forbidden []string
}

// NewValidator compiles the trusted hostname globs.
func NewValidator(trustedGlobs, forbiddenPhrases []string) (*Validator, error) {
	v := &Validator{}
	for _, glob := range trustedGlobs {
		re, err := compileGlob(glob)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted domain %q: %w", glob, err)
		}
		v.trusted = append(v.trusted, re)
	}
	for _, phrase := range forbiddenPhrases {
		v.forbidden = append(v.forbidden, textnorm.Normalize(phrase))
	}
	return v, nil
}

// MustValidator is like NewValidator but panics if a glob does not compile.
// It simplifies initialization of package variables holding static lists.
func MustValidator(trustedGlobs, forbiddenPhrases []string) *Validator {
	v, err := NewValidator(trustedGlobs, forbiddenPhrases)
	if err != nil {
		panic(err)
	}
	return v
}

var defaultValidator = MustValidator(DefaultTrustedDomains, DefaultForbiddenPhrases)

// DefaultValidator returns the shared validator with the built-in lists.
// A Validator is read-only after construction, so it is safe to share.
func DefaultValidator() *Validator {
	return defaultValidator
}

// compileGlob turns a hostname glob into an anchored regex where * matches anything.
func compileGlob(glob string) (*regexp.Regexp, error) {
	parts := strings.Split(strings.ToLower(glob), "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

// Validate applies every rule in order and returns the first failure.
func (v *Validator) Validate(c Candidate) Verdict {
	if strings.TrimSpace(c.AnswerText) == "" || c.AnswerJSON == nil || c.ConfidenceLevel == "" {
		return Verdict{Reason: ReasonMissingFields}
	}

	if len(c.Sources) == 0 {
		return Verdict{Reason: ReasonMissingSources}
	}

	for _, src := range c.Sources {
		if !v.trustedURL(src.URL) {
			return Verdict{Reason: ReasonUntrustedSources, Detail: src.URL}
		}
	}

	normalized := " " + textnorm.Normalize(c.AnswerText) + " "
	for _, phrase := range v.forbidden {
		if strings.Contains(normalized, " "+phrase+" ") {
			return Verdict{Reason: ReasonOverconfidentLanguage, Detail: phrase}
		}
	}

	return Verdict{OK: true}
}

// trustedURL reports whether the URL's hostname matches a trusted glob.
func (v *Validator) trustedURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, re := range v.trusted {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}
