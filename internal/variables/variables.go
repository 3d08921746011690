// Package variables extracts, renders and validates the ${placeholder}
// tokens used in notification template bodies.
package variables

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/crestbank/notifyd/internal/catalog"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExtractPlaceholders scans text for ${identifier} tokens and returns
// the normalized (lower-cased) token set, keyed in full "${name}" form
func ExtractPlaceholders(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		tokens["${"+strings.ToLower(m[1])+"}"] = struct{}{}
	}
	return tokens
}

// Render replaces every literal occurrence of each variable's
// placeholder with its sample value, case-insensitively. Placeholders
// not covered by a variable are left verbatim. Placeholder strings are
// quoted before matching: "${" and "}" carry regex meaning.
func Render(text string, vars []catalog.Variable) string {
	for _, v := range vars {
		if v.Placeholder == "" {
			continue
		}
		pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(v.Placeholder))
		if err != nil {
			continue
		}
		text = pattern.ReplaceAllLiteralString(text, v.SampleValue)
	}
	return text
}

// Rule identifies which part of a category constraint a body violated
type Rule string

const (
	RuleMissingRequired Rule = "missing-required"
	RuleDisallowedToken Rule = "disallowed-token"
)

// ConstraintError reports a category-constraint violation with the
// offending variable names, sorted for stable output
type ConstraintError struct {
	Category string
	Rule     Rule
	Tokens   []string
}

func (e *ConstraintError) Error() string {
	switch e.Rule {
	case RuleMissingRequired:
		return fmt.Sprintf("category %q requires placeholders: %s", e.Category, strings.Join(e.Tokens, ", "))
	case RuleDisallowedToken:
		return fmt.Sprintf("category %q does not allow placeholders: %s", e.Category, strings.Join(e.Tokens, ", "))
	}
	return fmt.Sprintf("category %q constraint violated", e.Category)
}

// otpAllowed is the exact placeholder set an OTP body may use. OTP
// delivery must never drop the verification code or the personalization
// field, and must never leak an undeclared variable.
var otpAllowed = []string{"${safename}", "${code}"}

// ValidateCategoryConstraint checks text against the placeholder rules
// of the named category. Only the OTP category carries a constraint;
// every other category passes. Category matching is case-insensitive.
func ValidateCategoryConstraint(categoryName, text string) error {
	if catalog.NormalizeName(categoryName) != "otp" {
		return nil
	}

	found := ExtractPlaceholders(text)

	var missing []string
	for _, token := range otpAllowed {
		if _, ok := found[token]; !ok {
			missing = append(missing, strings.Trim(token, "${}"))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &ConstraintError{Category: categoryName, Rule: RuleMissingRequired, Tokens: missing}
	}

	var extra []string
	for token := range found {
		allowed := false
		for _, a := range otpAllowed {
			if token == a {
				allowed = true
				break
			}
		}
		if !allowed {
			extra = append(extra, strings.Trim(token, "${}"))
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return &ConstraintError{Category: categoryName, Rule: RuleDisallowedToken, Tokens: extra}
	}

	return nil
}
