package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Matcher overrides transaction fields when the note matches a pattern.
//
//	matchers:
//	  - match: "/SALARY/i"
//	    amount: {min: 1000}
//	    values: {category: "Income:Salary"}
type Matcher struct {
	Match  string        `yaml:"match"`
	Amount *AmountFilter `yaml:"amount,omitempty"`
	Values MatcherValues `yaml:"values"`

	pattern *regexp.Regexp
}

// MatcherValues are the fields a matcher overwrites. Nil means untouched.
type MatcherValues struct {
	Category      *string `yaml:"category,omitempty"`
	Payee         *string `yaml:"payee,omitempty"`
	Note          *string `yaml:"note,omitempty"`
	Currency      *string `yaml:"currency,omitempty"`
	Uncategorized *bool   `yaml:"uncategorized,omitempty"`
}

// AmountFilter restricts a matcher to an exact amount or an inclusive range.
// Amounts are signed: expenses are negative.
type AmountFilter struct {
	Exact *decimal.Decimal
	Min   *decimal.Decimal
	Max   *decimal.Decimal
}

// Matches reports whether note matches the compiled pattern.
// Matchers must come from a validated Profile.
func (m Matcher) Matches(note string) bool {
	return m.pattern != nil && m.pattern.MatchString(note)
}

// Accepts reports whether the amount passes the matcher's filter, if any.
func (m Matcher) Accepts(amount decimal.Decimal) bool {
	return m.Amount == nil || m.Amount.Accepts(amount)
}

// Accepts reports whether amount satisfies the filter.
func (f AmountFilter) Accepts(amount decimal.Decimal) bool {
	if f.Exact != nil {
		return amount.Equal(*f.Exact)
	}
	if f.Min != nil && amount.LessThan(*f.Min) {
		return false
	}
	if f.Max != nil && amount.GreaterThan(*f.Max) {
		return false
	}
	return true
}

func (m *Matcher) compile() error {
	if m.Match == "" {
		return errors.New("match pattern required")
	}
	re, err := CompilePattern(m.Match)
	if err != nil {
		return err
	}
	if m.Amount != nil && m.Amount.Exact == nil && m.Amount.Min == nil && m.Amount.Max == nil {
		return errors.New("amount filter requires min or max")
	}
	m.pattern = re
	return nil
}

var closingDelimiter = map[byte]byte{'(': ')', '{': '}', '[': ']', '<': '>'}

// CompilePattern compiles a delimiter-wrapped pattern such as "/SALARY/i".
// A pattern without a recognized delimiter is used as a plain expression.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	expr, flags, ok := splitDelimited(pattern)
	if !ok {
		return compile(pattern)
	}

	var prefix strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'U':
			prefix.WriteRune(f)
		case 'u':
			// Go patterns are always UTF-8.
		default:
			return nil, fmt.Errorf("unsupported pattern flag %q in %s", f, pattern)
		}
	}
	if prefix.Len() > 0 {
		expr = "(?" + prefix.String() + ")" + expr
	}
	return compile(expr)
}

func compile(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}

func splitDelimited(pattern string) (expr, flags string, ok bool) {
	if len(pattern) < 2 {
		return "", "", false
	}
	open := pattern[0]
	closing, bracket := closingDelimiter[open]
	if !bracket {
		if !strings.ContainsRune("/#~%@!|+;,", rune(open)) {
			return "", "", false
		}
		closing = open
	}
	end := strings.LastIndexByte(pattern, closing)
	if end <= 0 {
		return "", "", false
	}
	return pattern[1:end], pattern[end+1:], true
}

// UnmarshalYAML accepts either a number or a {min, max} mapping.
func (f *AmountFilter) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		d, err := decimal.NewFromString(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid amount %q", value.Line, value.Value)
		}
		f.Exact = &d
		return nil
	case yaml.MappingNode:
		var raw struct {
			Min *string `yaml:"min"`
			Max *string `yaml:"max"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		var err error
		if f.Min, err = parseBound(raw.Min); err != nil {
			return fmt.Errorf("line %d: min: %w", value.Line, err)
		}
		if f.Max, err = parseBound(raw.Max); err != nil {
			return fmt.Errorf("line %d: max: %w", value.Line, err)
		}
		return nil
	default:
		return fmt.Errorf("line %d: amount must be a number or a {min, max} mapping", value.Line)
	}
}

// MarshalYAML writes the filter back in the form it was read.
func (f AmountFilter) MarshalYAML() (any, error) {
	if f.Exact != nil {
		return f.Exact.String(), nil
	}
	out := map[string]string{}
	if f.Min != nil {
		out["min"] = f.Min.String()
	}
	if f.Max != nil {
		out["max"] = f.Max.String()
	}
	return out, nil
}

func parseBound(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", *s)
	}
	return &d, nil
}
