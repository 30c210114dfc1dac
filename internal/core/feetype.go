package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// FeeType keys what a payment was for: "annual_<year>", "membership_fee",
// "fee_adjustment_<year>" or a slug for other dues ("tournament_fee").
type FeeType string

const (
	FeeTypeMembership FeeType = "membership_fee"

	annualPrefix     = "annual_"
	adjustmentPrefix = "fee_adjustment_"
)

// Fee labels offered for pending fees besides the annual ones.
var PendingFeeLabels = []string{"Membership Fee", "Special Assessment", "Tournament Fee", "Other"}

func AnnualFeeType(year int) FeeType {
	return FeeType(annualPrefix + strconv.Itoa(year))
}

func AdjustmentFeeType(year int) FeeType {
	return FeeType(adjustmentPrefix + strconv.Itoa(year))
}

// ParseFeeType normalises a key or display label into a FeeType.
// "Annual Fee 2024", "annual_fee_2024" and "annual_2024" all yield "annual_2024".
func ParseFeeType(s string) (FeeType, error) {
	slug := slugify(s)
	if slug == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFeeType, s)
	}
	if rest, ok := strings.CutPrefix(slug, "annual_fee_"); ok {
		slug = annualPrefix + rest
	}
	ft := FeeType(slug)
	if strings.HasPrefix(slug, annualPrefix) {
		if _, ok := ft.Year(); !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidFeeType, s)
		}
	}
	return ft, nil
}

func slugify(s string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSep = false
		case !lastSep:
			b.WriteByte('_')
			lastSep = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Year returns the fee year for annual and adjustment types.
func (t FeeType) Year() (int, bool) {
	s := string(t)
	var rest string
	switch {
	case strings.HasPrefix(s, adjustmentPrefix):
		rest = s[len(adjustmentPrefix):]
	case strings.HasPrefix(s, annualPrefix):
		rest = s[len(annualPrefix):]
	default:
		return 0, false
	}
	y, err := strconv.Atoi(rest)
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}

// AnnualYear returns the year only for "annual_<year>" types.
func (t FeeType) AnnualYear() (int, bool) {
	if !strings.HasPrefix(string(t), annualPrefix) {
		return 0, false
	}
	return t.Year()
}

func (t FeeType) IsAdjustment() bool {
	return strings.HasPrefix(string(t), adjustmentPrefix)
}

// Label is the human form used in pending fees and invoices.
func (t FeeType) Label() string {
	if y, ok := t.AnnualYear(); ok {
		return fmt.Sprintf("Annual Fee %d", y)
	}
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Display is the transaction export form: first underscore becomes a space,
// everything upper-cased ("annual_2024" -> "ANNUAL 2024").
func (t FeeType) Display() string {
	return strings.ToUpper(strings.Replace(string(t), "_", " ", 1))
}

// UnmarshalJSON normalises labels written by older exports.
func (t *FeeType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidFeeType, b)
	}
	if strings.HasPrefix(s, adjustmentPrefix) {
		*t = FeeType(s)
		return nil
	}
	ft, err := ParseFeeType(s)
	if err != nil {
		return err
	}
	*t = ft
	return nil
}
