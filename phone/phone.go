// Package phone validates Azerbaijani mobile numbers against the national
// 9-digit format used as the primary key for leads.
package phone

// Rejection classifies why a number failed validation.
type Rejection string

const (
	RejectionNone          Rejection = ""
	RejectionWrongLength   Rejection = "wrong_length"
	RejectionInvalidPrefix Rejection = "invalid_prefix"
	RejectionInvalidThird  Rejection = "invalid_third_digit"
	RejectionNonDigit      Rejection = "non_digit"
)

// validPrefixes are the provider codes assigned to mobile operators.
var validPrefixes = map[string]struct{}{
	"10": {}, "12": {}, "50": {}, "51": {}, "55": {},
	"60": {}, "70": {}, "77": {}, "99": {},
}

// Validated is the outcome of validating one raw phone string.
type Validated struct {
	Raw        string
	Normalized string
	Prefix     string
	Valid      bool
	Reason     Rejection
}

// Validator checks raw phone strings. The zero value applies the permissive
// normalization rule: every non-digit character is stripped before the
// length/prefix checks, so display forms with separators still validate.
// Strict rejects any input containing a non-digit character (one leading
// "+" excepted) before stripping.
type Validator struct {
	Strict bool
}

// Validate normalizes and checks raw. Normalization drops a leading "994"
// country code and then at most one leading zero; the remainder must be
// exactly nine digits starting with a known provider prefix, and the digit
// after the prefix must be 2-9.
func (v Validator) Validate(raw string) Validated {
	out := Validated{Raw: raw}

	if v.Strict && !digitsOnly(raw) {
		out.Reason = RejectionNonDigit
		return out
	}

	digits := stripNonDigits(raw)
	if len(digits) >= 12 && digits[:3] == "994" {
		digits = digits[3:]
	}
	if len(digits) == 10 && digits[0] == '0' {
		digits = digits[1:]
	}

	if len(digits) != 9 {
		out.Reason = RejectionWrongLength
		return out
	}

	prefix := digits[:2]
	if _, ok := validPrefixes[prefix]; !ok {
		out.Prefix = prefix
		out.Reason = RejectionInvalidPrefix
		return out
	}

	if digits[2] == '0' || digits[2] == '1' {
		out.Prefix = prefix
		out.Reason = RejectionInvalidThird
		return out
	}

	out.Normalized = digits
	out.Prefix = prefix
	out.Valid = true
	return out
}

func stripNonDigits(s string) string {
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			buf = append(buf, s[i])
		}
	}
	return string(buf)
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			continue
		}
		if i == 0 && s[i] == '+' {
			continue
		}
		return false
	}
	return true
}
