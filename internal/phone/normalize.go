package phone

import "strings"

// Canonical is a normalized phone key. It is the only join key between the
// contact directory, the dispatcher queue and the outcome store.
type Canonical = string

const (
	// minDigits rejects fragments that no provider would dial.
	minDigits = 7

	bdCountryCode = "880"
	bdNSNLen      = 10
)

// Normalize canonicalizes a raw phone string.
//
// Output is either "" (unreachable) or "+" followed by digits. The function is
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) Canonical {
	var b strings.Builder
	b.Grow(len(raw))
	hasPlus := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+':
			hasPlus = true
		}
	}
	digits := b.String()

	intl := hasPlus
	for strings.HasPrefix(digits, "00") {
		digits = digits[2:]
		intl = true
	}

	digits = repairBangladesh(digits, intl)

	if len(digits) < minDigits {
		return ""
	}
	return "+" + digits
}

// repairBangladesh fixes the common ways +880 mobile numbers get mangled in
// spreadsheets. Mobile NSNs are 10 digits starting with 1.
func repairBangladesh(digits string, intl bool) string {
	// Domestic format with trunk prefix: 01XXXXXXXXX.
	if !intl && len(digits) == bdNSNLen+1 && strings.HasPrefix(digits, "01") {
		return bdCountryCode + digits[1:]
	}
	if !strings.HasPrefix(digits, bdCountryCode) {
		return digits
	}
	nsn := digits[len(bdCountryCode):]
	if len(nsn) != bdNSNLen+1 {
		return digits
	}
	switch {
	case strings.HasPrefix(nsn, "01"):
		// Trunk zero kept after the country code.
		return bdCountryCode + nsn[1:]
	case nsn[0] == '1':
		// One stray trailing digit.
		return bdCountryCode + nsn[:bdNSNLen]
	}
	return digits
}

// Equal reports whether two raw strings dial the same number.
func Equal(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
