package geoip

import "strings"

type hostHint struct {
	code     string
	name     string
	suffix   string
	keywords []string
}

// Checked in order; the first hit wins.
var hostHints = []hostHint{
	{"TW", "Taiwan", ".tw", []string{"taiwan"}},
	{"LV", "Latvia", ".lv", []string{"latvia"}},
	{"HK", "Hong Kong", ".hk", []string{"hongkong"}},
	{"SG", "Singapore", ".sg", []string{"singapore"}},
	{"JP", "Japan", ".jp", []string{"japan"}},
	{"KR", "South Korea", ".kr", []string{"korea"}},
	{"US", "United States", ".us", []string{"unitedstates", "usa"}},
	{"GB", "United Kingdom", ".gb", []string{"uk", "unitedkingdom"}},
	{"DE", "Germany", ".de", []string{"germany"}},
	{"FR", "France", ".fr", []string{"france"}},
	{"RU", "Russia", ".ru", []string{"russia"}},
	{"CA", "Canada", ".ca", []string{"canada"}},
	{"NL", "Netherlands", ".nl", []string{"netherlands"}},
	{"AU", "Australia", ".au", []string{"australia"}},
	{"IN", "India", ".in", []string{"india"}},
}

// GuessCountry infers a country from a hostname's suffix or keywords. It is
// best-effort and only meant for hosts GeoIP could not place.
func GuessCountry(host string) (Country, bool) {
	h := strings.ToLower(host)
	for _, hint := range hostHints {
		if strings.HasSuffix(h, hint.suffix) {
			return Country{Code: hint.code, Name: hint.name}, true
		}
		for _, k := range hint.keywords {
			if strings.Contains(h, k) {
				return Country{Code: hint.code, Name: hint.name}, true
			}
		}
	}
	return Unknown, false
}

// Name returns the English name for codes in the hint table, else "Unknown".
func Name(code string) string {
	code = strings.ToUpper(code)
	for _, hint := range hostHints {
		if hint.code == code {
			return hint.name
		}
	}
	return Unknown.Name
}

// Flag renders a country code as a regional-indicator emoji. Unknown or
// malformed codes get a globe.
func Flag(code string) string {
	if len(code) != 2 || strings.EqualFold(code, UnknownCode) {
		return "🌍"
	}
	code = strings.ToUpper(code)
	var b strings.Builder
	for i := 0; i < 2; i++ {
		c := code[i]
		if c < 'A' || c > 'Z' {
			return "🌍"
		}
		b.WriteRune(rune(0x1F1E6 + int(c-'A')))
	}
	return b.String()
}
