// Package format renders amounts and card dates in the shapes processors expect.
package format

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// zeroDecimal lists currencies without minor units.
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "ISK": true, "JPY": true,
	"KMF": true, "KRW": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// ZeroDecimal reports whether currency has no minor unit.
func ZeroDecimal(currency string) bool {
	return zeroDecimal[strings.ToUpper(currency)]
}

// Cents renders minor units as an integer string ("1000").
func Cents(cents int64) string {
	return fmt.Sprintf("%d", cents)
}

// Dollars renders minor units with two decimals ("10.00").
func Dollars(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Amount renders an amount for currency: whole units for zero-decimal
// currencies, two decimals otherwise. Zero-decimal amounts are still given in
// the currency's only unit (cents == yen).
func Amount(cents int64, currency string) string {
	if ZeroDecimal(currency) {
		return Cents(cents)
	}
	return Dollars(cents)
}

// ParseAmount parses "10.00" or "10" back into minor units for currency.
func ParseAmount(s, currency string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, hasFrac := strings.Cut(s, ".")
	if ZeroDecimal(currency) && hasFrac && strings.Trim(frac, "0") != "" {
		return 0, fmt.Errorf("amount %q has minor units but %s has none", s, currency)
	}
	var units int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("amount %q is not numeric", s)
		}
		units = units*10 + int64(r-'0')
	}
	if ZeroDecimal(currency) {
		if neg {
			units = -units
		}
		return units, nil
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	frac += strings.Repeat("0", 2-len(frac))
	var minor int64
	for _, r := range frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("amount %q is not numeric", s)
		}
		minor = minor*10 + int64(r-'0')
	}
	total := units*100 + minor
	if neg {
		total = -total
	}
	return total, nil
}

// Month renders a month as two digits.
func Month(month int) string {
	return fmt.Sprintf("%02d", month)
}

// Year4 renders a year with four digits.
func Year4(year int) string {
	return fmt.Sprintf("%04d", year)
}

// Year2 renders the last two digits of a year.
func Year2(year int) string {
	return fmt.Sprintf("%02d", year%100)
}

// MMYY renders an expiry as "MMYY".
func MMYY(month, year int) string {
	return Month(month) + Year2(year)
}

// YYYYMM renders an expiry as "YYYY-MM".
func YYYYMM(month, year int) string {
	return Year4(year) + "-" + Month(month)
}

// Digits strips every non-digit character.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
