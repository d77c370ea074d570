package pipeline

import "strings"

var (
	onesWords  = []string{"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine"}
	teensWords = []string{"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen"}
	tensWords  = []string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
)

// AmountInWords spells a whole amount in the Indian numbering system
// (crore, lakh, thousand, hundred), e.g. "Twelve Lakh Five Rupees Only".
func AmountInWords(amount int64, currency string) string {
	if currency == "" {
		currency = "Rupees"
	}
	words := "Zero"
	if amount < 0 {
		words = "Minus " + indianWords(-amount)
	} else if amount > 0 {
		words = indianWords(amount)
	}
	return words + " " + currency + " Only"
}

func indianWords(n int64) string {
	crore := n / 10000000
	lakh := (n % 10000000) / 100000
	thousand := (n % 100000) / 1000
	hundred := (n % 1000) / 100
	rest := n % 100

	parts := []string{}
	if crore > 0 {
		parts = append(parts, indianWords(crore), "Crore")
	}
	if lakh > 0 {
		parts = append(parts, belowHundred(lakh), "Lakh")
	}
	if thousand > 0 {
		parts = append(parts, belowHundred(thousand), "Thousand")
	}
	if hundred > 0 {
		parts = append(parts, onesWords[hundred], "Hundred")
	}
	if rest > 0 {
		parts = append(parts, belowHundred(rest))
	}
	return strings.Join(parts, " ")
}

func belowHundred(n int64) string {
	switch {
	case n >= 20:
		if n%10 == 0 {
			return tensWords[n/10]
		}
		return tensWords[n/10] + " " + onesWords[n%10]
	case n >= 10:
		return teensWords[n-10]
	default:
		return onesWords[n]
	}
}
