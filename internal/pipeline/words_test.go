package pipeline

import "testing"

func TestAmountInWords(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{0, "Zero Rupees Only"},
		{7, "Seven Rupees Only"},
		{15, "Fifteen Rupees Only"},
		{40, "Forty Rupees Only"},
		{118, "One Hundred Eighteen Rupees Only"},
		{1000, "One Thousand Rupees Only"},
		{25075, "Twenty Five Thousand Seventy Five Rupees Only"},
		{1200005, "Twelve Lakh Five Rupees Only"},
		{10000000, "One Crore Rupees Only"},
		{123456789, "Twelve Crore Thirty Four Lakh Fifty Six Thousand Seven Hundred Eighty Nine Rupees Only"},
	}
	for _, tc := range cases {
		if got := AmountInWords(tc.amount, ""); got != tc.want {
			t.Fatalf("AmountInWords(%d)=%q want %q", tc.amount, got, tc.want)
		}
	}
}
