package util

import "testing"

func TestParseQty(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "thousand with comma", input: "Copper cable 1,000 m", want: 1000},
		{name: "decimal comma", input: "Wire 1,5 m", want: 1.5},
		{name: "decimal dot", input: "Wire 1.5 m", want: 1.5},
		{name: "thousand dot", input: "Cable 1.000 pcs", want: 1000},
		{name: "dimension and qty", input: "MCB 3x63A 100 nos", want: 100},
		{name: "plain number", input: "25", want: 25},
		{name: "non-breaking space", input: "Copper cable\u00A0100\u00A0m", want: 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := ParseQty(tc.input)
			if parsed.Qty == nil {
				t.Fatalf("qty is nil")
			}
			if *parsed.Qty != tc.want {
				t.Fatalf("got %v want %v", *parsed.Qty, tc.want)
			}
		})
	}
}

func TestQuantity(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{input: "", want: 1},
		{input: "n/a", want: 1},
		{input: "0", want: 1},
		{input: "12 pcs", want: 12},
		{input: "2.9", want: 2},
		{input: "1,200", want: 1200},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			if got := Quantity(tc.input); got != tc.want {
				t.Fatalf("Quantity(%q)=%d want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("3f2a9c1e-7d4b-4e2a-9b1c-000000000000"); got != "3F2A9C1E" {
		t.Fatalf("got %s", got)
	}
}

func TestHeaderKey(t *testing.T) {
	if HeaderKey("Base Price") != HeaderKey("base_price") {
		t.Fatal("header keys differ")
	}
}
