package lockup

import (
	"math/big"
	"testing"
)

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		text     string
		decimals uint8
		want     int64
		wantErr  bool
	}{
		{text: "1", decimals: 8, want: 100_000_000},
		{text: "0.5", decimals: 8, want: 50_000_000},
		{text: "1.00000001", decimals: 8, want: 100_000_001},
		{text: "0.00000001", decimals: 8, want: 1},
		{text: "1,234.5", decimals: 2, want: 123_450},
		{text: " 42 ", decimals: 0, want: 42},
		{text: ".25", decimals: 2, want: 25},
		{text: "0", decimals: 8, want: 0},
		{text: "", decimals: 8, wantErr: true},
		{text: "-1", decimals: 8, wantErr: true},
		{text: "abc", decimals: 8, wantErr: true},
		{text: "1.2.3", decimals: 8, wantErr: true},
		{text: "0.123", decimals: 2, wantErr: true}, // too many fractional digits
		{text: ".", decimals: 8, wantErr: true},
		{text: "1e8", decimals: 8, wantErr: true},
	}
	for _, tc := range cases {
		got, err := ToBaseUnits(tc.text, tc.decimals)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ToBaseUnits(%q, %d): expected error, got %s", tc.text, tc.decimals, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ToBaseUnits(%q, %d): %v", tc.text, tc.decimals, err)
		}
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("ToBaseUnits(%q, %d) = %s, want %d", tc.text, tc.decimals, got, tc.want)
		}
	}
}

func TestFormatBaseUnits(t *testing.T) {
	cases := []struct {
		value    int64
		decimals uint8
		want     string
	}{
		{value: 100_000_000, decimals: 8, want: "1"},
		{value: 150_000_000, decimals: 8, want: "1.5"},
		{value: 1, decimals: 8, want: "0.00000001"},
		{value: 123_456_789_000, decimals: 8, want: "1,234.56789"},
		{value: 0, decimals: 8, want: "0"},
		{value: 1_000_000, decimals: 0, want: "1,000,000"},
		{value: 123, decimals: 0, want: "123"},
	}
	for _, tc := range cases {
		if got := FormatBaseUnits(big.NewInt(tc.value), tc.decimals); got != tc.want {
			t.Fatalf("FormatBaseUnits(%d, %d) = %q, want %q", tc.value, tc.decimals, got, tc.want)
		}
	}
}

func TestBaseUnitsRoundTrip(t *testing.T) {
	values := []int64{0, 1, 9, 10, 99, 100_000_000, 123_456_789, 1_000_000_000_000_000}
	decimals := []uint8{0, 2, 8, 12}
	for _, d := range decimals {
		for _, v := range values {
			value := big.NewInt(v)
			text := FormatBaseUnits(value, d)
			back, err := ToBaseUnits(text, d)
			if err != nil {
				t.Fatalf("round trip %d with %d decimals: %v", v, d, err)
			}
			if back.Cmp(value) != 0 {
				t.Fatalf("round trip %d with %d decimals: got %s via %q", v, d, back, text)
			}
		}
	}
}
