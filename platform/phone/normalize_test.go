package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+31 6 12345678", "+31612345678"},
		{"(212) 555-0142", "+12125550142"},
		{"  +49 1522 3433333  ", "+4915223433333"},
		{"not a number", "not a number"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeE164(tc.in); got != tc.want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeE164In(t *testing.T) {
	if got := NormalizeE164In("01522 3433333", "DE"); got != "+4915223433333" {
		t.Fatalf("german national number = %q", got)
	}
	if got := NormalizeE164In("212 555 0142", ""); got != "+12125550142" {
		t.Fatalf("empty region must fall back to US, got %q", got)
	}
}
