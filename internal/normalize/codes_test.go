package normalize

import "testing"

func TestService(t *testing.T) {
	cases := []struct{ in, want string }{
		{" c03.ah.0010 ", "C03.AH.0010"},
		{"AA.00.0010", "AA.00.0010"},
		{"aa 00 0010", "AA000010"},
		{"  ", ""},
		{"-", ""},
	}
	for _, c := range cases {
		if got := Service(c.in); got != c.want {
			t.Errorf("Service(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDiagnosis(t *testing.T) {
	cases := []struct{ in, want string }{
		{"k35.2", "K35.2"},
		{"K35.", "K35"},
		{" K 35.2 ", "K35.2"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Diagnosis(c.in); got != c.want {
			t.Errorf("Diagnosis(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGTIN(t *testing.T) {
	cases := []struct{ in, want string }{
		{"7680-12345678-9", "7680123456789"},
		{" 7680123456789 ", "7680123456789"},
		{"no digits", ""},
	}
	for _, c := range cases {
		if got := GTIN(c.in); got != c.want {
			t.Errorf("GTIN(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFold(t *testing.T) {
	if got := Fold("  Cefuroxim   Fresenius "); got != "cefuroxim fresenius" {
		t.Errorf("Fold = %q", got)
	}
}

func TestTableName(t *testing.T) {
	if got := TableName(" cap01_app "); got != "CAP01_APP" {
		t.Errorf("TableName = %q", got)
	}
}
