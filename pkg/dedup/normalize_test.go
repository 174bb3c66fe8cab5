package dedup

import "testing"

func TestNormISBN(t *testing.T) {
	cases := map[string]string{
		"978-0-13-468599-1": "9780134685991",
		"0-13-468599-X":     "013468599X",
		"  123 456  ":       "123456",
	}
	for in, want := range cases {
		if got := NormISBN(in); got != want {
			t.Errorf("NormISBN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormTitle(t *testing.T) {
	cases := map[string]string{
		"The Great Gatsby":                "great gatsby",
		"  A Tale of Two Cities  ":        "tale of two cities",
		"Dune: 2nd Edition":               "dune",
		"Foundation, Revised Edition":     "foundation",
		"Brave New World!!!":              "brave new world",
		"War & Peace":                     "war peace",
	}
	for in, want := range cases {
		if got := NormTitle(in); got != want {
			t.Errorf("NormTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormTitleIdempotent(t *testing.T) {
	inputs := []string{"The Hobbit", "20,000 Leagues Under the Sea", "Les Misérables"}
	for _, in := range inputs {
		once := NormTitle(in)
		twice := NormTitle(once)
		if once != twice {
			t.Errorf("NormTitle not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormAuthorLastFirst(t *testing.T) {
	got := NormAuthor("Tolkien, J.R.R.")
	want := "j.r.r. tolkien"
	if got != want {
		t.Errorf("NormAuthor() = %q, want %q", got, want)
	}
}

func TestNormAuthorPlain(t *testing.T) {
	got := NormAuthor("Ursula K. Le Guin")
	want := "ursula k. le guin"
	if got != want {
		t.Errorf("NormAuthor() = %q, want %q", got, want)
	}
}

func TestNormDate(t *testing.T) {
	cases := map[string]string{
		"2021-05-14":           "2021",
		"May 2019":              "2019",
		"no date here":          "",
		"published in the 90s":  "",
	}
	for in, want := range cases {
		if got := NormDate(in); got != want {
			t.Errorf("NormDate(%q) = %q, want %q", in, got, want)
		}
	}
}
