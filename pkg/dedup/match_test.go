package dedup

import (
	"testing"

	"github.com/foliofox/foliofox/pkg/catalog"
)

func TestEvaluateISBNMatch(t *testing.T) {
	a := catalog.Book{ID: 1, Title: "Dune", ISBN13: "978-0-441-01359-3"}
	b := catalog.Book{ID: 2, Title: "Dune (Deluxe Edition)", ISBN13: "9780441013593"}

	m, ok := Evaluate(newSimCache(), a, b, Options{})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Kind != MatchISBN {
		t.Errorf("kind = %q, want isbn", m.Kind)
	}
	if m.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %q, want high", m.Confidence)
	}
}

func TestEvaluateExactASIN(t *testing.T) {
	a := catalog.Book{ID: 1, Title: "Foundation", ASIN: "B000FC1PJI"}
	b := catalog.Book{ID: 2, Title: "Foundation Trilogy", ASIN: "B000FC1PJI"}

	m, ok := Evaluate(newSimCache(), a, b, Options{})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Kind != MatchExact {
		t.Errorf("kind = %q, want exact", m.Kind)
	}
}

func TestEvaluateFuzzyMatch(t *testing.T) {
	a := catalog.Book{ID: 1, Title: "The Hobbit", Authors: []string{"J.R.R. Tolkien"}}
	b := catalog.Book{ID: 2, Title: "The Hobbit", Authors: []string{"J. R. R. Tolkien"}}

	m, ok := Evaluate(newSimCache(), a, b, Options{})
	if !ok {
		t.Fatal("expected a fuzzy match")
	}
	if m.Kind != MatchFuzzy {
		t.Errorf("kind = %q, want fuzzy", m.Kind)
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	a := catalog.Book{ID: 1, Title: "Dune", Authors: []string{"Frank Herbert"}}
	b := catalog.Book{ID: 2, Title: "1984", Authors: []string{"George Orwell"}}

	_, ok := Evaluate(newSimCache(), a, b, Options{})
	if ok {
		t.Fatal("expected no match for unrelated books")
	}
}

func TestEvaluateContentHashFallback(t *testing.T) {
	a := catalog.Book{ID: 1, Title: "Neuromancer", TotalFileSize: 500_000}
	b := catalog.Book{ID: 2, Title: "Neuromancer Omnibus", TotalFileSize: 500_000}

	m, ok := Evaluate(newSimCache(), a, b, Options{})
	if !ok {
		t.Fatal("expected a content_hash match")
	}
	if m.Kind != MatchContentHash {
		t.Errorf("kind = %q, want content_hash", m.Kind)
	}
	if m.Confidence != ConfidenceMedium {
		t.Errorf("confidence = %q, want medium", m.Confidence)
	}
}

func TestEvaluateReportsDifferences(t *testing.T) {
	a := catalog.Book{ID: 1, Title: "Dune", ISBN13: "9780441013593", Publisher: "Ace"}
	b := catalog.Book{ID: 2, Title: "Dune", ISBN13: "9780441013593", Publisher: "Berkley"}

	m, ok := Evaluate(newSimCache(), a, b, Options{})
	if !ok {
		t.Fatal("expected a match")
	}
	diff, ok := m.Differences["publisher"]
	if !ok {
		t.Fatal("expected a publisher difference to be recorded")
	}
	if diff[0] != "Ace" || diff[1] != "Berkley" {
		t.Errorf("publisher diff = %v, want [Ace Berkley]", diff)
	}
	if _, ok := m.Differences["title"]; ok {
		t.Error("title should not appear in differences when equal")
	}
}

func TestEvaluateCustomFuzzyThreshold(t *testing.T) {
	a := catalog.Book{ID: 1, Title: "Something Wicked", Authors: []string{"Ray Bradbury"}}
	b := catalog.Book{ID: 2, Title: "Something Else Entirely", Authors: []string{"Ray Bradbury"}}

	_, ok := Evaluate(newSimCache(), a, b, Options{FuzzyThreshold: 0.99})
	if ok {
		t.Fatal("expected no match with a very strict fuzzy threshold")
	}
}
