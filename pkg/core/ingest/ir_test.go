package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const irPageHTML = `<html><body>
<h1>Investor Relations</h1>
<a href="/files/annual-report-2023.pdf">Annual Report 2023</a>
<a href="https://cdn.example.com/reports/q1-2024-interim.pdf">Q1 2024 Interim Statement</a>
<a href="/files/annual-report-2023.pdf">Download again</a>
<a href="/files/esg-policy.pdf">ESG Policy</a>
<a href="/files/fy2022.pdf"></a>
<a href="/about">About us</a>
</body></html>`

func TestIRScraperDiscover(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/investors", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, irPageHTML)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docs, err := NewIRScraper().Discover(context.Background(), []string{srv.URL + "/investors"})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	// Five PDF links, one a duplicate of the annual report.
	if len(docs) != 4 {
		t.Fatalf("got %d documents, want 4: %+v", len(docs), docs)
	}

	annual := docs[0]
	if annual.Kind != DocAnnualReport {
		t.Errorf("annual report classified as %q", annual.Kind)
	}
	if annual.Title != "Annual Report 2023" {
		t.Errorf("duplicate link should not replace the first title, got %q", annual.Title)
	}
	// Relative hrefs resolve against the page URL.
	if want := srv.URL + "/files/annual-report-2023.pdf"; annual.URL != want {
		t.Errorf("annual URL = %q, want %q", annual.URL, want)
	}

	quarterly := docs[1]
	if quarterly.Kind != DocQuarterlyReport {
		t.Errorf("interim statement classified as %q", quarterly.Kind)
	}
	// Absolute hrefs pass through untouched.
	if want := "https://cdn.example.com/reports/q1-2024-interim.pdf"; quarterly.URL != want {
		t.Errorf("quarterly URL = %q, want %q", quarterly.URL, want)
	}

	if docs[2].Kind != DocOther {
		t.Errorf("ESG policy classified as %q, want %q", docs[2].Kind, DocOther)
	}

	// A link with no text falls back to the file name.
	if docs[3].Title != "fy2022.pdf" {
		t.Errorf("untitled link title = %q, want fy2022.pdf", docs[3].Title)
	}
}

func TestIRScraperSkipsFailingPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/a/annual-2023.pdf">Annual Report</a>`)
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docs, err := NewIRScraper().Discover(context.Background(),
		[]string{srv.URL + "/bad", srv.URL + "/good"})
	if err != nil {
		t.Fatalf("one failing page should not abort discovery: %v", err)
	}
	if len(docs) != 1 || docs[0].Kind != DocAnnualReport {
		t.Errorf("docs = %+v, want the one annual report", docs)
	}
}

func TestIRScraperAllPagesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewIRScraper().Discover(context.Background(), []string{srv.URL}); err == nil {
		t.Fatal("expected error when every page fails")
	}
}

func TestClassifyDocument(t *testing.T) {
	tests := []struct {
		title string
		href  string
		want  string
	}{
		{"Annual Report 2023", "/ar-2023.pdf", DocAnnualReport},
		{"Jaarverslag 2022", "/jaarverslag.pdf", DocAnnualReport},
		{"Half-Year Results", "/hy.pdf", DocQuarterlyReport},
		{"Results", "/q3-2024.pdf", DocQuarterlyReport},
		// Quarterly terms beat annual ones when both appear.
		{"Q2 update to the annual plan", "/u.pdf", DocQuarterlyReport},
		{"Sustainability", "/esg.pdf", DocOther},
	}
	for _, tt := range tests {
		if got := classifyDocument(tt.title, tt.href); got != tt.want {
			t.Errorf("classifyDocument(%q, %q) = %q, want %q", tt.title, tt.href, got, tt.want)
		}
	}
}
