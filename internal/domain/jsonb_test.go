package domain_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/jonesrussell/goprospect/internal/domain"
)

func TestJSONBMap_Merge_ScalarsNewerWins(t *testing.T) {
	older := domain.JSONBMap{
		"filter_score":    float64(60),
		"filter_reason":   "accepted",
		"source_page_url": "https://www.yellowpages.com/austin-tx/plumbers?page=1",
	}
	newer := domain.JSONBMap{
		"filter_score":    float64(75),
		"source_page_url": "https://www.yellowpages.com/austin-tx/plumbers?page=2",
	}

	merged := older.Merge(newer)

	if got := merged["filter_score"]; got != float64(75) {
		t.Errorf("filter_score = %v, want 75", got)
	}
	if got := merged["source_page_url"]; got != "https://www.yellowpages.com/austin-tx/plumbers?page=2" {
		t.Errorf("source_page_url = %v, want newer value", got)
	}
	// Keys only present in the older document survive.
	if got := merged["filter_reason"]; got != "accepted" {
		t.Errorf("filter_reason = %v, want accepted", got)
	}
}

func TestJSONBMap_Merge_ArraysUnionPreservingOrder(t *testing.T) {
	older := domain.JSONBMap{
		"category_tags": []any{"Plumbers", "Water Heaters"},
	}
	newer := domain.JSONBMap{
		"category_tags": []any{"Water Heaters", "Septic Tanks", "Plumbers"},
	}

	merged := older.Merge(newer)

	want := []any{"Plumbers", "Water Heaters", "Septic Tanks"}
	if !reflect.DeepEqual(merged["category_tags"], want) {
		t.Errorf("category_tags = %v, want %v", merged["category_tags"], want)
	}
}

func TestJSONBMap_Merge_DoesNotMutateInputs(t *testing.T) {
	older := domain.JSONBMap{"category_tags": []any{"a"}, "x": float64(1)}
	newer := domain.JSONBMap{"category_tags": []any{"b"}, "x": float64(2)}

	_ = older.Merge(newer)

	if older["x"] != float64(1) {
		t.Errorf("older mutated: x = %v", older["x"])
	}
	if len(newer["category_tags"].([]any)) != 1 {
		t.Errorf("newer mutated: category_tags = %v", newer["category_tags"])
	}
}

func TestJSONBMap_ScanValueRoundTrip(t *testing.T) {
	original := domain.JSONBMap{
		"profile_url":  "https://www.yellowpages.com/austin-tx/mip/abc-plumbing-123",
		"is_sponsored": false,
		"filter_score": float64(82),
	}

	raw, err := original.Value()
	if err != nil {
		t.Fatalf("Value() unexpected error: %v", err)
	}

	var scanned domain.JSONBMap
	if scanErr := scanned.Scan(raw); scanErr != nil {
		t.Fatalf("Scan() unexpected error: %v", scanErr)
	}

	if !reflect.DeepEqual(scanned, original) {
		t.Errorf("round trip mismatch: got %v, want %v", scanned, original)
	}
}

func TestJSONBMap_ScanNilAndEmpty(t *testing.T) {
	var m domain.JSONBMap
	if err := m.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("Scan(nil) should leave map nil, got %v", m)
	}

	if err := m.Scan([]byte{}); err != nil {
		t.Fatalf("Scan(empty) unexpected error: %v", err)
	}
	if m == nil || len(m) != 0 {
		t.Errorf("Scan(empty) should produce empty map, got %v", m)
	}
}

func TestJSONBMap_ValueEmptyIsObject(t *testing.T) {
	var m domain.JSONBMap
	raw, err := m.Value()
	if err != nil {
		t.Fatalf("Value() unexpected error: %v", err)
	}
	if string(raw.([]byte)) != "{}" {
		t.Errorf("Value() of empty map = %s, want {}", raw)
	}
}

func TestBuildParseMetadata(t *testing.T) {
	profile := "https://www.yellowpages.com/dallas-tx/mip/lone-star-plumbing-4"
	listing := &domain.Listing{
		Name:          "Lone Star Plumbing",
		ProfileURL:    &profile,
		CategoryTags:  []string{"Plumbers", "Leak Detection"},
		IsSponsored:   true,
		SourcePageURL: "https://www.yellowpages.com/dallas-tx/plumbers?page=1",
	}
	outcome := domain.FilterOutcome{Accepted: true, Reason: domain.ReasonAccepted, Score: 78}

	meta := domain.BuildParseMetadata(listing, outcome)

	if meta[domain.MetaProfileURL] != profile {
		t.Errorf("profile_url = %v", meta[domain.MetaProfileURL])
	}
	if meta[domain.MetaFilterScore] != 78 {
		t.Errorf("filter_score = %v, want 78", meta[domain.MetaFilterScore])
	}
	if meta[domain.MetaFilterReason] != domain.ReasonAccepted {
		t.Errorf("filter_reason = %v", meta[domain.MetaFilterReason])
	}
	if meta[domain.MetaIsSponsored] != true {
		t.Errorf("is_sponsored = %v, want true", meta[domain.MetaIsSponsored])
	}

	// The document must survive a JSON round trip unchanged in shape.
	raw, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	tags, ok := back["category_tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "Plumbers" {
		t.Errorf("category_tags after round trip = %v", back["category_tags"])
	}
}
