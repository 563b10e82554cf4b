package repository

import (
	"testing"

	"github.com/recast/recast/internal/model"
)

func TestJobMaps_RoundTrip(t *testing.T) {
	t.Parallel()

	job := &model.ContentJob{
		Generated: map[string]string{"twitter": "a\n\n---\n\nb"},
		Errors:    map[string]string{"instagram": "upstream unavailable"},
	}

	generated, errs, err := encodeJobMaps(job)
	if err != nil {
		t.Fatalf("encodeJobMaps() error = %v", err)
	}

	var out model.ContentJob
	if err := decodeJobMaps(&out, generated, errs); err != nil {
		t.Fatalf("decodeJobMaps() error = %v", err)
	}
	if out.Generated["twitter"] != job.Generated["twitter"] {
		t.Errorf("Generated = %v", out.Generated)
	}
	if out.Errors["instagram"] != "upstream unavailable" {
		t.Errorf("Errors = %v", out.Errors)
	}
}

func TestJobMaps_Empty(t *testing.T) {
	t.Parallel()

	generated, errs, err := encodeJobMaps(&model.ContentJob{})
	if err != nil {
		t.Fatalf("encodeJobMaps() error = %v", err)
	}
	if string(generated) != "{}" || string(errs) != "{}" {
		t.Errorf("encoded = %s, %s; want {} {}", generated, errs)
	}

	var out model.ContentJob
	if err := decodeJobMaps(&out, generated, errs); err != nil {
		t.Fatalf("decodeJobMaps() error = %v", err)
	}
	if out.Generated == nil {
		t.Error("Generated should be an empty map, not nil")
	}
	if out.Errors != nil {
		t.Errorf("Errors = %v, want nil", out.Errors)
	}
}

func TestNullableString(t *testing.T) {
	t.Parallel()

	if nullableString("") != nil {
		t.Error(`nullableString("") should be nil`)
	}
	if nullableString("x") != "x" {
		t.Error(`nullableString("x") should be "x"`)
	}
}
