package engine

import (
	"errors"
	"testing"
)

func TestExtract(t *testing.T) {
	body := []byte(`{"id":42,"name":"alpha","items":[{"sku":"a-1"},{"sku":"a-2"}],"meta":{"tags":["x","y"]}}`)

	extracted := Extract(body, map[string]string{
		"id":        "id",
		"name":      "name",
		"first_sku": "items.0.sku",
		"tags":      "meta.tags",
		"missing":   "meta.absent",
	})

	if extracted["id"] != "42" {
		t.Errorf("expected id=42, got %q", extracted["id"])
	}
	if extracted["name"] != "alpha" {
		t.Errorf("expected name=alpha, got %q", extracted["name"])
	}
	if extracted["first_sku"] != "a-1" {
		t.Errorf("expected first_sku=a-1, got %q", extracted["first_sku"])
	}
	// Composite values come back as raw JSON
	if extracted["tags"] != `["x","y"]` {
		t.Errorf("expected raw JSON for tags, got %q", extracted["tags"])
	}

	// A miss leaves the key absent, never an empty string
	if _, ok := extracted["missing"]; ok {
		t.Error("missing path should leave the key absent")
	}
}

func TestExtract_UnparseableBody(t *testing.T) {
	extracted := Extract([]byte("plain text"), map[string]string{"id": "id"})
	if extracted != nil {
		t.Errorf("unparseable body should extract nothing, got %v", extracted)
	}
}

func TestExtract_NoRules(t *testing.T) {
	if Extract([]byte(`{"id":1}`), nil) != nil {
		t.Error("nil rules should extract nothing")
	}
}

func TestValidateExtractRules(t *testing.T) {
	// Valid rules
	err := ValidateExtractRules(2, map[string]string{"id": "data.id"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Empty name
	err = ValidateExtractRules(2, map[string]string{"": "data.id"})
	if !errors.Is(err, ErrEmptyExtractKey) {
		t.Errorf("expected ErrEmptyExtractKey, got %v", err)
	}

	// Empty path
	err = ValidateExtractRules(2, map[string]string{"id": ""})
	if !errors.Is(err, ErrEmptyExtractPath) {
		t.Errorf("expected ErrEmptyExtractPath, got %v", err)
	}

	// Error carries the step order
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected ValidationError")
	}
	if verr.StepOrder != 2 {
		t.Errorf("expected step order 2, got %d", verr.StepOrder)
	}
}
