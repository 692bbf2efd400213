package services

import "testing"

func TestParseFeeRoutes(t *testing.T) {
	raw := []byte(`{
		"routes": [
			{"fee_type": "Postage Correction", "tenant_id": 900},
			{"fee_type": "storage-overage", "tenant_id": 901}
		],
		"credit_fee_types": ["Credit", "goodwill credit"]
	}`)

	routes, err := ParseFeeRoutes(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Lookups are case- and whitespace-insensitive.
	if id, ok := routes.Route("  postage correction "); !ok || id != 900 {
		t.Fatalf("route = %d ok=%t, want 900", id, ok)
	}
	if !routes.Credit("GOODWILL CREDIT") {
		t.Fatal("goodwill credit should be a credit label")
	}
	if routes.Credit("postage correction") {
		t.Fatal("a fixed route label is not a credit label")
	}
	if _, ok := routes.Route("unknown fee"); ok {
		t.Fatal("unknown fee type should not route")
	}
}

func TestParseFeeRoutesRejectsInvalid(t *testing.T) {
	cases := []string{
		`{}`,
		`{"routes": [{"fee_type": "", "tenant_id": 1}]}`,
		`{"routes": [{"fee_type": "x", "tenant_id": 0}]}`,
		`{"routes": [{"fee_type": "x"}]}`,
		`not json`,
	}
	for _, raw := range cases {
		if _, err := ParseFeeRoutes([]byte(raw)); err == nil {
			t.Errorf("ParseFeeRoutes(%q) accepted invalid input", raw)
		}
	}
}

func TestDefaultFeeRoutes(t *testing.T) {
	routes := DefaultFeeRoutes()
	if !routes.Credit("Credit") {
		t.Fatal("default routes should treat Credit as a credit label")
	}
	if _, ok := routes.Route("anything"); ok {
		t.Fatal("default routes should have no fixed routes")
	}
}
