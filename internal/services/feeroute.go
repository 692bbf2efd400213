package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// The fee-type -> system-tenant mapping is provider-specific and
// incomplete by nature, so it is external configuration rather than
// code. The file is validated against this schema before use.
const feeRouteSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["routes"],
	"properties": {
		"routes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["fee_type", "tenant_id"],
				"properties": {
					"fee_type": {"type": "string", "minLength": 1},
					"tenant_id": {"type": "integer", "minimum": 1}
				}
			}
		},
		"credit_fee_types": {
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		}
	}
}`

// FeeRoutes routes unscoped ("Default" reference) transactions by
// fee-type label: fixed labels map unconditionally to system
// tenants, while credit labels fall through to the generic lookup
// cascade.
type FeeRoutes struct {
	fixed   map[string]int64
	credits map[string]struct{}
}

// Route returns the system tenant for a fee type, if one is
// configured.
func (f *FeeRoutes) Route(feeType string) (int64, bool) {
	id, ok := f.fixed[normalizeFeeType(feeType)]
	return id, ok
}

// Credit reports whether the fee type is a generic credit label that
// cascades through the shipment, return and receiving-order indexes.
func (f *FeeRoutes) Credit(feeType string) bool {
	_, ok := f.credits[normalizeFeeType(feeType)]
	return ok
}

func normalizeFeeType(feeType string) string {
	return strings.ToLower(strings.TrimSpace(feeType))
}

// DefaultFeeRoutes ships with no fixed routes and the plain credit
// label. Real deployments provide their own validated file covering
// the provider's fee taxonomy.
func DefaultFeeRoutes() *FeeRoutes {
	return &FeeRoutes{
		fixed:   map[string]int64{},
		credits: map[string]struct{}{"credit": {}},
	}
}

type feeRouteFile struct {
	Routes []struct {
		FeeType  string `json:"fee_type"`
		TenantID int64  `json:"tenant_id"`
	} `json:"routes"`
	CreditFeeTypes []string `json:"credit_fee_types"`
}

// LoadFeeRoutes reads and validates a fee routing config file.
func LoadFeeRoutes(path string) (*FeeRoutes, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load fee routes: read %q: %w", path, err)
	}
	return ParseFeeRoutes(raw)
}

// ParseFeeRoutes validates raw JSON against the fee-route schema and
// builds the routing table.
func ParseFeeRoutes(raw []byte) (*FeeRoutes, error) {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(feeRouteSchema))
	if err != nil {
		return nil, fmt.Errorf("parse fee routes: load schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fee_routes.schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("parse fee routes: add schema resource: %w", err)
	}
	schema, err := compiler.Compile("fee_routes.schema.json")
	if err != nil {
		return nil, fmt.Errorf("parse fee routes: compile schema: %w", err)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse fee routes: parse json: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("parse fee routes: validate: %w", err)
	}

	var file feeRouteFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse fee routes: decode: %w", err)
	}

	routes := &FeeRoutes{
		fixed:   make(map[string]int64, len(file.Routes)),
		credits: make(map[string]struct{}, len(file.CreditFeeTypes)),
	}
	for _, r := range file.Routes {
		routes.fixed[normalizeFeeType(r.FeeType)] = r.TenantID
	}
	for _, c := range file.CreditFeeTypes {
		routes.credits[normalizeFeeType(c)] = struct{}{}
	}
	return routes, nil
}
