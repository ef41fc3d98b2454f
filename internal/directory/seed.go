package directory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/csv-invoice-validator/internal/types"
)

// Seed is the YAML document loaded by the seed command.
//
// EXAMPLE:
//
//	issuers:
//	  - tax_id: B12345674
//	    name: Issuer SL
//	customers:
//	  - tax_id: A00000000
//	    name: Acme SL
//	    accounting_service: AS01
//	    management_unit: MU01
//	    processing_unit: PU01
type Seed struct {
	Issuers   []SeedIssuer   `yaml:"issuers"`
	Customers []SeedCustomer `yaml:"customers"`
}

// SeedIssuer is one issuer entry of a seed file.
type SeedIssuer struct {
	TaxID string `yaml:"tax_id"`
	Name  string `yaml:"name"`
}

// SeedCustomer is one customer entry of a seed file.
type SeedCustomer struct {
	TaxID             string `yaml:"tax_id"`
	Name              string `yaml:"name"`
	AccountingService string `yaml:"accounting_service"`
	ManagementUnit    string `yaml:"management_unit"`
	ProcessingUnit    string `yaml:"processing_unit"`
}

// SeedResult counts what a seed run stored.
type SeedResult struct {
	Issuers   int
	Customers int
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// ApplySeed registers every issuer and customer of seed. Entries that
// already exist are left untouched, so a seed can be applied repeatedly.
func (d *Directory) ApplySeed(ctx context.Context, seed *Seed) (SeedResult, error) {
	var result SeedResult

	for _, issuer := range seed.Issuers {
		if _, err := d.RegisterIssuer(ctx, issuer.TaxID, issuer.Name); err != nil {
			return result, err
		}
		result.Issuers++
	}

	for _, c := range seed.Customers {
		_, err := d.CreateCustomer(ctx, types.CustomerFields{
			TaxID:             c.TaxID,
			Name:              c.Name,
			AccountingService: c.AccountingService,
			ManagementUnit:    c.ManagementUnit,
			ProcessingUnit:    c.ProcessingUnit,
		})
		if err != nil {
			return result, fmt.Errorf("seed customer %s: %w", c.TaxID, err)
		}
		result.Customers++
	}

	return result, nil
}
