package generators

import (
	"context"

	"github.com/google/uuid"
)

// Options tune a single generator run.
type Options struct {
	// Force regenerates every record even when part of the batch already exists.
	Force bool
	// OnPersona is called after each persona has been processed. Generators that
	// fan out may call it from several goroutines.
	OnPersona func(label string)
}

// Report forwards label to OnPersona when set.
func (o Options) Report(label string) {
	if o.OnPersona != nil {
		o.OnPersona(label)
	}
}

// Summary is what a generator reports back to its caller (CLI or cascade).
type Summary struct {
	Kind              string    `json:"kind"`
	CompanyID         uuid.UUID `json:"companyId"`
	CompanyCode       string    `json:"companyCode,omitempty"`
	BatchID           uuid.UUID `json:"batchId"`
	PersonasProcessed int       `json:"personasProcessed"`
	RecordsCreated    int       `json:"recordsCreated"`
	RecordsDeleted    int64     `json:"recordsDeleted"`
	RecordsFailed     int       `json:"recordsFailed"`
	// Fallbacks counts records built from templates or placeholders because an
	// external service failed or was not configured.
	Fallbacks int    `json:"fallbacks"`
	BackupKey string `json:"backupKey,omitempty"`
}

// Generator builds one kind of persona data for a company.
type Generator interface {
	Kind() string
	Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error)
}
