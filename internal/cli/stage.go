package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/jobs/cascade"
	"github.com/yungbote/personaforge-backend/internal/modules/generators"
)

// StageCmd runs a single generator, the contract the process executor relies on.
type StageCmd struct {
	EmpresaID string `name:"empresaId" aliases:"empresa-id" required:"" help:"Company UUID"`
	Force     bool   `help:"Replace existing records instead of skipping"`
	JSON      bool   `name:"json" help:"Emit NDJSON events instead of text"`
}

func (s *StageCmd) Run(kctx *kong.Context, rt *Runtime) error {
	stage, err := domain.ParseStageID(kctx.Selected().Name)
	if err != nil {
		return err
	}
	companyID, err := uuid.Parse(strings.TrimSpace(s.EmpresaID))
	if err != nil {
		return fmt.Errorf("--empresaId must be a UUID: %w", err)
	}

	var events *eventWriter
	if s.JSON {
		events = newEventWriter(rt.Out)
	}
	fail := func(err error) error {
		if events != nil {
			events.emit(cascade.Event{Event: cascade.EventError, Message: err.Error()})
		}
		return err
	}

	svc, err := rt.Services()
	if err != nil {
		return fail(err)
	}
	gen, ok := svc.Generators.Get(string(stage))
	if !ok {
		return fail(&domain.UnknownStageError{Stage: string(stage)})
	}

	opts := generators.Options{Force: s.Force}
	if events != nil {
		opts.OnPersona = func(label string) {
			events.emit(cascade.Event{Event: cascade.EventPersona, Label: label})
		}
	}
	sum, err := gen.Generate(rt.context(), companyID, opts)
	if err != nil {
		return fail(err)
	}
	if events != nil {
		events.emit(cascade.Event{Event: cascade.EventSummary, Summary: &sum})
		return nil
	}
	printSummary(rt, sum)
	return nil
}

func printSummary(rt *Runtime, sum generators.Summary) {
	fmt.Fprintf(rt.Out, "%s for %s: %d personas, %d created, %d replaced, %d failed",
		sum.Kind, sum.CompanyCode, sum.PersonasProcessed, sum.RecordsCreated, sum.RecordsDeleted, sum.RecordsFailed)
	if sum.Fallbacks > 0 {
		fmt.Fprintf(rt.Out, ", %d fallbacks", sum.Fallbacks)
	}
	fmt.Fprintln(rt.Out)
	if sum.BackupKey != "" {
		fmt.Fprintf(rt.Out, "backup: %s\n", sum.BackupKey)
	}
}
