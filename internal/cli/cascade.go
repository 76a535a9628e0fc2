package cli

import (
	"encoding/json"
	"fmt"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/jobs/cascade"
)

type CascadeCmd struct {
	EmpresaCodigo string `name:"empresa-codigo" required:"" help:"Company code, e.g. ACME"`
	Stage         string `help:"Run only this stage instead of the whole cascade"`
	Force         bool   `help:"Regenerate every stage even when its data exists"`
	JSON          bool   `name:"json" help:"Print the run summary as JSON"`
}

func (c *CascadeCmd) Run(rt *Runtime) error {
	svc, err := rt.Services()
	if err != nil {
		return err
	}
	ctx := rt.context()
	company, err := svc.Companies.Get(ctx, c.EmpresaCodigo)
	if err != nil {
		return err
	}
	req := cascade.Request{CompanyID: company.ID, ForceMode: c.Force, ExecuteAll: c.Stage == ""}
	if c.Stage != "" {
		stage, err := domain.ParseStageID(c.Stage)
		if err != nil {
			return err
		}
		req.StageID = stage
	}
	sum, err := svc.Engine.Run(ctx, req)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(rt.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(rt.Out, "run %s (%s) for %s\n", sum.RunID, sum.Mode, sum.CompanyCode)
		for i, r := range sum.Results {
			mark := "ok"
			switch {
			case r.Skipped:
				mark = "skipped"
			case !r.Success:
				mark = "FAILED"
			}
			fmt.Fprintf(rt.Out, "  %2d. %-15s %-8s %6dms", i+1, r.StageID, mark, r.DurationMs)
			if r.ErrorMessage != "" {
				fmt.Fprintf(rt.Out, "  %s", r.ErrorMessage)
			}
			fmt.Fprintln(rt.Out)
		}
		fmt.Fprintf(rt.Out, "status: %s in %dms\n", sum.Status, sum.TotalDurationMs)
	}
	if !sum.Success {
		return fmt.Errorf("cascade %s", sum.Status)
	}
	return nil
}
