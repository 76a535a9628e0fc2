package cli

import (
	"encoding/json"
	"fmt"

	"github.com/yungbote/personaforge-backend/internal/jobs/cascade"
)

type StagesCmd struct {
	JSON bool `name:"json" help:"Print the catalogue as JSON"`
}

func (s *StagesCmd) Run(rt *Runtime) error {
	cat := cascade.Catalogue()
	if s.JSON {
		return json.NewEncoder(rt.Out).Encode(cat)
	}
	for _, st := range cat {
		fmt.Fprintf(rt.Out, "%2d. %-15s %s\n", st.Order, st.ID, st.Description)
	}
	return nil
}
