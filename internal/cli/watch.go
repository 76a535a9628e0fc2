package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/jobs/progress"
	"github.com/yungbote/personaforge-backend/internal/platform/httpx"
)

type WatchCmd struct {
	RunID    string        `name:"run-id" required:"" help:"Cascade run id returned by POST /api/cascade"`
	APIURL   string        `name:"api-url" env:"PERSONAFORGE_API_URL" default:"http://localhost:8080" help:"Base URL of the API server"`
	Interval time.Duration `default:"2s" help:"Polling interval"`
}

type runEnvelope struct {
	Progress *progress.Snapshot `json:"progress"`
}

func (w *WatchCmd) Run(rt *Runtime) error {
	runID, err := uuid.Parse(strings.TrimSpace(w.RunID))
	if err != nil {
		return fmt.Errorf("--run-id must be a UUID: %w", err)
	}
	endpoint, err := url.JoinPath(w.APIURL, "api", "cascade", "runs", runID.String())
	if err != nil {
		return fmt.Errorf("invalid --api-url: %w", err)
	}
	client := rt.httpClient()

	fetch := func(ctx context.Context) (*progress.Snapshot, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &httpx.StatusError{Service: "personaforge-api", StatusCode: resp.StatusCode, Body: resp.Status}
		}
		var env runEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		return env.Progress, nil
	}

	var last string
	final, err := progress.Poll(rt.context(), fetch, w.Interval, func(s progress.Snapshot) {
		line := fmt.Sprintf("[%d/%d] %s %s", s.CurrentStepIndex, s.TotalSteps, s.Status, s.CurrentStage)
		if s.CurrentPersonaLabel != "" {
			line += " · " + s.CurrentPersonaLabel
		}
		if line != last {
			fmt.Fprintln(rt.Out, line)
			last = line
		}
	})
	if err != nil {
		return err
	}
	if final.Status != domain.RunStatusCompleted {
		if final.Error != "" {
			return fmt.Errorf("run %s: %s", final.Status, final.Error)
		}
		return fmt.Errorf("run %s", final.Status)
	}
	return nil
}
