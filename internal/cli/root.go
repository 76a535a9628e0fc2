package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/alecthomas/kong"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/jobs/cascade"
	"github.com/yungbote/personaforge-backend/internal/modules/generators"
)

// CLI is the persona-generate command tree. Every stage is its own subcommand.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`

	Personas      StageCmd `cmd:"" name:"personas" help:"Synthesize the company roster"`
	Biographies   StageCmd `cmd:"" name:"biographies" help:"Generate persona biographies"`
	Competencies  StageCmd `cmd:"" name:"competencies" help:"Generate persona competencies"`
	TechSpecs     StageCmd `cmd:"" name:"tech_specs" help:"Generate persona tech specs"`
	TasksGoals    StageCmd `cmd:"" name:"tasks_goals" help:"Generate persona tasks and goals"`
	Knowledge     StageCmd `cmd:"" name:"knowledge" help:"Generate RAG knowledge snippets"`
	Workflows     StageCmd `cmd:"" name:"workflows" help:"Generate N8N workflow descriptions"`
	AvatarPrompts StageCmd `cmd:"" name:"avatar_prompts" help:"Build avatar image prompts"`
	AvatarImages  StageCmd `cmd:"" name:"avatar_images" help:"Render avatar images into object storage"`
	AvatarFiles   StageCmd `cmd:"" name:"avatar_files" help:"Download avatar images into the media directory"`
	Audit         StageCmd `cmd:"" name:"audit" help:"Run presence checks over generated records"`

	Cascade CascadeCmd `cmd:"cascade" help:"Run the cascade for a company in this process"`
	Watch   WatchCmd   `cmd:"watch" help:"Follow the progress of a cascade run through the HTTP API"`
	Stages  StagesCmd  `cmd:"stages" help:"List the stages in execution order"`
}

// GeneratorSource is implemented by *generators.Registry.
type GeneratorSource interface {
	Get(kind string) (generators.Generator, bool)
}

type CascadeRunner interface {
	Run(ctx context.Context, req cascade.Request) (cascade.Summary, error)
}

type CompanyLookup interface {
	Get(ctx context.Context, code string) (*domain.Company, error)
}

// Services are the database-backed dependencies, opened only by commands
// that need them.
type Services struct {
	Generators GeneratorSource
	Engine     CascadeRunner
	Companies  CompanyLookup
}

// Runtime is bound into every command's Run method.
type Runtime struct {
	Ctx        context.Context
	Out        io.Writer
	HTTPClient *http.Client
	Open       func(ctx context.Context) (*Services, error)

	once     sync.Once
	services *Services
	openErr  error
}

func (rt *Runtime) context() context.Context {
	if rt.Ctx == nil {
		return context.Background()
	}
	return rt.Ctx
}

func (rt *Runtime) Services() (*Services, error) {
	rt.once.Do(func() {
		if rt.Open == nil {
			rt.openErr = errors.New("no service factory configured")
			return
		}
		rt.services, rt.openErr = rt.Open(rt.context())
	})
	return rt.services, rt.openErr
}

func (rt *Runtime) httpClient() *http.Client {
	if rt.HTTPClient != nil {
		return rt.HTTPClient
	}
	return http.DefaultClient
}

// eventWriter serialises NDJSON events; generators report personas concurrently.
type eventWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newEventWriter(w io.Writer) *eventWriter {
	return &eventWriter{enc: json.NewEncoder(w)}
}

func (w *eventWriter) emit(ev cascade.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.enc.Encode(ev)
}

// Parser builds the kong parser used by cmd/generate; tests call it directly.
func Parser(cli *CLI, rt *Runtime, options ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("persona-generate"),
		kong.Description("Generate persona data for a company, one stage at a time."),
		kong.UsageOnError(),
		kong.Bind(rt),
		kong.Vars{"version": "persona-generate dev"},
	}
	return kong.New(cli, append(base, options...)...)
}
