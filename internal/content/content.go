package content

import (
	"embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/personaforge-backend/internal/domain"
)

//go:embed data/*.yaml
var files embed.FS

type Range [2]int

type CountryTable struct {
	Nationality string `yaml:"nationality"`
	Phone       string `yaml:"phone"`
	FirstNames  struct {
		Female []string `yaml:"female"`
		Male   []string `yaml:"male"`
	} `yaml:"first_names"`
	LastNames   []string `yaml:"last_names"`
	HairColors  []string `yaml:"hair_colors"`
	EyeColors   []string `yaml:"eye_colors"`
	Ethnicities []string `yaml:"ethnicities"`
	HeightCm    struct {
		Female Range `yaml:"female"`
		Male   Range `yaml:"male"`
	} `yaml:"height_cm"`
}

type Competencies struct {
	Technical   []string `yaml:"technical"`
	Prospecting []string `yaml:"prospecting"`
	Soft        []string `yaml:"soft"`
	Tools       []string `yaml:"tools"`
}

type TechSpec struct {
	Area        string   `yaml:"area"`
	Stack       []string `yaml:"stack"`
	Tools       []string `yaml:"tools"`
	Platforms   []string `yaml:"platforms"`
	AccessLevel string   `yaml:"access_level"`
}

type Task struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Frequency   string `yaml:"frequency"`
	Priority    string `yaml:"priority"`
}

type Goal struct {
	Title   string `yaml:"title"`
	Metric  string `yaml:"metric"`
	Target  string `yaml:"target"`
	Horizon string `yaml:"horizon"`
}

type Knowledge struct {
	Topic   string   `yaml:"topic"`
	Title   string   `yaml:"title"`
	Content string   `yaml:"content"`
	Tags    []string `yaml:"tags"`
}

type Workflow struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	Trigger     string                `yaml:"trigger"`
	Nodes       []domain.WorkflowNode `yaml:"nodes"`
}

// RoleContent is everything the generators need for one bucket.
type RoleContent struct {
	Summary      string       `yaml:"summary"`
	Biographies  []string     `yaml:"biographies"`
	Competencies Competencies `yaml:"competencies"`
	TechSpec     TechSpec     `yaml:"tech_spec"`
	Tasks        []Task       `yaml:"tasks"`
	Goals        []Goal       `yaml:"goals"`
	Knowledge    []Knowledge  `yaml:"knowledge"`
	Workflows    []Workflow   `yaml:"workflows"`
}

type namesFile struct {
	DefaultCountry string                  `yaml:"default_country"`
	AgeRanges      map[string]Range        `yaml:"age_ranges"`
	Countries      map[string]CountryTable `yaml:"countries"`
}

type rolesFile struct {
	Buckets map[Bucket]RoleContent `yaml:"buckets"`
}

// Library holds the parsed lookup tables. It is read-only after Load.
type Library struct {
	defaultCountry string
	ageRanges      map[string]Range
	countries      map[string]CountryTable
	roles          map[Bucket]RoleContent
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
	defaultErr  error
)

// Default returns the embedded library, parsed once.
func Default() (*Library, error) {
	defaultOnce.Do(func() {
		defaultLib, defaultErr = Load()
	})
	return defaultLib, defaultErr
}

func Load() (*Library, error) {
	var names namesFile
	if err := decode("data/names.yaml", &names); err != nil {
		return nil, err
	}
	var roles rolesFile
	if err := decode("data/roles.yaml", &roles); err != nil {
		return nil, err
	}
	lib := &Library{
		defaultCountry: strings.ToUpper(names.DefaultCountry),
		ageRanges:      names.AgeRanges,
		countries:      make(map[string]CountryTable, len(names.Countries)),
		roles:          roles.Buckets,
	}
	for code, table := range names.Countries {
		lib.countries[strings.ToUpper(code)] = table
	}
	if err := lib.validate(); err != nil {
		return nil, err
	}
	return lib, nil
}

func decode(name string, out any) error {
	raw, err := files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (l *Library) validate() error {
	if _, ok := l.countries[l.defaultCountry]; !ok {
		return fmt.Errorf("default country %q has no name table", l.defaultCountry)
	}
	for code, t := range l.countries {
		if len(t.FirstNames.Female) == 0 || len(t.FirstNames.Male) == 0 || len(t.LastNames) == 0 {
			return fmt.Errorf("country %s: name lists must not be empty", code)
		}
		if len(t.HairColors) == 0 || len(t.EyeColors) == 0 || len(t.Ethnicities) == 0 {
			return fmt.Errorf("country %s: attribute lists must not be empty", code)
		}
	}
	if _, ok := l.roles[BucketSpecialist]; !ok {
		return fmt.Errorf("bucket %s is required as the generic fallback", BucketSpecialist)
	}
	for b, rc := range l.roles {
		if len(rc.Biographies) == 0 || len(rc.Competencies.Technical) == 0 || len(rc.Tasks) == 0 ||
			len(rc.Goals) == 0 || len(rc.Knowledge) == 0 || len(rc.Workflows) == 0 {
			return fmt.Errorf("bucket %s: every content kind needs at least one entry", b)
		}
	}
	return nil
}

// Country returns the table for code, falling back to the default country.
// The returned code is the one actually used.
func (l *Library) Country(code string) (CountryTable, string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if t, ok := l.countries[code]; ok {
		return t, code
	}
	return l.countries[l.defaultCountry], l.defaultCountry
}

func (l *Library) AgeRange(roleKind string) Range {
	if r, ok := l.ageRanges[roleKind]; ok {
		return r
	}
	return Range{25, 55}
}

// Role returns the content for bucket; a bucket without its own table uses the
// generic specialist content. found reports whether bucket had its own table.
func (l *Library) Role(bucket Bucket) (rc RoleContent, found bool) {
	if rc, ok := l.roles[bucket]; ok {
		return rc, true
	}
	return l.roles[BucketSpecialist], false
}

// Vars carries the values substituted into content templates.
type Vars struct {
	First      string
	Full       string
	Role       string
	Company    string
	Industry   string
	Department string
	Years      int
}

// VarsFor builds template variables for a persona of company.
func VarsFor(company *domain.Company, p *domain.Persona) Vars {
	years := p.Age - 22
	if years < 1 {
		years = 1
	}
	industry := company.Industry
	if strings.TrimSpace(industry) == "" {
		industry = "their industry"
	}
	return Vars{
		First:      p.FirstName,
		Full:       p.FullName,
		Role:       p.RoleTitle,
		Company:    company.Name,
		Industry:   industry,
		Department: p.Department,
		Years:      years,
	}
}

// Render substitutes {first} {full} {role} {company} {industry} {department} {years}.
func Render(tmpl string, v Vars) string {
	r := strings.NewReplacer(
		"{first}", v.First,
		"{full}", v.Full,
		"{role}", v.Role,
		"{company}", v.Company,
		"{industry}", v.Industry,
		"{department}", v.Department,
		"{years}", strconv.Itoa(v.Years),
	)
	return r.Replace(tmpl)
}
