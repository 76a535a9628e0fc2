package generators

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/data/repos"
	"github.com/yungbote/personaforge-backend/internal/data/repos/store"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
	"github.com/yungbote/personaforge-backend/internal/platform/objectstore"
	"github.com/yungbote/personaforge-backend/internal/platform/openai"
)

const defaultConcurrency = 4

// RecordObserver receives per-kind write outcomes (Prometheus in production).
type RecordObserver interface {
	ObserveRecords(kind string, created int, failed int)
}

// Deps is shared by every generator.
type Deps struct {
	Log     *logger.Logger
	Repos   *repos.Set
	Content *content.Library

	// Text and Images are optional; without them generators use templates and placeholders.
	Text   openai.TextGenerator
	Images openai.ImageGenerator

	// Objects stores batch backups and generated avatars. Optional.
	Objects objectstore.Store
	Backups bool

	Concurrency int
	HTTPClient  *http.Client
	MediaDir    string

	Metrics RecordObserver
	Now     func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Deps) concurrency() int {
	if d.Concurrency > 0 {
		return d.Concurrency
	}
	return defaultConcurrency
}

func (d *Deps) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// Scope is the company and personas one generator run works on.
type Scope struct {
	Company  *domain.Company
	Personas []*domain.Persona
	BatchID  uuid.UUID
	At       time.Time
}

// LoadScope loads the company and its active personas. Nothing is written
// when either is missing.
func (d *Deps) LoadScope(ctx context.Context, companyID uuid.UUID) (*Scope, error) {
	dbc := dbctx.Background(ctx)
	company, err := d.Repos.Companies.GetByID(dbc, companyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return nil, &domain.NotFoundError{Entity: "company", Key: companyID.String()}
	}
	personas, err := d.Repos.Personas.ListActiveByCompany(dbc, companyID)
	if err != nil {
		return nil, fmt.Errorf("load personas: %w", err)
	}
	if len(personas) == 0 {
		return nil, &domain.NoDataError{What: "active personas", CompanyID: companyID}
	}
	return &Scope{
		Company:  company,
		Personas: personas,
		BatchID:  uuid.New(),
		At:       d.now(),
	}, nil
}

func (s *Scope) summary(kind string) Summary {
	return Summary{
		Kind:              kind,
		CompanyID:         s.Company.ID,
		CompanyCode:       s.Company.Code,
		BatchID:           s.BatchID,
		PersonasProcessed: len(s.Personas),
	}
}

// bucketFor resolves the persona's bucket and warns when the fallback is used.
func (d *Deps) bucketFor(log *logger.Logger, p *domain.Persona, fallback content.Bucket) (content.Bucket, content.RoleContent) {
	bucket, matched := content.ResolveBucket(p.RoleTitle, fallback)
	if !matched {
		log.Warn("Role did not match any bucket, using fallback",
			"persona", p.Code, "role", p.RoleTitle, "bucket", bucket)
	}
	rc, found := d.Content.Role(bucket)
	if !found {
		log.Warn("Bucket has no content table, using specialist content", "bucket", bucket)
	}
	return bucket, rc
}

// replace swaps the company's batch of one record kind and folds the outcome
// into sum. A partial write is logged and reported through the counts only.
func replace[T any](d *Deps, log *logger.Logger, dbc dbctx.Context, table *store.Table[T], scope *Scope, rows []*T, sum *Summary) error {
	res, err := table.Replace(dbc, store.Filter{"company_id": scope.Company.ID}, rows)
	var pw *domain.PartialWriteError
	switch {
	case err == nil:
	case errors.As(err, &pw):
		log.Warn("Some records could not be written", "table", table.Name(), "failed", len(pw.Failed), "attempted", pw.Attempted)
	default:
		return fmt.Errorf("replace %s: %w", table.Name(), err)
	}
	sum.RecordsCreated += len(res.Inserted)
	sum.RecordsDeleted += res.Deleted
	sum.RecordsFailed += res.Failed
	if d.Metrics != nil {
		d.Metrics.ObserveRecords(sum.Kind, len(res.Inserted), res.Failed)
	}
	return nil
}

type backupDocument struct {
	Kind        string    `json:"kind"`
	CompanyID   uuid.UUID `json:"companyId"`
	CompanyCode string    `json:"companyCode"`
	BatchID     uuid.UUID `json:"batchId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Records     any       `json:"records"`
}

// BackupKey is backups/<kind>/<company-code>/<timestamp>.json.
func BackupKey(kind string, companyCode string, at time.Time) string {
	return fmt.Sprintf("backups/%s/%s/%s.json", kind, companyCode, at.UTC().Format("20060102T150405Z"))
}

// backup writes the batch as JSON. Failures are logged; backups never fail a run.
func (d *Deps) backup(ctx context.Context, log *logger.Logger, kind string, scope *Scope, records any) string {
	if !d.Backups || d.Objects == nil {
		return ""
	}
	doc := backupDocument{
		Kind:        kind,
		CompanyID:   scope.Company.ID,
		CompanyCode: scope.Company.Code,
		BatchID:     scope.BatchID,
		GeneratedAt: scope.At,
		Records:     records,
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Warn("Backup encoding failed", "kind", kind, "error", err)
		return ""
	}
	key := BackupKey(kind, scope.Company.Code, scope.At)
	if _, err := d.Objects.Put(ctx, key, "application/json", bytes.NewReader(raw)); err != nil {
		log.Warn("Backup upload failed", "kind", kind, "key", key, "error", err)
		return ""
	}
	return key
}

// pickIndex deterministically selects one of n options for a persona.
func pickIndex(seed string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return int(h.Sum32() % uint32(n))
}

func capList(values []string, max int) []string {
	if max > 0 && len(values) > max {
		return values[:max]
	}
	return values
}

// dedupe keeps the first occurrence of each value, ignoring case.
func dedupe(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, v := range list {
			key := normalizeKey(v)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}
