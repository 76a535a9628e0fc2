package generators

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/personaforge-backend/internal/data/repos/store"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

const placeholderAvatarBase = "https://api.dicebear.com/9.x/personas/png?seed="

// PlaceholderAvatarURL is used when no image could be generated. AvatarFiles
// never fetches it; it writes PlaceholderAvatar instead.
func PlaceholderAvatarURL(personaCode string) string {
	return placeholderAvatarBase + url.QueryEscape(personaCode)
}

func isPlaceholderAvatar(imageURL string) bool {
	return strings.HasPrefix(strings.TrimSpace(imageURL), placeholderAvatarBase)
}

// AvatarKey is where a generated avatar is stored in the object store.
func AvatarKey(companyCode, personaCode string) string {
	return fmt.Sprintf("avatars/%s/%s.png", companyCode, personaCode)
}

// AvatarPrompt describes the persona for an image model.
func AvatarPrompt(p *domain.Persona) string {
	var b strings.Builder
	b.WriteString("Professional corporate headshot of a")
	if p.Age > 0 {
		fmt.Fprintf(&b, " %d-year-old", p.Age)
	}
	if p.Ethnicity != "" {
		fmt.Fprintf(&b, " %s", p.Ethnicity)
	}
	if p.Gender != "" {
		fmt.Fprintf(&b, " %s", p.Gender)
	}
	fmt.Fprintf(&b, " %s", strings.TrimSpace(p.RoleTitle))
	var features []string
	if p.HairColor != "" {
		features = append(features, p.HairColor+" hair")
	}
	if p.EyeColor != "" {
		features = append(features, p.EyeColor+" eyes")
	}
	if len(features) > 0 {
		b.WriteString(" with " + strings.Join(features, " and "))
	}
	b.WriteString(". Business attire, neutral studio background, soft lighting, photorealistic.")
	return b.String()
}

// AvatarPrompts writes the image prompt of every persona.
type AvatarPrompts struct {
	deps *Deps
	log  *logger.Logger
}

func NewAvatarPrompts(deps *Deps) *AvatarPrompts {
	return &AvatarPrompts{deps: deps, log: deps.Log.With("generator", string(domain.StageAvatarPrompts))}
}

func (g *AvatarPrompts) Kind() string { return string(domain.StageAvatarPrompts) }

func (g *AvatarPrompts) Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error) {
	scope, err := g.deps.LoadScope(ctx, companyID)
	if err != nil {
		return Summary{Kind: g.Kind(), CompanyID: companyID}, err
	}
	sum := scope.summary(g.Kind())

	rows := make([]*domain.PersonaAvatar, 0, len(scope.Personas))
	for _, p := range scope.Personas {
		row := &domain.PersonaAvatar{Prompt: AvatarPrompt(p)}
		row.Stamp(scope.Company, p, scope.BatchID, scope.At)
		rows = append(rows, row)
		opts.Report(p.Label())
	}
	if err := replace(g.deps, g.log, dbctx.Background(ctx), g.deps.Repos.Avatars, scope, rows, &sum); err != nil {
		return sum, err
	}
	sum.BackupKey = g.deps.backup(ctx, g.log, g.Kind(), scope, rows)
	return sum, nil
}

// avatarTargets loads the avatar rows of active personas where need is set.
// Without force only the rows for which missing reports true are returned.
func (d *Deps) avatarTargets(ctx context.Context, scope *Scope, force bool, need string, missing func(*domain.PersonaAvatar) bool) ([]*domain.PersonaAvatar, error) {
	filter := store.Filter{"company_id": scope.Company.ID}
	var conds []store.Cond
	if need != "" {
		conds = append(conds, store.NonEmpty(need))
	}
	rows, err := d.Repos.Avatars.Find(dbctx.Background(ctx), filter, conds...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		what := "avatar prompts"
		if need != "prompt" {
			what = "avatar images"
		}
		return nil, &domain.NoDataError{What: what, CompanyID: scope.Company.ID}
	}
	active := personaCodes(scope)
	out := make([]*domain.PersonaAvatar, 0, len(rows))
	for _, r := range rows {
		if _, ok := active[r.PersonaID]; !ok {
			continue
		}
		if force || missing(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// AvatarImages turns prompts into images stored in the object store.
type AvatarImages struct {
	deps *Deps
	log  *logger.Logger
}

func NewAvatarImages(deps *Deps) *AvatarImages {
	return &AvatarImages{deps: deps, log: deps.Log.With("generator", string(domain.StageAvatarImages))}
}

func (g *AvatarImages) Kind() string { return string(domain.StageAvatarImages) }

func (g *AvatarImages) Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error) {
	scope, err := g.deps.LoadScope(ctx, companyID)
	if err != nil {
		return Summary{Kind: g.Kind(), CompanyID: companyID}, err
	}
	sum := scope.summary(g.Kind())
	targets, err := g.deps.avatarTargets(ctx, scope, opts.Force, "prompt", func(a *domain.PersonaAvatar) bool {
		return strings.TrimSpace(a.ImageURL) == ""
	})
	if err != nil {
		return sum, err
	}
	if len(targets) == 0 {
		g.log.Info("Every avatar already has an image", "company", scope.Company.Code)
		return sum, nil
	}

	codes := personaCodes(scope)
	placeholders := make([]bool, len(targets))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.deps.concurrency())
	for i, row := range targets {
		eg.Go(func() error {
			code := codes[row.PersonaID]
			imageURL, err := g.render(egctx, scope.Company.Code, code, row.Prompt)
			if err != nil {
				if ctxErr := egctx.Err(); ctxErr != nil {
					return ctxErr
				}
				g.log.Warn("Avatar image failed, using placeholder", "persona", code, "error", err)
				imageURL = PlaceholderAvatarURL(code)
				placeholders[i] = true
			}
			row.ImageURL = imageURL
			row.LocalPath = ""
			row.GeneratedAt = scope.At
			opts.Report(row.PersonaName)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return sum, err
	}
	for _, p := range placeholders {
		if p {
			sum.Fallbacks++
		}
	}
	if err := g.deps.Repos.Avatars.Upsert(dbctx.Background(ctx), targets); err != nil {
		return sum, err
	}
	sum.RecordsCreated = len(targets)
	if g.deps.Metrics != nil {
		g.deps.Metrics.ObserveRecords(g.Kind(), len(targets), 0)
	}
	return sum, nil
}

var errNoImageBackend = errors.New("image generation is not configured")

func (g *AvatarImages) render(ctx context.Context, companyCode, personaCode, prompt string) (string, error) {
	if g.deps.Images == nil || g.deps.Objects == nil {
		return "", errNoImageBackend
	}
	img, err := g.deps.Images.GenerateImage(ctx, prompt)
	if err != nil {
		return "", &domain.ExternalServiceError{Service: "openai", Err: err}
	}
	contentType := img.MimeType
	if contentType == "" {
		contentType = "image/png"
	}
	obj, err := g.deps.Objects.Put(ctx, AvatarKey(companyCode, personaCode), contentType, bytes.NewReader(img.Bytes))
	if err != nil {
		return "", err
	}
	return obj.URL, nil
}

// AvatarFiles downloads avatar images into the local media directory.
type AvatarFiles struct {
	deps *Deps
	log  *logger.Logger
}

func NewAvatarFiles(deps *Deps) *AvatarFiles {
	return &AvatarFiles{deps: deps, log: deps.Log.With("generator", string(domain.StageAvatarFiles))}
}

func (g *AvatarFiles) Kind() string { return string(domain.StageAvatarFiles) }

func (g *AvatarFiles) Generate(ctx context.Context, companyID uuid.UUID, opts Options) (Summary, error) {
	scope, err := g.deps.LoadScope(ctx, companyID)
	if err != nil {
		return Summary{Kind: g.Kind(), CompanyID: companyID}, err
	}
	sum := scope.summary(g.Kind())
	if strings.TrimSpace(g.deps.MediaDir) == "" {
		return sum, &domain.ConfigurationError{Problems: []string{"MEDIA_DIR is required for avatar files"}}
	}
	targets, err := g.deps.avatarTargets(ctx, scope, opts.Force, "image_url", func(a *domain.PersonaAvatar) bool {
		return strings.TrimSpace(a.LocalPath) == ""
	})
	if err != nil {
		return sum, err
	}
	if len(targets) == 0 {
		g.log.Info("Every avatar already has a local file", "company", scope.Company.Code)
		return sum, nil
	}

	codes := personaCodes(scope)
	fallback := make([]bool, len(targets))
	failed := make([]error, len(targets))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.deps.concurrency())
	for i, row := range targets {
		eg.Go(func() error {
			code := codes[row.PersonaID]
			dest := filepath.Join(g.deps.MediaDir, "avatars", scope.Company.Code, code+".png")
			if isPlaceholderAvatar(row.ImageURL) {
				fallback[i] = true
			} else if err := g.download(egctx, row.ImageURL, dest); err != nil {
				if ctxErr := egctx.Err(); ctxErr != nil {
					return ctxErr
				}
				g.log.Warn("Avatar download failed, writing placeholder", "persona", code, "url", row.ImageURL, "error", err)
				fallback[i] = true
			}
			if fallback[i] {
				if err := writePlaceholderAvatar(code, dest); err != nil {
					g.log.Warn("Avatar placeholder write failed", "persona", code, "path", dest, "error", err)
					failed[i] = err
					return nil
				}
			}
			row.LocalPath = dest
			opts.Report(row.PersonaName)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return sum, err
	}

	written := make([]*domain.PersonaAvatar, 0, len(targets))
	var failures []domain.RowFailure
	for i, row := range targets {
		if failed[i] != nil {
			failures = append(failures, domain.RowFailure{Index: i, Err: failed[i]})
			continue
		}
		if fallback[i] {
			sum.Fallbacks++
		}
		written = append(written, row)
	}
	sum.RecordsFailed = len(failures)
	if len(written) == 0 {
		return sum, &domain.PartialWriteError{Collection: "avatar files", Attempted: len(targets), Failed: failures}
	}
	if err := g.deps.Repos.Avatars.Upsert(dbctx.Background(ctx), written); err != nil {
		return sum, err
	}
	sum.RecordsCreated = len(written)
	if g.deps.Metrics != nil {
		g.deps.Metrics.ObserveRecords(g.Kind(), len(written), sum.RecordsFailed)
	}
	return sum, nil
}

func (g *AvatarFiles) download(ctx context.Context, rawURL, dest string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	var body io.ReadCloser
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		resp, err := g.deps.httpClient().Do(req)
		if err != nil {
			return &domain.ExternalServiceError{Service: u.Host, Err: err}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return &domain.ExternalServiceError{Service: u.Host, Err: fmt.Errorf("download status %d", resp.StatusCode)}
		}
		body = resp.Body
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return err
		}
		body = f
	default:
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	defer body.Close()
	return writeFileAtomic(dest, body)
}

func writeFileAtomic(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".avatar-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dest)
}

const placeholderAvatarSize = 128

// PlaceholderAvatar renders the local stand-in for a persona's avatar: two
// nested squares colored from a hash of the persona code. The same code always
// yields the same bytes.
func PlaceholderAvatar(personaCode string) ([]byte, error) {
	h := sha256.Sum256([]byte(personaCode))
	img := image.NewRGBA(image.Rect(0, 0, placeholderAvatarSize, placeholderAvatarSize))
	outer := color.RGBA{R: h[0], G: h[1], B: h[2], A: 0xff}
	inner := color.RGBA{R: h[3] | 0x80, G: h[4] | 0x80, B: h[5] | 0x80, A: 0xff}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: outer}, image.Point{}, draw.Src)
	q := placeholderAvatarSize / 4
	draw.Draw(img, image.Rect(q, q, placeholderAvatarSize-q, placeholderAvatarSize-q), &image.Uniform{C: inner}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePlaceholderAvatar(personaCode, dest string) error {
	raw, err := PlaceholderAvatar(personaCode)
	if err != nil {
		return err
	}
	return writeFileAtomic(dest, bytes.NewReader(raw))
}

func personaCodes(scope *Scope) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(scope.Personas))
	for _, p := range scope.Personas {
		out[p.ID] = p.Code
	}
	return out
}
