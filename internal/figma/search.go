package figma

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ternarybob/figsearch/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	searchPathPrefix = "/api/search/"

	// maxProjectThumbnails caps the recent-file previews shown for a project.
	maxProjectThumbnails = 3
)

// ResourceKind is one of the entity categories the search endpoint returns.
type ResourceKind int

const (
	KindFile ResourceKind = iota
	KindProject
	KindTeam
)

// ResourceKinds lists every kind in result order.
var ResourceKinds = []ResourceKind{KindFile, KindProject, KindTeam}

// Path returns the wire name of the kind's search endpoint.
func (k ResourceKind) Path() string {
	switch k {
	case KindFile:
		return "fig_files"
	case KindProject:
		return "folders"
	case KindTeam:
		return "teams"
	default:
		return ""
	}
}

func (k ResourceKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindProject:
		return "project"
	case KindTeam:
		return "team"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// searchParams builds the query string shared by all kinds.
func searchParams(org int64, query string) url.Values {
	params := url.Values{}
	params.Set("desc", "false")
	params.Set("org_id", strconv.FormatInt(org, 10))
	params.Set("query", query)
	params.Set("sort", "relevancy")
	return params
}

// Search queries every resource kind concurrently through one session and
// returns the normalized results, files first, then projects, then teams.
// A failure in any kind fails the whole call.
func Search(ctx context.Context, s *Session, org int64, query string) ([]models.SearchResult, error) {
	perKind := make([][]models.SearchResult, len(ResourceKinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range ResourceKinds {
		g.Go(func() error {
			results, err := SearchKind(gctx, s, org, kind, query)
			if err != nil {
				return fmt.Errorf("%s search failed: %w", kind, err)
			}
			perKind[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []models.SearchResult
	for _, r := range perKind {
		results = append(results, r...)
	}
	return results, nil
}

// SearchKind queries a single resource kind and normalizes its results in backend order.
func SearchKind(ctx context.Context, s *Session, org int64, kind ResourceKind, query string) ([]models.SearchResult, error) {
	params := searchParams(org, query)

	switch kind {
	case KindFile:
		files, err := fetchResults[File](ctx, s, kind, params)
		if err != nil {
			return nil, err
		}
		return normalizeAll(ctx, files, func(ctx context.Context, f File) (models.SearchResult, error) {
			return normalizeFile(ctx, s, f)
		})
	case KindProject:
		projects, err := fetchResults[Project](ctx, s, kind, params)
		if err != nil {
			return nil, err
		}
		return normalizeAll(ctx, projects, func(ctx context.Context, p Project) (models.SearchResult, error) {
			return normalizeProject(ctx, s, org, p)
		})
	case KindTeam:
		teams, err := fetchResults[Team](ctx, s, kind, params)
		if err != nil {
			return nil, err
		}
		results := make([]models.SearchResult, len(teams))
		for i, t := range teams {
			results[i] = normalizeTeam(s, org, t)
		}
		return results, nil
	default:
		return nil, fmt.Errorf("unsupported resource kind: %s", kind)
	}
}

func fetchResults[T any](ctx context.Context, s *Session, kind ResourceKind, params url.Values) ([]T, error) {
	var envelope searchEnvelope[T]
	if err := s.Get(ctx, searchPathPrefix+kind.Path(), params, &envelope); err != nil {
		return nil, err
	}
	return envelope.Meta.Results, nil
}

// normalizeAll runs normalize over items concurrently, keeping input order.
func normalizeAll[T any](ctx context.Context, items []T, normalize func(context.Context, T) (models.SearchResult, error)) ([]models.SearchResult, error) {
	results := make([]models.SearchResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			r, err := normalize(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func normalizeFile(ctx context.Context, s *Session, f File) (models.SearchResult, error) {
	snippet := "File created by " + f.Creator.Handle
	if f.ThumbnailURL != "" {
		thumb, err := s.Thumbnail(ctx, f.URL, f.ThumbnailURL)
		if err != nil {
			return models.SearchResult{}, err
		}
		snippet += "<br>" + thumb
	}

	return models.SearchResult{
		Title:   f.Name,
		URL:     f.URL,
		Snippet: snippet,
	}, nil
}

func normalizeProject(ctx context.Context, s *Session, org int64, p Project) (models.SearchResult, error) {
	recent := p.RecentFiles
	if len(recent) > maxProjectThumbnails {
		recent = recent[:maxProjectThumbnails]
	}

	thumbs := make([]string, len(recent))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range recent {
		if f.ThumbnailURL == "" {
			continue
		}
		g.Go(func() error {
			thumb, err := s.Thumbnail(gctx, f.URL, f.ThumbnailURL)
			if err != nil {
				return err
			}
			thumbs[i] = thumb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.SearchResult{}, err
	}

	snippet := "Project containing " + countNoun(p.FileCount, "file")
	if previews := strings.Join(thumbs, ""); previews != "" {
		snippet += "<br>" + previews
	}

	return models.SearchResult{
		Title:   p.Name,
		URL:     fmt.Sprintf("%s/files/%d/project/%s", s.BaseURL(), org, p.ID),
		Snippet: snippet,
	}, nil
}

func normalizeTeam(s *Session, org int64, t Team) models.SearchResult {
	return models.SearchResult{
		Title:   t.Name,
		URL:     fmt.Sprintf("%s/files/%d/team/%s", s.BaseURL(), org, t.ID),
		Snippet: "Team with " + countNoun(t.MemberCount, "member"),
	}
}

// countNoun renders "1 file" or "N files".
func countNoun(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
