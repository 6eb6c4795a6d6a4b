package parcels

import (
	"context"
	"sync"

	"github.com/colisdesk/colisdesk/internal/integrations/colissimo/envelope"
	"github.com/colisdesk/colisdesk/internal/models"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ListOptions controls the page aggregation.
//
// Limit > 0 forces sequential fetching with an early stop as soon as enough
// records are in hand. Parallel fans the remaining pages out after page 1,
// which carries the page count.
type ListOptions struct {
	MaxPages int
	Limit    int
	Parallel bool
}

type ListResult struct {
	Records       []models.Parcel
	PagesFetched  int
	ReportedPages int
	ReportedCount int
}

// FetchAll walks every page the provider reports and concatenates the records
// in page order. Any page error fails the whole listing.
func (s *Service) FetchAll(ctx context.Context, opts ListOptions) (ListResult, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = s.maxPages
	}

	first, meta, err := s.fetchPage(ctx, 1)
	if err != nil {
		return ListResult{}, err
	}

	totalPages := meta.Pages
	if totalPages <= 0 {
		totalPages = 1
	}
	if totalPages > maxPages {
		totalPages = maxPages
	}

	res := ListResult{
		Records:       first,
		PagesFetched:  1,
		ReportedPages: meta.Pages,
		ReportedCount: meta.Count,
	}
	if totalPages == 1 || (opts.Limit > 0 && len(res.Records) >= opts.Limit) {
		return truncate(res, opts.Limit), nil
	}

	if opts.Parallel && opts.Limit <= 0 {
		rest, err := s.fetchPagesParallel(ctx, 2, totalPages)
		if err != nil {
			return ListResult{}, err
		}
		for _, page := range rest {
			res.Records = append(res.Records, page...)
			res.PagesFetched++
		}
		return res, nil
	}

	for page := 2; page <= totalPages; page++ {
		records, _, err := s.fetchPage(ctx, page)
		if err != nil {
			return ListResult{}, err
		}
		res.Records = append(res.Records, records...)
		res.PagesFetched++
		if opts.Limit > 0 && len(res.Records) >= opts.Limit {
			break
		}
	}
	return truncate(res, opts.Limit), nil
}

func (s *Service) fetchPage(ctx context.Context, page int) ([]models.Parcel, envelope.PageMeta, error) {
	raw, err := s.soap.ListParcels(ctx, page)
	if err != nil {
		return nil, envelope.PageMeta{}, errors.Wrapf(err, "list colis page %d", page)
	}
	out := envelope.Resolve(raw)
	if err := out.Err(); err != nil {
		return nil, envelope.PageMeta{}, errors.Wrapf(err, "list colis page %d", page)
	}
	return envelope.Parcels(out.Content), envelope.MetaFrom(out.Content), nil
}

// fetchPagesParallel grabs pages [from..to] concurrently and returns them in
// page order regardless of completion order.
func (s *Service) fetchPagesParallel(ctx context.Context, from, to int) ([][]models.Parcel, error) {
	pages := make([][]models.Parcel, to-from+1)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.pageConcurrency)
	for page := from; page <= to; page++ {
		g.Go(func() error {
			records, _, err := s.fetchPage(gctx, page)
			if err != nil {
				return err
			}
			mu.Lock()
			pages[page-from] = records
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func truncate(res ListResult, limit int) ListResult {
	if limit > 0 && len(res.Records) > limit {
		res.Records = res.Records[:limit]
	}
	return res
}
