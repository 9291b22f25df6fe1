package engine

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/core"
)

// Doer executes a single request.
type Doer interface {
	Execute(ctx context.Context, req Request) (*Response, error)
}

// page is one list response.
type page struct {
	Data  []json.RawMessage `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// Paginator walks cursor-linked list responses.
type Paginator struct {
	Doer   Doer
	Logger core.Logger
}

// NewPaginator returns a paginator that fetches pages through doer.
func NewPaginator(doer Doer) *Paginator {
	return &Paginator{Doer: doer}
}

// All yields every item of the list at req, one page at a time. Pages are only
// fetched as the caller ranges; breaking out of the loop stops fetching. A
// maxItems of zero or less means no cap. The sequence is not restartable.
func (p *Paginator) All(ctx context.Context, req Request, maxItems int) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		if p == nil || p.Doer == nil {
			yield(nil, core.NewFailure(core.KindConfig, "paginator has no executor"))
			return
		}

		logger := core.LoggerOrNop(p.Logger)
		current := req
		current.Method = "GET"
		yielded := 0
		pages := 0

		for {
			resp, err := p.Doer.Execute(ctx, current)
			if err != nil {
				yield(nil, err)
				return
			}
			pages++

			var pg page
			if err := resp.Decode(&pg); err != nil {
				yield(nil, err)
				return
			}

			for _, item := range pg.Data {
				if !yield(item, nil) {
					return
				}
				yielded++
				if maxItems > 0 && yielded >= maxItems {
					logger.Debug("Pagination stopped at item cap",
						zap.Int("items", yielded),
						zap.Int("pages", pages))
					return
				}
			}

			next := strings.TrimSpace(pg.Links.Next)
			if next == "" {
				return
			}

			current, err = nextRequest(req, next)
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// Collect drains All into a slice.
func (p *Paginator) Collect(ctx context.Context, req Request, maxItems int) ([]json.RawMessage, error) {
	items := make([]json.RawMessage, 0)
	for item, err := range p.All(ctx, req, maxItems) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// nextRequest keeps the original path and merges the query parameters of the
// next link over the original query.
func nextRequest(original Request, next string) (Request, error) {
	parsed, err := url.Parse(next)
	if err != nil {
		return Request{}, core.WrapFailure(core.KindAPI, err, "parse next link")
	}

	query := url.Values{}
	for key, values := range original.Query {
		query[key] = append([]string(nil), values...)
	}
	for key, values := range parsed.Query() {
		query[key] = append([]string(nil), values...)
	}

	req := original
	req.Method = "GET"
	req.Query = query
	req.RequestID = ""
	return req, nil
}
