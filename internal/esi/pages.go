package esi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"eve-industry/internal/logger"

	"golang.org/x/sync/semaphore"
)

// DefaultPageConcurrency is the fan-out ceiling for FetchAllPages.
const DefaultPageConcurrency = 30

// ErrUpstreamUnavailable means every page of a required fetch failed.
var ErrUpstreamUnavailable = errors.New("esi: upstream produced no usable pages")

// PageCheck reports whether a page exists. Errors are treated as "absent".
type PageCheck func(ctx context.Context, page int) (bool, error)

// PageFetcher retrieves one page body.
type PageFetcher[T any] func(ctx context.Context, page int) (T, error)

// FindMaxPage locates the last existing page of a collection whose pages
// 1..N exist and N+1.. do not. It steps from beginPage by interval while
// the check succeeds, then binary-searches between the last hit and the
// first miss. When the very first lookup misses, the search runs over
// [0, beginPage], so N = 0 means there is nothing to fetch.
//
// Only context cancellation is returned as an error; lookup failures are
// logged at debug level and count as a missing page.
func FindMaxPage(ctx context.Context, check PageCheck, beginPage, interval int) (int, error) {
	if beginPage < 1 {
		beginPage = 1
	}
	if interval < 1 {
		interval = 1
	}

	exists := func(page int) (bool, error) {
		ok, err := check(ctx, page)
		if cerr := ctx.Err(); cerr != nil {
			return false, cerr
		}
		if err != nil {
			logger.Debug("ESI", fmt.Sprintf("check page %d: %v", page, err))
			return false, nil
		}
		return ok, nil
	}

	lo := 0 // last page known to exist
	hi := beginPage
	for {
		ok, err := exists(hi)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		lo = hi
		hi += interval
	}

	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		ok, err := exists(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}

type fetchOptions struct {
	concurrency int
	requireData bool
	name        string
}

// FetchOption tunes FetchAllPages.
type FetchOption func(*fetchOptions)

// WithPageConcurrency overrides the fan-out ceiling.
func WithPageConcurrency(n int) FetchOption {
	return func(o *fetchOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// RequireData makes a fetch where every page failed return ErrUpstreamUnavailable.
func RequireData() FetchOption { return func(o *fetchOptions) { o.requireData = true } }

// Named labels log lines for the fetch.
func Named(name string) FetchOption { return func(o *fetchOptions) { o.name = name } }

// FetchAllPages fetches pages 1..maxPage concurrently with bounded
// parallelism. A failing page is logged and dropped; the batch continues.
// The result holds the successful page bodies in completion order.
func FetchAllPages[T any](ctx context.Context, fetch PageFetcher[T], maxPage int, opts ...FetchOption) ([]T, error) {
	o := fetchOptions{concurrency: DefaultPageConcurrency, name: "pages"}
	for _, opt := range opts {
		opt(&o)
	}
	if maxPage <= 0 {
		return nil, nil
	}

	sem := semaphore.NewWeighted(int64(o.concurrency))
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]T, 0, maxPage)
		dropped int
	)

	for page := 1; page <= maxPage; page++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			defer sem.Release(1)

			body, err := fetch(ctx, page)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				dropped++
				logger.Warn("ESI", fmt.Sprintf("%s: page %d dropped: %v", o.name, page, err))
				return
			}
			results = append(results, body)
		}(page)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if dropped > 0 {
		logger.Warn("ESI", fmt.Sprintf("%s: %d/%d pages dropped", o.name, dropped, maxPage))
	}
	if o.requireData && len(results) == 0 {
		return nil, fmt.Errorf("%s: %w", o.name, ErrUpstreamUnavailable)
	}
	return results, nil
}

// pageCheck checks a paginated endpoint: a page exists when it decodes to a non-empty array.
func (c *Client) pageCheck(urlFor func(page int) string, auth bool) PageCheck {
	return func(ctx context.Context, page int) (bool, error) {
		var rows []json.RawMessage
		if _, err := c.get(ctx, urlFor(page), auth, &rows); err != nil {
			return false, err
		}
		return len(rows) > 0, nil
	}
}

// pageFetcher decodes one page of a paginated endpoint into []T.
func pageFetcher[T any](c *Client, urlFor func(page int) string, auth bool) PageFetcher[[]T] {
	return func(ctx context.Context, page int) ([]T, error) {
		var rows []T
		if _, err := c.get(ctx, urlFor(page), auth, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("page %d empty", page)
		}
		return rows, nil
	}
}

// flatten concatenates page bodies.
func flatten[T any](pages [][]T) []T {
	n := 0
	for _, p := range pages {
		n += len(p)
	}
	out := make([]T, 0, n)
	for _, p := range pages {
		out = append(out, p...)
	}
	return out
}

// findAndFetch runs FindMaxPage then FetchAllPages against one endpoint.
func findAndFetch[T any](ctx context.Context, c *Client, urlFor func(int) string, auth bool, begin, interval int, opts ...FetchOption) ([]T, error) {
	maxPage, err := FindMaxPage(ctx, c.pageCheck(urlFor, auth), begin, interval)
	if err != nil {
		return nil, err
	}
	if maxPage == 0 {
		return nil, nil
	}
	pages, err := FetchAllPages(ctx, pageFetcher[T](c, urlFor, auth), maxPage, opts...)
	if err != nil {
		return nil, err
	}
	return flatten(pages), nil
}
