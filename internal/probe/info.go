package probe

import (
	"context"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"github.com/vitec-memorix/OaiPmh"
)

// MaxRequests limits the number of ListSets pages fetched, to survive broken
// resumption token implementations.
const MaxRequests = 1024

// Info summarizes a repository.
type Info struct {
	Endpoint string   `json:"endpoint"`
	Identify Identify `json:"id"`
	Formats  []Format `json:"formats"`
	Sets     []Set    `json:"sets"`
	Elapsed  float64  `json:"elapsed"`
}

// RepositoryInfo asks a repository for Identify, ListMetadataFormats and
// ListSets in parallel. A repository without sets is fine, any other error
// fails the probe.
func RepositoryInfo(ctx context.Context, c Client, endpoint string) (*Info, error) {
	start := time.Now()
	info := &Info{Endpoint: endpoint}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := c.Do(ctx, endpoint, url.Values{"verb": {"Identify"}})
		if err != nil {
			return err
		}
		info.Identify = resp.Identify
		return nil
	})
	g.Go(func() error {
		resp, err := c.Do(ctx, endpoint, url.Values{"verb": {"ListMetadataFormats"}})
		if err != nil {
			return err
		}
		info.Formats = resp.ListMetadataFormats.Formats
		return nil
	})
	g.Go(func() error {
		sets, err := listSets(ctx, c, endpoint)
		if err != nil {
			return err
		}
		info.Sets = sets
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	info.Elapsed = time.Since(start).Seconds()
	c.logger.Info("probed repository",
		zap.String("endpoint", endpoint),
		zap.Int("formats", len(info.Formats)),
		zap.Int("sets", len(info.Sets)),
		zap.Float64("elapsed", info.Elapsed))
	return info, nil
}

// listSets follows resumption tokens until the list is complete.
func listSets(ctx context.Context, c Client, endpoint string) ([]Set, error) {
	var sets []Set
	params := url.Values{"verb": {"ListSets"}}
	for i := 0; ; i++ {
		if i == MaxRequests {
			return sets, ErrTooManyRequests
		}
		resp, err := c.Do(ctx, endpoint, params)
		if oaipmh.IsCode(err, oaipmh.NoSetHierarchy) {
			return sets, nil
		}
		if err != nil {
			return sets, err
		}
		sets = append(sets, resp.ListSets.Sets...)
		token := resp.ListSets.Token.Value
		if token == "" {
			return sets, nil
		}
		params = url.Values{"verb": {"ListSets"}, "resumptionToken": {token}}
	}
}
