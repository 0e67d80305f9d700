package crm

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ObjectType names accepted by FetchObjects.
const (
	ObjectCompanies = "companies"
	ObjectDeals     = "deals"
)

var objectPaths = map[string]struct {
	search string
	list   string
}{
	ObjectCompanies: {"/crm/v3/objects/companies/search", "/crm/v3/objects/companies"},
	ObjectDeals:     {"/crm/v3/objects/deals/search", "/crm/v3/objects/deals"},
}

// FetchObjects pulls every page of one object type. When filters are given
// it uses the search endpoint (POST); otherwise the list endpoint (GET).
// Pagination follows the continuation token until the API reports no more
// pages or the accumulated count reaches limit (0 means unlimited).
//
// A failed page does not return an error: the fetch is abandoned, the
// failure logged, and an empty result reported so sibling entity types keep
// going. CallCount always reflects the calls actually made.
func (c *Client) FetchObjects(ctx context.Context, objectType string, filters []Filter, limit int, properties []string) (FetchResult, error) {
	paths, ok := objectPaths[objectType]
	if !ok {
		return FetchResult{}, fmt.Errorf("unknown object type %q", objectType)
	}

	pageSize := c.pageLimit
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}

	var result FetchResult
	after := ""

	for {
		var page pagedResponse
		var err error

		if len(filters) > 0 {
			payload := searchRequest{
				Limit:        pageSize,
				Properties:   properties,
				FilterGroups: []filterGroup{{Filters: filters}},
				After:        after,
			}
			err = c.doJSON(ctx, "POST", paths.search, nil, payload, &page)
		} else {
			query := url.Values{}
			query.Set("limit", strconv.Itoa(pageSize))
			query.Set("properties", strings.Join(properties, ","))
			if objectType == ObjectDeals {
				query.Set("associations", "companies")
			}
			if after != "" {
				query.Set("after", after)
			}
			err = c.doJSON(ctx, "GET", paths.list, query, nil, &page)
		}

		result.CallCount++

		if err != nil {
			c.logger.Error("CRM page fetch failed, abandoning entity type",
				zap.String("object_type", objectType),
				zap.Int("call_count", result.CallCount),
				zap.Error(err),
			)
			return FetchResult{CallCount: result.CallCount}, nil
		}

		result.Records = append(result.Records, page.Results...)

		after = ""
		if page.Paging != nil && page.Paging.Next != nil {
			after = page.Paging.Next.After
		}
		if after == "" || (limit > 0 && len(result.Records) >= limit) {
			break
		}
	}

	if limit > 0 && len(result.Records) > limit {
		result.Records = result.Records[:limit]
	}

	c.logger.Info("CRM fetch complete",
		zap.String("object_type", objectType),
		zap.Int("records", len(result.Records)),
		zap.Int("api_calls", result.CallCount),
	)

	return result, nil
}

// FetchOwners pulls the account's owners. The owners endpoint does not use
// the continuation-token scheme, so this is a single GET.
func (c *Client) FetchOwners(ctx context.Context) ([]Owner, error) {
	var resp ownersResponse
	if err := c.doJSON(ctx, "GET", "/crm/v3/owners", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch owners: %w", err)
	}
	return resp.Results, nil
}

// FetchDealPipelines pulls the deal pipeline definitions used to build the
// deal stage reference table.
func (c *Client) FetchDealPipelines(ctx context.Context) ([]Pipeline, error) {
	var resp struct {
		Results []Pipeline `json:"results"`
	}
	if err := c.doJSON(ctx, "GET", "/crm/v3/pipelines/deals", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch deal pipelines: %w", err)
	}
	return resp.Results, nil
}
