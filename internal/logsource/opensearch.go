// Package logsource supplies audit-log rows to the logs view, either by
// querying OpenSearch or by tailing the live NATS stream.
package logsource

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/telhawk-systems/console/internal/config"
	"github.com/telhawk-systems/console/pkg/listview"
)

// ParamTenant scopes a request to one tenant.
const ParamTenant = "tenant_id"

// maxResultWindow is OpenSearch's default index.max_result_window.
const maxResultWindow = 10000

// NewOpenSearchClient connects to OpenSearch and pings it.
func NewOpenSearchClient(cfg config.OpenSearchConfig) (*opensearch.Client, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure}, //nolint:gosec // opt-in for dev clusters
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()
	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}
	return client, nil
}

// OpenSearchSource pages through log documents. It implements
// listview.PageSource by translating request params into a bool query.
type OpenSearchSource struct {
	client *opensearch.Client
	index  string
	spec   *listview.Spec
	now    func() time.Time
}

// NewOpenSearchSource returns a source reading index* for the view spec.
func NewOpenSearchSource(client *opensearch.Client, index string, spec *listview.Spec) *OpenSearchSource {
	return &OpenSearchSource{client: client, index: index, spec: spec, now: time.Now}
}

// FetchPage implements listview.PageSource.
func (s *OpenSearchSource) FetchPage(ctx context.Context, params url.Values) (listview.Page, error) {
	return s.search(ctx, s.buildQuery(params))
}

// Recent loads up to limit documents newer than window, newest first.
func (s *OpenSearchSource) Recent(ctx context.Context, window listview.TimeWindow, limit int) ([]listview.Record, error) {
	if limit <= 0 || limit > maxResultWindow {
		limit = maxResultWindow
	}
	query := map[string]any{
		"size": limit,
		"sort": []any{map[string]any{timestampField(s.spec): map[string]any{"order": "desc"}}},
	}
	if cutoff, ok := window.Cutoff(s.now()); ok {
		query["query"] = map[string]any{
			"bool": map[string]any{
				"filter": []any{rangeClause(timestampField(s.spec), map[string]any{"gte": cutoff.Format(time.RFC3339Nano)})},
			},
		}
	} else {
		query["query"] = map[string]any{"match_all": map[string]any{}}
	}
	page, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}
	return page.Rows, nil
}

func (s *OpenSearchSource) search(ctx context.Context, query map[string]any) (listview.Page, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return listview.Page{}, fmt.Errorf("encode query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index+"*"),
		s.client.Search.WithBody(&buf),
		s.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return listview.Page{}, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return listview.Page{}, fmt.Errorf("search error: %s", res.String())
	}

	var result struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return listview.Page{}, fmt.Errorf("decode response: %w", err)
	}

	rows := make([]listview.Record, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		doc := hit.Source
		if doc == nil {
			doc = map[string]any{}
		}
		if _, ok := doc["id"]; !ok && hit.ID != "" {
			doc["id"] = hit.ID
		}
		rows = append(rows, normalizeLog(doc))
	}
	return listview.Page{Rows: rows, Total: result.Hits.Total.Value}, nil
}

// buildQuery maps request params onto an OpenSearch query. Only declared
// filters, search, sort, pagination and the tenant scope are honored.
func (s *OpenSearchSource) buildQuery(params url.Values) map[string]any {
	state := listview.FromRequestParams(params, s.spec)
	must := []any{}
	filter := []any{}

	if tenant := params.Get(ParamTenant); tenant != "" {
		filter = append(filter, map[string]any{"term": map[string]any{ParamTenant: tenant}})
	}

	if term := state.TrimmedSearch(); term != "" {
		must = append(must, map[string]any{
			"query_string": map[string]any{
				"query":            "*" + escapeQueryString(term) + "*",
				"fields":           s.spec.SearchFields,
				"default_operator": "AND",
				"analyze_wildcard": true,
			},
		})
	}

	for _, def := range s.spec.Filters {
		value, ok := state.Filter(s.spec, def.Key)
		if !ok || value == nil || value.IsZero() {
			continue
		}
		if clause := s.filterClause(def.FieldName(), value); clause != nil {
			filter = append(filter, clause)
		}
	}

	query := map[string]any{}
	if len(must) > 0 || len(filter) > 0 {
		boolQuery := map[string]any{}
		if len(must) > 0 {
			boolQuery["must"] = must
		}
		if len(filter) > 0 {
			boolQuery["filter"] = filter
		}
		query["query"] = map[string]any{"bool": boolQuery}
	} else {
		query["query"] = map[string]any{"match_all": map[string]any{}}
	}

	sortField, order := timestampField(s.spec), "desc"
	if state.Sort != nil {
		sortField, order = state.Sort.Field, state.Sort.Order()
	}
	query["sort"] = []any{map[string]any{sortField: map[string]any{"order": order}}}

	from := state.Pagination.Offset()
	size := state.Pagination.PageSize
	if from+size > maxResultWindow {
		from = max(maxResultWindow-size, 0)
	}
	query["from"] = from
	query["size"] = size
	return query
}

func (s *OpenSearchSource) filterClause(field string, value listview.FilterValue) map[string]any {
	switch v := value.(type) {
	case listview.Membership:
		return map[string]any{"terms": map[string]any{field: []string(v)}}
	case listview.Substring:
		return map[string]any{"wildcard": map[string]any{field: map[string]any{
			"value":            "*" + escapeWildcard(strings.TrimSpace(string(v))) + "*",
			"case_insensitive": true,
		}}}
	case listview.Range:
		bounds := map[string]any{}
		if v.Min != nil {
			bounds["gte"] = *v.Min
		}
		if v.Max != nil {
			bounds["lte"] = *v.Max
		}
		return rangeClause(field, bounds)
	case listview.Flag:
		return map[string]any{"term": map[string]any{field: true}}
	case listview.TimeWindow:
		cutoff, ok := v.Cutoff(s.now())
		if !ok {
			return nil
		}
		return rangeClause(field, map[string]any{"gte": cutoff.Format(time.RFC3339Nano)})
	}
	return nil
}

func rangeClause(field string, bounds map[string]any) map[string]any {
	return map[string]any{"range": map[string]any{field: bounds}}
}

// timestampField is the field of the view's first time-window filter.
func timestampField(spec *listview.Spec) string {
	for _, def := range spec.Filters {
		if def.Kind == listview.KindWindow {
			return def.FieldName()
		}
	}
	return listview.DefaultTimestampField
}

var queryStringReplacer = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `=`, `\=`, `&`, `\&`, `|`, `\|`,
	`!`, `\!`, `(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`,
	`]`, `\]`, `^`, `\^`, `"`, `\"`, `~`, `\~`, `*`, `\*`, `?`, `\?`,
	`:`, `\:`, `/`, `\/`, `<`, ``, `>`, ``, ` `, `\ `,
)

// escapeQueryString escapes query_string reserved characters. < and > cannot
// be escaped and are dropped.
func escapeQueryString(s string) string {
	return queryStringReplacer.Replace(s)
}

var wildcardReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// escapeWildcard escapes the wildcard query operators so user text matches
// literally.
func escapeWildcard(s string) string {
	return wildcardReplacer.Replace(s)
}

// normalizeLog parses the timestamp so local sorting compares instants.
func normalizeLog(doc map[string]any) listview.Fields {
	if raw, ok := doc[listview.DefaultTimestampField].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			doc[listview.DefaultTimestampField] = ts
		}
	}
	return listview.Fields(doc)
}
