package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Jamiexiao242/SignalDeck/internal/logger"
)

// SearxClient 自建 SearXNG 聚合器客户端。
// 实例放在访问网关后面，请求需携带一对 access-client 凭证头。
type SearxClient struct {
	baseURL       string
	clientID      string
	clientSecret  string
	excludeClause string
	client        *http.Client
}

// NewSearxClient 创建聚合器客户端
func NewSearxClient(baseURL, clientID, clientSecret, excludeClause string, timeout int) *SearxClient {
	t := time.Duration(timeout) * time.Second
	if t == 0 {
		t = 30 * time.Second
	}
	return &SearxClient{
		baseURL:       baseURL,
		clientID:      clientID,
		clientSecret:  clientSecret,
		excludeClause: excludeClause,
		client: &http.Client{
			Timeout: t,
		},
	}
}

// Configured 报告凭证对是否齐全
func (c *SearxClient) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// searxResponse 响应的宽松形状。Results 为指针，
// 2xx 但缺失 results 字段按 invalid_response 处理。
type searxResponse struct {
	Results *[]struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// SearchWith 发起一次聚合器搜索。
// filtered 为真时在查询后追加排除子句；engine 非空时只查该引擎。
// 凭证缺失直接短路返回 missing_credentials，不发任何请求，
// 避免为一次注定失败的调用付出网络开销。
func (c *SearxClient) SearchWith(ctx context.Context, query, engine string, filtered bool) Outcome {
	if !c.Configured() {
		return Outcome{Err: ErrMissingCredentials}
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Outcome{Err: ErrRequestFailed}
	}
	u.Path = "/search"

	phrased := query
	if filtered && c.excludeClause != "" {
		phrased = strings.TrimSpace(query + " " + c.excludeClause)
	}

	q := u.Query()
	q.Set("q", phrased)
	q.Set("format", "json")
	if engine != "" {
		q.Set("engines", engine)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Outcome{Err: ErrRequestFailed}
	}
	httpReq.Header.Set("X-Access-Client-Id", c.clientID)
	httpReq.Header.Set("X-Access-Client-Secret", c.clientSecret)

	res, err := c.client.Do(httpReq)
	if err != nil {
		logger.Log.Warnf("聚合器请求失败 [%s]: %v", phrased, err)
		return Outcome{Err: ErrRequestFailed}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		logger.Log.Warnf("聚合器返回非 2xx [%s]: %d", phrased, res.StatusCode)
		return Outcome{Err: ErrRequestFailed}
	}

	var payload searxResponse
	if err := decodeJSONBody(res.Body, &payload); err != nil || payload.Results == nil {
		logger.Log.Warnf("聚合器响应形状异常 [%s]", phrased)
		return Outcome{Err: ErrInvalidResponse}
	}

	results := make([]Result, 0, len(*payload.Results))
	for _, r := range *payload.Results {
		results = append(results, cleanResult(r.Title, r.URL, r.Content))
	}
	return Outcome{Results: results}
}
