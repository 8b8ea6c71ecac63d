package search

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Jamiexiao242/SignalDeck/internal/logger"
)

const defaultGoogleBaseURL = "https://www.googleapis.com/customsearch/v1"

// GoogleClient 商业搜索（Google Programmable Search）客户端
type GoogleClient struct {
	apiKey   string
	engineID string
	language string
	baseURL  string
	client   *http.Client
}

// NewGoogleClient 创建商业搜索客户端
func NewGoogleClient(apiKey, engineID, language string) *GoogleClient {
	return &GoogleClient{
		apiKey:   apiKey,
		engineID: engineID,
		language: language,
		baseURL:  defaultGoogleBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured 报告 API key 和搜索引擎 ID 是否都已配置
func (c *GoogleClient) Configured() bool {
	return c.apiKey != "" && c.engineID != ""
}

// googleItem 原始条目，title/link/snippet 重命名为统一的 title/url/content
type googleItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// googleResponse 响应的宽松形状。Items 为指针以便区分
// “字段缺失”与“空列表”；Error 是服务端上报的错误对象。
type googleResponse struct {
	Items []googleItem `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Ensure GoogleClient implements Searcher
var _ Searcher = (*GoogleClient)(nil)

// Search 发起一次商业搜索。
// 传输失败或服务端错误字段映射为 request_failed，
// 无法解析的响应映射为 invalid_response，绝不抛出。
func (c *GoogleClient) Search(ctx context.Context, query string) Outcome {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Outcome{Err: ErrRequestFailed}
	}

	q := u.Query()
	q.Set("key", c.apiKey)
	q.Set("cx", c.engineID)
	q.Set("q", query)
	q.Set("num", "10")
	if c.language != "" {
		q.Set("hl", c.language)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Outcome{Err: ErrRequestFailed}
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		logger.Log.Warnf("商业搜索请求失败 [%s]: %v", query, err)
		return Outcome{Err: ErrRequestFailed}
	}
	defer res.Body.Close()

	var payload googleResponse
	if err := decodeJSONBody(res.Body, &payload); err != nil {
		logger.Log.Warnf("商业搜索响应解析失败 [%s]: %v", query, err)
		return Outcome{Err: ErrInvalidResponse}
	}

	if payload.Error != nil {
		logger.Log.Warnf("商业搜索服务端报错 [%s]: %d %s", query, payload.Error.Code, payload.Error.Message)
		return Outcome{Err: ErrRequestFailed}
	}
	if res.StatusCode != http.StatusOK {
		return Outcome{Err: ErrRequestFailed}
	}

	results := make([]Result, 0, len(payload.Items))
	for _, item := range payload.Items {
		results = append(results, cleanResult(item.Title, item.Link, item.Snippet))
	}
	return Outcome{Results: results}
}
