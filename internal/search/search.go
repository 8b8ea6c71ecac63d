package search

import (
	"context"
	"encoding/json"
	"io"
	"strings"
)

// ErrorKind 搜索层的封闭错误类别。
// 调用方基于这个判别值做分支，不做响应形状探测。
type ErrorKind string

const (
	// ErrMissingCredentials 凭证未配置，请求未发出
	ErrMissingCredentials ErrorKind = "missing_credentials"
	// ErrRequestFailed 传输失败或服务端报错
	ErrRequestFailed ErrorKind = "request_failed"
	// ErrInvalidResponse 响应体不符合预期形状
	ErrInvalidResponse ErrorKind = "invalid_response"
)

// Result 单条搜索结果。各字段都可能缺失，使用前一律按不可信处理。
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Outcome 归一化后的搜索响应。
// Err 非空时 Results 无意义；Err 为空不保证 Results 非空，
// 零结果的成功响应与失败是两种不同的状态。
type Outcome struct {
	Results []Result  `json:"results"`
	Err     ErrorKind `json:"error,omitempty"`
}

// Failed 报告该次搜索是否以错误收场
func (o Outcome) Failed() bool {
	return o.Err != ""
}

// Searcher 定义通用的搜索接口
type Searcher interface {
	Search(ctx context.Context, query string) Outcome
}

// decodeJSONBody 限长读取并解析响应体，防止超大响应拖垮进程
func decodeJSONBody(r io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(r, 4<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// cleanResult 对不可信字段做防御性裁剪
func cleanResult(title, url, content string) Result {
	return Result{
		Title:   strings.TrimSpace(title),
		URL:     strings.TrimSpace(url),
		Content: strings.TrimSpace(content),
	}
}
