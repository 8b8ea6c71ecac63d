package search

import (
	"context"

	"github.com/Jamiexiao242/SignalDeck/internal/logger"
)

// Chain 多提供方回退链。每次逻辑搜索按固定策略决定
// 先试哪个提供方、用什么查询变体、何时回退。
type Chain struct {
	google *GoogleClient
	searx  *SearxClient

	// fallback 为真时，商业搜索零结果后继续尝试聚合器；
	// 为假时零结果即为最终结果
	fallback bool
	engines  []string
}

// NewChain 组装回退链
func NewChain(google *GoogleClient, searx *SearxClient, fallback bool, engines []string) *Chain {
	return &Chain{
		google:   google,
		searx:    searx,
		fallback: fallback,
		engines:  engines,
	}
}

// Ensure Chain implements Searcher
var _ Searcher = (*Chain)(nil)

// Search 执行一次带回退的逻辑搜索。
// 商业搜索配置了凭证就先走商业搜索，非空结果立即返回；
// 零结果且未开启回退开关时，零结果就是最终答案。
// 否则落到聚合器：先用带排除子句的措辞，零结果（且无错误）
// 再用原始措辞重试一次——排除子句能降噪，但对冷门代码
// 可能把真正相关的结果也滤掉，重试是设计好的恢复路径。
func (c *Chain) Search(ctx context.Context, query string) Outcome {
	if c.google != nil && c.google.Configured() {
		outcome := c.google.Search(ctx, query)
		if len(outcome.Results) > 0 {
			return outcome
		}
		if !c.fallback {
			return outcome
		}
		logger.Log.Debugf("商业搜索零结果，回退到聚合器 [%s]", query)
	}

	if len(c.engines) == 0 {
		return c.searxAttempts(ctx, query, "")
	}

	// 配置了引擎列表时按序遍历，第一个非空结果胜出；
	// 全部落空则按“最后的无错结果 > 最后的错误结果”取值
	var lastOK, lastErr *Outcome
	for _, engine := range c.engines {
		outcome := c.searxAttempts(ctx, query, engine)
		if len(outcome.Results) > 0 {
			return outcome
		}
		o := outcome
		if o.Failed() {
			lastErr = &o
		} else {
			lastOK = &o
		}
	}
	if lastOK != nil {
		return *lastOK
	}
	if lastErr != nil {
		return *lastErr
	}
	return Outcome{}
}

// searxAttempts 对单个引擎执行“排除措辞 + 原始措辞”两段尝试
func (c *Chain) searxAttempts(ctx context.Context, query, engine string) Outcome {
	first := c.searx.SearchWith(ctx, query, engine, true)
	if len(first.Results) > 0 || first.Failed() {
		return first
	}

	retry := c.searx.SearchWith(ctx, query, engine, false)
	if len(retry.Results) > 0 {
		return retry
	}
	return first
}
