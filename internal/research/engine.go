package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"

	"github.com/Jamiexiao242/SignalDeck/internal/config"
	"github.com/Jamiexiao242/SignalDeck/internal/logger"
	"github.com/Jamiexiao242/SignalDeck/internal/pool"
	"github.com/Jamiexiao242/SignalDeck/internal/search"
)

const (
	// maxResultsPerTopic 每个话题进入上下文的结果条数上限
	maxResultsPerTopic = 3
	// maxSnippetLen 摘要硬截断长度
	maxSnippetLen = 280
	// minSnippetLen 低于该长度的摘要会触发正文补抓
	minSnippetLen = 200
	// maxFetchedLen 补抓正文的截断长度
	maxFetchedLen = 1200
)

// Engine 研究编排引擎：解析 → 多目标多话题搜索扇出 →
// 上下文聚合 → 报告生成，全程通过进度回调上报。
type Engine struct {
	chatModel model.ChatModel
	searcher  search.Searcher
	resolver  *Resolver
	limiter   *rate.Limiter

	workers         int
	taskDelay       time.Duration
	maxReportTokens int
	enrich          bool

	// fetchContent 补抓正文的实现，测试中可替换
	fetchContent func(url string) (string, error)
}

// NewEngine 按配置构造引擎，初始化 LLM 与搜索回退链。
// 模型凭证缺失是唯一向上抛出的配置性错误，
// 必须与“查询无结果”这种内容性结果区分开。
func NewEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("研究引擎未配置可用的模型凭证 (llm.api_key)")
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	chain := search.NewChain(
		search.NewGoogleClient(cfg.Search.Google.APIKey, cfg.Search.Google.EngineID, cfg.Search.Google.Language),
		search.NewSearxClient(
			cfg.Search.SearXNG.BaseURL,
			cfg.Search.SearXNG.ClientID,
			cfg.Search.SearXNG.ClientSecret,
			cfg.Search.SearXNG.ExcludeClause,
			cfg.Search.SearXNG.Timeout,
		),
		cfg.Search.FallbackToSearXNG,
		cfg.Search.SearXNG.Engines,
	)

	return NewEngineWithDeps(cfg, chatModel, chain), nil
}

// NewEngineWithDeps 注入已构造的模型与搜索实现，测试用
func NewEngineWithDeps(cfg *config.Config, cm model.ChatModel, searcher search.Searcher) *Engine {
	limit := rate.Limit(float64(cfg.Concurrency.RPM) / 60.0)
	limiter := rate.NewLimiter(limit, cfg.Concurrency.QPS)

	return &Engine{
		chatModel:       cm,
		searcher:        searcher,
		resolver:        NewResolver(cm, searcher, limiter),
		limiter:         limiter,
		workers:         cfg.Research.Workers,
		taskDelay:       time.Duration(cfg.Research.TaskDelayMS) * time.Millisecond,
		maxReportTokens: cfg.Research.MaxReportTokens,
		enrich:          cfg.Research.EnrichContent,
		fetchContent:    fetchAndCleanContent,
	}
}

// Run 执行一次完整的研究调用。
// 单个搜索任务、模型调用或解析步骤的失败都不会中止编排，
// 每个阶段都有定义好的降级路径；progress 为 nil 时照常运行。
func (e *Engine) Run(ctx context.Context, subject string, progress ProgressFunc) (*Output, error) {
	transcript := NewTranscript()
	notify := func(stage Stage, line string) {
		full := fmt.Sprintf("%s: %s", stage, line)
		transcript.Append(full)
		emit(progress, full)
	}

	cleaned := CleanSubject(subject)
	if cleaned == "" {
		cleaned = strings.TrimSpace(subject)
	}

	// 1. 解析
	notify(StageResolving, fmt.Sprintf("identifying tickers for %q", cleaned))
	res := e.resolver.Resolve(ctx, subject)

	tickers := []string{}
	if res.Base != "" {
		tickers = append(tickers, res.Base)
		tickers = append(tickers, res.Related...)
	}

	// 解析彻底失败时退回原始主题文本，总要搜点什么
	targets := tickers
	if len(targets) == 0 {
		logger.Log.Warnf("主题 [%s] 未解析出任何代码，改用主题文本作为搜索目标", cleaned)
		targets = []string{cleaned}
	}

	// 2. 搜索扇出
	tasks := buildTasks(targets)
	notify(StageSearching, fmt.Sprintf("%d targets x %d topics, %d tasks", len(targets), len(topicQueries), len(tasks)))

	taskResults, err := pool.Run(ctx, tasks, e.workers, func(ctx context.Context, _ int, task Task) (TaskResult, error) {
		emit(progress, fmt.Sprintf("searching: %s", task.Query))
		tr := e.runTask(ctx, task)
		emit(progress, fmt.Sprintf("finished: %s (%d results)", task.Query, len(tr.Results)))

		// 每个任务完成后固定停顿，独立于并发上限地压低整体请求速率
		e.pause(ctx)
		return tr, nil
	})
	if err != nil {
		return nil, err
	}

	grouped := groupByTarget(targets, taskResults)

	// 3. 聚合
	notify(StageAnalyzing, "aggregating search context")
	contextText, totalResults, missingCreds := buildContext(grouped)
	logger.Log.Infof("聚合完成: %d 个目标, %d 条结果", len(grouped), totalResults)

	// 4. 报告
	notify(StageDrafting, "composing report")
	var report string
	switch {
	case missingCreds:
		report = FallbackReport(cleaned, "搜索服务凭证未配置")
	case totalResults == 0:
		report = FallbackReport(cleaned, "所有搜索均未返回结果")
	default:
		draft, err := e.synthesize(ctx, cleaned, tickers, contextText)
		if err != nil {
			logger.Log.Errorf("报告生成失败 [%s]: %v", cleaned, err)
			report = FallbackReport(cleaned, "报告生成调用失败")
		} else {
			report = draft
		}
	}

	// 5. 完成
	notify(StageDone, "research complete")
	return &Output{
		Tickers:       tickers,
		Report:        report,
		Charts:        buildCharts(tickers),
		TickerResults: grouped,
		Transcript:    transcript.Commit(),
	}, nil
}

// runTask 执行单个搜索任务并把失败映射为状态串，自身永不出错
func (e *Engine) runTask(ctx context.Context, task Task) TaskResult {
	outcome := e.searcher.Search(ctx, task.Query)

	tr := TaskResult{
		Target:     task.Target,
		Query:      task.Query,
		TopicIndex: task.TopicIndex,
		Status:     statusFor(outcome),
		Results:    outcome.Results,
	}

	if e.enrich && !outcome.Failed() && len(tr.Results) > 0 {
		e.enrichTop(&tr)
	}
	return tr
}

// enrichTop 首条结果摘要过短时抓取正文补充，失败就保留原摘要
func (e *Engine) enrichTop(tr *TaskResult) {
	top := &tr.Results[0]
	if len(top.Content) >= minSnippetLen || top.URL == "" {
		return
	}
	fetched, err := e.fetchContent(top.URL)
	if err != nil {
		logger.Log.Debugf("正文补抓失败 [%s]: %v", top.URL, err)
		return
	}
	if len(fetched) > len(top.Content) {
		top.Content = truncate(fetched, maxFetchedLen)
	}
}

// pause 任务间的固定停顿，可被 ctx 打断
func (e *Engine) pause(ctx context.Context) {
	if e.taskDelay <= 0 {
		return
	}
	t := time.NewTimer(e.taskDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// buildTasks 生成“目标 × 话题”的任务全集，目标优先、话题次序固定
func buildTasks(targets []string) []Task {
	tasks := make([]Task, 0, len(targets)*len(topicQueries))
	for _, target := range targets {
		for i, topic := range topicQueries {
			tasks = append(tasks, Task{
				Target:     target,
				Topic:      topic,
				TopicIndex: i,
				Query:      target + " " + topic,
			})
		}
	}
	return tasks
}

// groupByTarget 把完成的任务按目标归组，组内按话题序号排序，
// 保证报告顺序与完成顺序无关
func groupByTarget(targets []string, results []TaskResult) []TickerResult {
	byTarget := make(map[string][]TaskResult, len(targets))
	for _, tr := range results {
		byTarget[tr.Target] = append(byTarget[tr.Target], tr)
	}

	grouped := make([]TickerResult, 0, len(targets))
	for _, target := range targets {
		searches := byTarget[target]
		sort.SliceStable(searches, func(i, j int) bool {
			return searches[i].TopicIndex < searches[j].TopicIndex
		})
		grouped = append(grouped, TickerResult{Symbol: target, Searches: searches})
	}
	return grouped
}

// statusFor 从搜索结果推导任务状态，健康时为空串
func statusFor(o search.Outcome) string {
	if o.Failed() {
		return "search failed: " + string(o.Err)
	}
	if len(o.Results) == 0 {
		return "no results"
	}
	return ""
}

// buildContext 把分组结果压平为文本上下文，
// 同时统计总结果数并检测任一任务的凭证缺失
func buildContext(grouped []TickerResult) (string, int, bool) {
	var sb strings.Builder
	total := 0
	missingCreds := false

	for _, tr := range grouped {
		fmt.Fprintf(&sb, "### Target: %s\n", tr.Symbol)
		for _, task := range tr.Searches {
			fmt.Fprintf(&sb, "Query: %s\n", task.Query)
			if task.Status != "" {
				fmt.Fprintf(&sb, "Status: %s\n", task.Status)
			}
			if strings.Contains(task.Status, string(search.ErrMissingCredentials)) {
				missingCreds = true
			}

			total += len(task.Results)
			for i, result := range task.Results {
				if i >= maxResultsPerTopic {
					break
				}
				fmt.Fprintf(&sb, "- %s (%s) - %s\n", result.Title, result.URL, truncate(result.Content, maxSnippetLen))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String(), total, missingCreds
}

const reportSystemPrompt = `你是一个严谨的证券研究助理。只依据给定的搜索上下文写作，
引用来源时在句尾用 (url) 标注，不要编造上下文之外的数据。`

const reportPromptTpl = `研究主题：%s
涉及代码:%s

请基于下面的搜索上下文撰写一份结构化研究报告，骨架固定为：
# 一句话标题
一行覆盖说明（覆盖了哪些代码与研究角度、共引用多少条来源）
## 亮点
## 风险
## 流程图
用 mermaid flowchart 描述公司的业务或资金流。
## 估值测算
给出关键数字与简单算式。
## 结论

搜索上下文：
%s`

// synthesize 发起一次报告生成调用，输出长度受 token 上限约束
func (e *Engine) synthesize(ctx context.Context, subject string, tickers []string, contextText string) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}

	tickerLine := " (none)"
	if len(tickers) > 0 {
		tickerLine = " " + strings.Join(tickers, ", ")
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: reportSystemPrompt},
		{Role: schema.User, Content: fmt.Sprintf(reportPromptTpl, subject, tickerLine, contextText)},
	}

	resp, err := e.chatModel.Generate(ctx, messages, model.WithMaxTokens(e.maxReportTokens))
	if err != nil {
		return "", err
	}

	report := strings.TrimSpace(resp.Content)
	report = strings.TrimPrefix(report, "```markdown")
	report = strings.TrimPrefix(report, "```")
	report = strings.TrimSuffix(report, "```")
	report = strings.TrimSpace(report)
	if report == "" {
		return "", fmt.Errorf("模型返回空报告")
	}
	return report, nil
}

// FallbackReport 报告生成不可行时的确定性降级文案
func FallbackReport(subject, reason string) string {
	return fmt.Sprintf("# 研究报告：%s\n\n本次自动研究未能生成完整报告：%s。\n请检查搜索与模型配置后重试。", subject, reason)
}

// buildCharts 为每个已解析代码生成一个图表占位；
// 一个都没有时给出“未识别到代码”的占位
func buildCharts(tickers []string) []Chart {
	if len(tickers) == 0 {
		return []Chart{{Kind: "placeholder", Title: "no ticker identified"}}
	}
	charts := make([]Chart, 0, len(tickers))
	for _, symbol := range tickers {
		charts = append(charts, Chart{
			Symbol: symbol,
			Kind:   "price",
			Title:  symbol + " price chart",
		})
	}
	return charts
}

// emit 调用进度回调。回调只允许观察，panic 被就地隔离，
// 不能以任何方式改变编排结果。
func emit(progress ProgressFunc, line string) {
	if progress == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	progress(line)
}

// truncate 按字节上限截断，保持 UTF-8 合法性
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	n := 0
	for _, r := range runes {
		n += len(string(r))
		if n > limit {
			break
		}
		out = append(out, r)
	}
	return string(out) + "..."
}

// fetchAndCleanContent 抓取 URL 并提取核心正文
func fetchAndCleanContent(url string) (string, error) {
	article, err := readability.FromURL(url, 30*time.Second)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}
