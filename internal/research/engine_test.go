package research

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Jamiexiao242/SignalDeck/internal/config"
	"github.com/Jamiexiao242/SignalDeck/internal/search"
)

func testConfig() *config.Config {
	return &config.Config{
		Research: config.ResearchConfig{
			Workers:         2,
			TaskDelayMS:     1,
			MaxReportTokens: 512,
		},
		Concurrency: config.ConcurrencyConfig{QPS: 10, RPM: 6000},
	}
}

func oneHitOutcome(query string) search.Outcome {
	return search.Outcome{Results: []search.Result{
		{Title: "hit for " + query, URL: "https://example.com/" + query, Content: "snippet about " + query},
	}}
}

func TestEngineResearchNVDAEndToEnd(t *testing.T) {
	cm := &mockChatModel{responses: []string{
		`{"base":"NVDA"}`,
		"# NVDA 深度研究\n\n覆盖 NVDA 五个角度。\n## 亮点\n...\n## 结论\n...",
	}}
	searcher := &fakeSearcher{fn: oneHitOutcome}
	e := NewEngineWithDeps(testConfig(), cm, searcher)

	var progressLines []string
	var mu sync.Mutex
	out, err := e.Run(context.Background(), "research NVDA", func(line string) {
		mu.Lock()
		progressLines = append(progressLines, line)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(out.Tickers) != 1 || out.Tickers[0] != "NVDA" {
		t.Fatalf("Tickers = %v, want [NVDA]", out.Tickers)
	}

	// 任务全集 = 1 个目标 × 5 个话题，查询措辞固定
	wantQueries := map[string]bool{
		"NVDA news":                 true,
		"NVDA company fundamentals": true,
		"NVDA earnings":             true,
		"NVDA valuation":            true,
		"NVDA risks":                true,
	}
	for _, q := range searcher.seen() {
		delete(wantQueries, q)
	}
	if len(wantQueries) != 0 {
		t.Errorf("missing queries: %v (seen %v)", wantQueries, searcher.seen())
	}

	// 所有搜索都有结果：报告走模型生成，不等于降级文案
	if out.Report == "" || out.Report == FallbackReport("NVDA", "所有搜索均未返回结果") {
		t.Errorf("Report = %q, want synthesized report", out.Report)
	}
	if got := cm.calls.Load(); got != 2 {
		t.Errorf("model calls = %d, want 2 (classify + synthesize)", got)
	}

	if len(out.Charts) != 1 || out.Charts[0].Symbol != "NVDA" || out.Charts[0].Kind != "price" {
		t.Errorf("Charts = %+v", out.Charts)
	}

	if len(out.TickerResults) != 1 || out.TickerResults[0].Symbol != "NVDA" {
		t.Fatalf("TickerResults = %+v", out.TickerResults)
	}
	for i, tr := range out.TickerResults[0].Searches {
		if tr.TopicIndex != i {
			t.Errorf("Searches[%d].TopicIndex = %d, want %d", i, tr.TopicIndex, i)
		}
		if tr.Status != "" {
			t.Errorf("Searches[%d].Status = %q, want healthy", i, tr.Status)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	joined := strings.Join(progressLines, "\n")
	for _, stage := range []string{"RESOLVING", "SEARCHING", "ANALYZING", "DRAFTING", "DONE"} {
		if !strings.Contains(joined, stage) {
			t.Errorf("progress lines missing stage %s", stage)
		}
	}
}

func TestEngineUnresolvableSubjectFallsBackToSubjectTarget(t *testing.T) {
	// 分类结果不可解析、无显式代码、搜索发现也一无所获
	cm := &mockChatModel{responses: []string{"cannot map this subject"}}
	searcher := &fakeSearcher{fn: func(query string) search.Outcome {
		return search.Outcome{}
	}}
	e := NewEngineWithDeps(testConfig(), cm, searcher)

	out, err := e.Run(context.Background(), "research quantum computing", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(out.Tickers) != 0 {
		t.Errorf("Tickers = %v, want empty", out.Tickers)
	}
	// 搜索目标退回清洗后的主题文本
	if len(out.TickerResults) != 1 || out.TickerResults[0].Symbol != "quantum computing" {
		t.Fatalf("TickerResults = %+v", out.TickerResults)
	}
	if len(out.TickerResults[0].Searches) != len(topicQueries) {
		t.Errorf("search count = %d, want %d", len(out.TickerResults[0].Searches), len(topicQueries))
	}

	if len(out.Charts) != 1 || out.Charts[0].Kind != "placeholder" || out.Charts[0].Title != "no ticker identified" {
		t.Errorf("Charts = %+v, want no-ticker placeholder", out.Charts)
	}

	// 全部零结果：跳过生成调用，使用确定性降级文案
	if out.Report != FallbackReport("quantum computing", "所有搜索均未返回结果") {
		t.Errorf("Report = %q, want zero-result fallback", out.Report)
	}
	if got := cm.calls.Load(); got != 1 {
		t.Errorf("model calls = %d, want 1 (classify only)", got)
	}
}

func TestEngineMissingCredentialsSkipsSynthesis(t *testing.T) {
	cm := &mockChatModel{responses: []string{`{"base":"NVDA"}`}}
	searcher := &fakeSearcher{fn: func(query string) search.Outcome {
		return search.Outcome{Err: search.ErrMissingCredentials}
	}}
	e := NewEngineWithDeps(testConfig(), cm, searcher)

	out, err := e.Run(context.Background(), "research NVDA", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, tr := range out.TickerResults[0].Searches {
		if !strings.Contains(tr.Status, string(search.ErrMissingCredentials)) {
			t.Errorf("Status = %q, want missing_credentials-derived", tr.Status)
		}
	}

	if out.Report != FallbackReport("NVDA", "搜索服务凭证未配置") {
		t.Errorf("Report = %q, want missing-credentials fallback", out.Report)
	}
	// 生成调用从未发起
	if got := cm.calls.Load(); got != 1 {
		t.Errorf("model calls = %d, want 1 (classify only)", got)
	}
}

func TestEngineTopicOrderIndependentOfCompletionOrder(t *testing.T) {
	cm := &mockChatModel{responses: []string{
		`{"base":"NVDA","related":["AMD"]}`,
		"# 报告",
	}}
	// 话题 0 故意最慢，完成顺序与话题顺序相反
	searcher := &fakeSearcher{fn: func(query string) search.Outcome {
		if strings.HasSuffix(query, " news") {
			time.Sleep(50 * time.Millisecond)
		}
		return oneHitOutcome(query)
	}}
	e := NewEngineWithDeps(testConfig(), cm, searcher)

	out, err := e.Run(context.Background(), "research NVDA", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(out.Tickers) != 2 || out.Tickers[0] != "NVDA" || out.Tickers[1] != "AMD" {
		t.Fatalf("Tickers = %v, want [NVDA AMD]", out.Tickers)
	}
	if len(out.TickerResults) != 2 {
		t.Fatalf("TickerResults = %+v", out.TickerResults)
	}
	// 目标顺序跟随解析顺序，组内恒按话题序号
	for g, want := range []string{"NVDA", "AMD"} {
		group := out.TickerResults[g]
		if group.Symbol != want {
			t.Errorf("group %d symbol = %q, want %q", g, group.Symbol, want)
		}
		if len(group.Searches) != len(topicQueries) {
			t.Fatalf("group %d search count = %d", g, len(group.Searches))
		}
		for i, tr := range group.Searches {
			if tr.TopicIndex != i {
				t.Errorf("group %s Searches[%d].TopicIndex = %d", want, i, tr.TopicIndex)
			}
		}
	}
}

func TestEngineSynthesisFailureFallsBack(t *testing.T) {
	cm := &mockChatModel{responses: []string{`{"base":"NVDA"}`, ""}}
	searcher := &fakeSearcher{fn: oneHitOutcome}
	e := NewEngineWithDeps(testConfig(), cm, searcher)

	out, err := e.Run(context.Background(), "research NVDA", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// 模型返回空报告按失败处理，降级到确定性文案
	if out.Report != FallbackReport("NVDA", "报告生成调用失败") {
		t.Errorf("Report = %q, want synthesis-failure fallback", out.Report)
	}
}

func TestEnginePanickingProgressSinkIsIsolated(t *testing.T) {
	cm := &mockChatModel{responses: []string{`{"base":"NVDA"}`, "# 报告"}}
	searcher := &fakeSearcher{fn: oneHitOutcome}
	e := NewEngineWithDeps(testConfig(), cm, searcher)

	out, err := e.Run(context.Background(), "research NVDA", func(line string) {
		panic("sink exploded")
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Tickers) != 1 || out.Report == "" {
		t.Errorf("output affected by panicking sink: %+v", out)
	}
}

func TestEngineTranscriptRecordsStages(t *testing.T) {
	cm := &mockChatModel{responses: []string{`{"base":"NVDA"}`, "# 报告"}}
	e := NewEngineWithDeps(testConfig(), cm, &fakeSearcher{fn: oneHitOutcome})

	out, err := e.Run(context.Background(), "research NVDA", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Transcript) == 0 {
		t.Fatal("Transcript is empty")
	}
	if !strings.HasPrefix(out.Transcript[0], string(StageResolving)) {
		t.Errorf("Transcript[0] = %q, want RESOLVING first", out.Transcript[0])
	}
	last := out.Transcript[len(out.Transcript)-1]
	if !strings.HasPrefix(last, string(StageDone)) {
		t.Errorf("last transcript line = %q, want DONE", last)
	}
}
