package research

import "github.com/Jamiexiao242/SignalDeck/internal/search"

// Stage 一次研究调用所经历的阶段，按序推进
type Stage string

const (
	StageResolving Stage = "RESOLVING"
	StageSearching Stage = "SEARCHING"
	StageAnalyzing Stage = "ANALYZING"
	StageDrafting  Stage = "DRAFTING"
	StageDone      Stage = "DONE"
)

// topicQueries 固定的五个研究角度，顺序决定报告内的展示顺序
var topicQueries = []string{
	"news",
	"company fundamentals",
	"earnings",
	"valuation",
	"risks",
}

// topicLabels 与 topicQueries 一一对应的短标签
var topicLabels = []string{"news", "fundamentals", "earnings", "valuation", "risks"}

// Task 一个搜索工作单元。任务全集是“研究目标 × 固定话题表”的笛卡尔积。
type Task struct {
	// Target 研究目标：已解析的代码，或解析彻底失败时的原始主题文本
	Target     string
	Topic      string
	TopicIndex int
	// Query 即 "<target> <topic>"
	Query string
}

// TaskResult 已完成的搜索任务。
// Status 是从搜索错误类别与结果数推导出的可读摘要，
// 结果健康时为空串。
type TaskResult struct {
	Target     string          `json:"target"`
	Query      string          `json:"query"`
	TopicIndex int             `json:"topic_index"`
	Status     string          `json:"status,omitempty"`
	Results    []search.Result `json:"results"`
}

// TickerResult 按目标聚合的结果，Searches 恒按 TopicIndex 升序
type TickerResult struct {
	Symbol   string       `json:"symbol"`
	Searches []TaskResult `json:"searches"`
}

// Chart 可渲染的图表占位描述，由外部组件负责具体渲染
type Chart struct {
	Symbol string `json:"symbol,omitempty"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
}

// Output 编排器的最终产物
type Output struct {
	Tickers       []string       `json:"tickers"`
	Report        string         `json:"report"`
	Charts        []Chart        `json:"charts"`
	TickerResults []TickerResult `json:"ticker_results"`
	Transcript    []string       `json:"transcript"`
}

// ProgressFunc 进度回调：每个阶段转换与每个搜索任务前后各收到一行。
// 回调只负责观察，不参与控制流；为 nil 时等价于不上报。
type ProgressFunc func(line string)
