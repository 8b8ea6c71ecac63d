package research

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/Jamiexiao242/SignalDeck/internal/logger"
	"github.com/Jamiexiao242/SignalDeck/internal/search"
	"github.com/Jamiexiao242/SignalDeck/internal/ticker"
)

// maxRelated 相关代码的上限，防止任务扇出失控
const maxRelated = 3

// Resolution 主题解析结果。解析失败表示为 Base 为空，而不是错误。
type Resolution struct {
	Base    string
	Related []string
}

// Resolver 把自由文本主题解析为股票代码：
// 一次小模型分类调用，辅以确定性的正则回退和
// 兜底的“搜索发现”回退。
type Resolver struct {
	chatModel model.ChatModel
	searcher  search.Searcher
	limiter   *rate.Limiter
}

// NewResolver 创建解析器
func NewResolver(cm model.ChatModel, searcher search.Searcher, limiter *rate.Limiter) *Resolver {
	return &Resolver{chatModel: cm, searcher: searcher, limiter: limiter}
}

// 常见的指令式前缀，清洗主题时剥掉
var commandPrefixes = []string{
	"deep dive into",
	"deep dive on",
	"deep dive",
	"tell me about",
	"look up",
	"lookup",
	"research",
	"analyze",
	"analysis of",
	"report on",
	"report",
	"study",
}

// 尾部介词从句，存在时优先取其宾语
var prepositionClause = regexp.MustCompile(`(?i)\b(?:about|on|for|regarding|of)\s+(\S.*)$`)

var leadingArticle = regexp.MustCompile(`(?i)^(?:the|a|an)\s+`)

// 搜索发现用的三种代码书写形态，按置信度排序
var (
	parenTicker    = regexp.MustCompile(`\(([A-Z][A-Z0-9]{0,4}(?:[.-][A-Z0-9]{1,2})?)\)`)
	exchangeTicker = regexp.MustCompile(`(?:NYSE|NASDAQ|AMEX|OTC|TSX|LSE)\s*:\s*([A-Z][A-Z0-9]{0,4}(?:[.-][A-Z0-9]{1,2})?)`)
)

// CleanSubject 清洗主题文本：剥掉指令式前缀，
// 优先取尾部介词从句的宾语，去掉前导冠词和尾部标点。
func CleanSubject(text string) string {
	s := strings.TrimSpace(text)

	lower := strings.ToLower(s)
	for _, prefix := range commandPrefixes {
		if strings.HasPrefix(lower, prefix+" ") {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}

	if m := prepositionClause.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	s = leadingArticle.ReplaceAllString(s, "")
	s = strings.TrimRight(s, " \t.!?,;:")
	return strings.TrimSpace(s)
}

// Resolve 把主题文本解析为基准代码加相关代码。
// 任何一步失败都只会降级到下一种回退，绝不返回错误。
func (r *Resolver) Resolve(ctx context.Context, subject string) Resolution {
	cleaned := CleanSubject(subject)
	if cleaned == "" {
		return Resolution{}
	}

	// 显式写出的代码是低置信度候选，模型不可用时顶上
	explicit := ticker.ExtractExplicit(cleaned)

	raw, err := r.classify(ctx, cleaned)
	if err != nil {
		logger.Log.Warnf("代码分类调用失败 [%s]: %v", cleaned, err)
		if explicit != "" {
			return Resolution{Base: explicit}
		}
		if base := r.discover(ctx, cleaned); base != "" {
			return Resolution{Base: base}
		}
		return Resolution{}
	}

	res, ok := parseClassification(raw)
	if !ok {
		// 响应里找不到可用的 JSON 对象：对原始文本做正则扫描
		res = scanResolution(raw)
	}

	if res.Base == "" && explicit != "" {
		res.Base = explicit
	}
	if res.Base == "" {
		res.Base = r.discover(ctx, cleaned)
	}

	res.Related = dedupeRelated(res.Base, res.Related)
	if res.Base == "" {
		res.Related = nil
	}
	return res
}

const classifySystemPrompt = `你是一个股票代码分类器。把用户给出的研究主题映射为一个美股代码。
常见对照：Apple→AAPL，Microsoft→MSFT，Google/Alphabet→GOOGL，Amazon→AMZN，
Meta/Facebook→META，Nvidia→NVDA，Tesla→TSLA，Netflix→NFLX，Intel→INTC，AMD→AMD，
Berkshire→BRK.B，TSMC→TSM。
泛指大盘、科技板块或 AI 行情的主题映射到基准 ETF：大盘→SPY，科技/AI→QQQ。
只输出形如 {"base":"TICKER"} 的一个 JSON 对象，不要输出任何其他内容。`

// classify 发起一次模型分类调用，返回模型原始文本
func (r *Resolver) classify(ctx context.Context, cleaned string) (string, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: classifySystemPrompt},
		{Role: schema.User, Content: cleaned},
	}

	resp, err := r.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// parseClassification 宽松解析模型输出：取第一个 {...} 子串做 JSON 解码。
// 找不到可用对象时返回 ok=false 这个哨兵，绝不抛解析异常，
// 以保证正则回退路径一定可达。
func parseClassification(raw string) (Resolution, bool) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return Resolution{}, false
	}
	end := strings.Index(raw[start:], "}")
	if end < 0 {
		return Resolution{}, false
	}

	var payload struct {
		Base    string   `json:"base"`
		Related []string `json:"related"`
	}
	if err := json.Unmarshal([]byte(raw[start:start+end+1]), &payload); err != nil {
		return Resolution{}, false
	}

	base := ticker.Normalize(payload.Base)
	if !ticker.IsPlausible(base) {
		base = ""
	}

	var related []string
	for _, r := range payload.Related {
		token := ticker.Normalize(r)
		if ticker.IsPlausible(token) {
			related = append(related, token)
		}
	}
	return Resolution{Base: base, Related: related}, true
}

// scanResolution 对模型的自由文本做代码形态扫描，
// 第一个合法 token 作为基准，其余作为相关代码
func scanResolution(raw string) Resolution {
	tokens := ticker.ScanAll(raw)
	if len(tokens) == 0 {
		return Resolution{}
	}
	return Resolution{Base: tokens[0], Related: tokens[1:]}
}

// discover 兜底的搜索发现：查 "<主题> stock ticker"，
// 在结果的标题+摘要里依次找括号代码、交易所前缀代码、裸代码
func (r *Resolver) discover(ctx context.Context, cleaned string) string {
	if r.searcher == nil {
		return ""
	}

	outcome := r.searcher.Search(ctx, cleaned+" stock ticker")
	if outcome.Failed() {
		return ""
	}

	for _, result := range outcome.Results {
		text := result.Title + " " + result.Content
		if m := parenTicker.FindStringSubmatch(text); m != nil {
			if token := ticker.Normalize(m[1]); ticker.IsPlausible(token) {
				return token
			}
		}
		if m := exchangeTicker.FindStringSubmatch(text); m != nil {
			if token := ticker.Normalize(m[1]); ticker.IsPlausible(token) {
				return token
			}
		}
		if tokens := ticker.ScanAll(text); len(tokens) > 0 {
			return tokens[0]
		}
	}
	return ""
}

// dedupeRelated 去掉与基准重复的项并截断到上限
func dedupeRelated(base string, related []string) []string {
	var out []string
	seen := map[string]struct{}{base: {}}
	for _, r := range related {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
		if len(out) >= maxRelated {
			break
		}
	}
	return out
}
