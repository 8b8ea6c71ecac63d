package ticker

import (
	"regexp"
	"strings"
)

// 股票代码的基本形态：1-5 位字母数字，可带一段 .X / -X 后缀（如 BRK.B、RDS-A）
var shapePattern = regexp.MustCompile(`^[A-Z0-9]{1,5}(?:[.-][A-Z0-9]{1,2})?$`)

// cashTagPattern 匹配 $NVDA 这类 cash-tag，置信度最高
var cashTagPattern = regexp.MustCompile(`\$([A-Za-z]{1,5}(?:[.-][A-Za-z0-9]{1,2})?)`)

// barePattern 匹配文本中裸露的大写代码
var barePattern = regexp.MustCompile(`\b[A-Z]{1,5}(?:[.-][A-Z0-9]{1,2})?\b`)

var invalidChars = regexp.MustCompile(`[^A-Z0-9.\-]`)

// stoplist 形态合法但几乎不可能是股票代码的常见缩写。
// 仅靠形态正则会把大量英文缩写误判为代码，误判会静默污染
// 下游的代码解析，所以这份清单是正确性组件而非美化。
var stoplist = map[string]struct{}{
	"A&P": {}, "AI": {}, "AM": {}, "API": {}, "CEO": {}, "CFO": {},
	"CPI": {}, "ETF": {}, "EPS": {}, "ESG": {}, "EUR": {}, "FAQ": {},
	"FED": {}, "GAAP": {}, "GDP": {}, "I": {}, "INC": {}, "IPO": {}, "LLC": {},
	"LLM": {}, "NYSE": {}, "OTC": {}, "PE": {}, "PM": {}, "Q1": {},
	"Q2": {}, "Q3": {}, "Q4": {}, "SEC": {}, "USA": {}, "USD": {},
	"YOY": {}, "YTD": {},
}

// Normalize 将原始文本清洗为规范的代码 token：
// 大写、去掉 [A-Z0-9.-] 以外的字符、去掉前导点。
// 纯函数，永不失败，空输入返回空 token。
func Normalize(raw string) string {
	token := strings.ToUpper(strings.TrimSpace(raw))
	token = invalidChars.ReplaceAllString(token, "")
	token = strings.TrimPrefix(token, ".")
	return strings.TrimSpace(token)
}

// IsPlausible 判断 token 是否形态合法且不在停用词表内
func IsPlausible(token string) bool {
	if !shapePattern.MatchString(token) {
		return false
	}
	_, stopped := stoplist[token]
	return !stopped
}

// ExtractExplicit 从文本中提取显式写出的代码。
// 优先找 $TICKER cash-tag，其次找第一个形态合法的裸大写 token。
// 返回归一化且通过校验的结果，找不到返回空串。
func ExtractExplicit(text string) string {
	if m := cashTagPattern.FindStringSubmatch(text); m != nil {
		token := Normalize(m[1])
		if IsPlausible(token) {
			return token
		}
	}
	for _, m := range barePattern.FindAllString(text, -1) {
		token := Normalize(m)
		if IsPlausible(token) {
			return token
		}
	}
	return ""
}

// ScanAll 扫描文本中所有形态合法的代码 token，按出现顺序去重返回
func ScanAll(text string) []string {
	var tokens []string
	seen := make(map[string]struct{})
	for _, m := range barePattern.FindAllString(text, -1) {
		token := Normalize(m)
		if !IsPlausible(token) {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}
