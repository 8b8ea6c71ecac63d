package research

import "sync"

// Transcript 一次研究调用内部的阶段记录。
// 显式传入各阶段、只允许追加，结束时 Commit 固化，
// 避免把过程状态藏在共享可变结构里。
type Transcript struct {
	mu        sync.Mutex
	lines     []string
	committed bool
}

// NewTranscript 创建空记录
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append 追加一行。Commit 之后的追加会被忽略。
func (t *Transcript) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed {
		return
	}
	t.lines = append(t.lines, line)
}

// Commit 固化并返回全部记录，之后记录不再变化
func (t *Transcript) Commit() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = true
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}
