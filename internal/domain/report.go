package domain

import (
	"time"
)

const (
	StatusEmitted = "emitted"
	StatusSkipped = "skipped"
)

// Report 是一次转换的摘要（只用于日志，不写入 XML）。
type Report struct {
	Source string `json:"source"`
	Format string `json:"format"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []EntryResult `json:"items"`
}

type ReportSummary struct {
	Total   int `json:"total"`
	Emitted int `json:"emitted"`
	Skipped int `json:"skipped"`
}

// EntryResult 记录单条条目的处理结果。Rule 为命中的级联规则名，未命中为空。
type EntryResult struct {
	Title  string `json:"title"`
	Status string `json:"status"`
	Rule   string `json:"rule"`
	URL    string `json:"url"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC
// 2) summary 由 items 计算得出
//
// 注意：items 不排序，必须保持上游条目顺序。
func (r *Report) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	s := ReportSummary{Total: len(r.Items)}
	for _, it := range r.Items {
		switch it.Status {
		case StatusEmitted:
			s.Emitted++
		case StatusSkipped:
			s.Skipped++
		}
	}
	r.Summary = s
}
