package convert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/John-Robertt/feed2pod/internal/audio"
	"github.com/John-Robertt/feed2pod/internal/domain"
	"github.com/John-Robertt/feed2pod/internal/feedparse"
	"github.com/John-Robertt/feed2pod/internal/rss"
	"github.com/John-Robertt/feed2pod/internal/source"
)

// Opener 打开 feed 来源（*source.Opener 满足它）。
type Opener interface {
	Open(ctx context.Context, arg string) (io.ReadCloser, source.Kind, error)
}

// Converter 串起一次转换：打开来源 -> 解析 -> 逐条解析音频 -> 序列化 RSS。
//
// 约束：
// - 单线程、按上游顺序处理条目
// - 条目找不到音频只计入 report，不算错误
// - 只有“打开/解析/序列化”失败才返回 error
type Converter struct {
	opener  Opener
	parser  *feedparse.Parser
	log     *slog.Logger
	options rss.Options

	now func() time.Time
}

func New(opener Opener, parser *feedparse.Parser, log *slog.Logger, opts rss.Options) *Converter {
	return &Converter{
		opener:  opener,
		parser:  parser,
		log:     log,
		options: opts,
		now:     time.Now,
	}
}

// Result 是一次转换的产物。
type Result struct {
	XML    []byte
	Report domain.Report
}

// Convert 执行一次转换。arg 可以是 http(s) URL、本地路径或 "-"。
func (c *Converter) Convert(ctx context.Context, arg string) (Result, error) {
	log := c.log.With(
		slog.String("component", "convert"),
		slog.String("run_id", uuid.NewString()),
	)
	rep := domain.Report{Source: arg, StartedAt: c.now()}

	rc, kind, err := c.opener.Open(ctx, arg)
	if err != nil {
		return Result{}, fmt.Errorf("打开 feed 失败：%w", err)
	}
	defer rc.Close()

	cr := &countingReader{r: rc}
	feed, format, err := c.parser.Parse(ctx, cr)
	if err != nil {
		return Result{}, err
	}
	rep.Format = string(format)
	log.Debug("Feed parsed",
		slog.String("op", "parse"),
		slog.String("kind", string(kind)),
		slog.String("format", rep.Format),
		slog.String("size", humanize.Bytes(uint64(cr.n))),
		slog.Int("entries", len(feed.Entries)),
	)

	resolved, items := resolveAll(feed.Entries, log)
	rep.Items = items

	out, err := rss.Encode(*feed, resolved, c.options)
	if err != nil {
		return Result{}, err
	}

	rep.FinishedAt = c.now()
	rep.Finalize()
	log.Info("Feed converted",
		slog.String("format", rep.Format),
		slog.Int("total", rep.Summary.Total),
		slog.Int("emitted", rep.Summary.Emitted),
		slog.Int("skipped", rep.Summary.Skipped),
		slog.String("output", humanize.Bytes(uint64(len(out)))),
		slog.Duration("duration", rep.FinishedAt.Sub(rep.StartedAt)),
	)
	return Result{XML: out, Report: rep}, nil
}

// resolveAll 逐条走音频级联；返回顺序与输入一致。
func resolveAll(entries []domain.Entry, log *slog.Logger) ([]domain.ResolvedEntry, []domain.EntryResult) {
	resolved := make([]domain.ResolvedEntry, 0, len(entries))
	items := make([]domain.EntryResult, 0, len(entries))
	for _, e := range entries {
		a, rule := audio.ResolveTrace(e)
		resolved = append(resolved, domain.ResolvedEntry{Entry: e, Audio: a})

		res := domain.EntryResult{Title: e.Title, Rule: string(rule), URL: a.URL}
		if a.Found() {
			res.Status = domain.StatusEmitted
		} else {
			res.Status = domain.StatusSkipped
			log.Debug("Entry skipped: no audio",
				slog.String("op", "resolve"),
				slog.String("title", e.Title),
			)
		}
		items = append(items, res)
	}
	return resolved, items
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
