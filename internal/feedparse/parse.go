package feedparse

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/John-Robertt/feed2pod/internal/domain"
)

// Format 是识别出的 feed 格式（按根元素判断）。
type Format string

const (
	FormatUnknown Format = ""
	FormatRSS     Format = "rss"
	FormatRDF     Format = "rdf"
	FormatAtom    Format = "atom"
)

// ErrUnsupported 表示根元素不是 rss / rdf:RDF / feed。
var ErrUnsupported = errors.New("不支持的 feed 格式")

// Error 是解析阶段的可追溯错误，上层据此区分“抓取失败”与“解析失败”。
type Error struct {
	Format Format
	Err    error
}

func (e *Error) Error() string {
	if e.Format == FormatUnknown {
		return fmt.Sprintf("feed 解析失败：%v", e.Err)
	}
	return fmt.Sprintf("feed 解析失败（format=%s）：%v", e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Parser 把 RSS 2.0 / RSS 1.0 (RDF) / Atom 1.0 解码为 domain.Feed。
//
// 约束：
// - 宽松解析：HTML 实体（&nbsp; 等）与非 UTF-8 编码声明都能处理
// - 字段缺失不报错，只有“整体无法解析”才返回错误
// - 条目顺序保持文档顺序
type Parser struct {
	log *slog.Logger
}

func NewParser(log *slog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse 解码整个文档并返回 feed 与识别出的格式。
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*domain.Feed, Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, FormatUnknown, err
	}

	dec := newDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("文档为空或没有根元素")
			}
			p.log.Error("Error decoding feed", slog.Any("error", err))
			return nil, FormatUnknown, &Error{Err: err}
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		format, feed, err := decodeRoot(dec, se)
		if err != nil {
			p.log.Error("Error decoding feed",
				slog.String("format", string(format)),
				slog.String("root", se.Name.Local),
				slog.Any("error", err),
			)
			return nil, format, &Error{Format: format, Err: err}
		}
		p.log.Debug("Feed decoded",
			slog.String("format", string(format)),
			slog.Int("entries", len(feed.Entries)),
		)
		return feed, format, nil
	}
}

func decodeRoot(dec *xml.Decoder, se xml.StartElement) (Format, *domain.Feed, error) {
	switch strings.ToLower(se.Name.Local) {
	case "rss":
		var doc rssDoc
		if err := dec.DecodeElement(&doc, &se); err != nil {
			return FormatRSS, nil, err
		}
		return FormatRSS, doc.Channel.toFeed(doc.Channel.Items, nil), nil
	case "rdf":
		var doc rdfDoc
		if err := dec.DecodeElement(&doc, &se); err != nil {
			return FormatRDF, nil, err
		}
		return FormatRDF, doc.Channel.toFeed(doc.Items, doc.Images), nil
	case "feed":
		var doc atomFeed
		if err := dec.DecodeElement(&doc, &se); err != nil {
			return FormatAtom, nil, err
		}
		return FormatAtom, doc.toFeed(), nil
	default:
		return FormatUnknown, nil, fmt.Errorf("%w：根元素 <%s>", ErrUnsupported, se.Name.Local)
	}
}

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	// 现实中的 feed 经常带 HTML 实体或不规范的转义；宁可宽松也不要整体失败。
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// text 保留元素名，用于区分同名但不同命名空间的元素（例如 <author> 与 <itunes:author>）。
type text struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// pick 返回第一个命名空间属于 spaces 的元素文本；不存在返回 nil。
func pick(els []text, spaces ...string) *string {
	for _, el := range els {
		for _, sp := range spaces {
			if el.XMLName.Space == sp {
				return trimmed(el.Value)
			}
		}
	}
	return nil
}

func trimmed(s string) *string {
	return domain.Str(strings.TrimSpace(s))
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return trimmed(*s)
}

func firstOf(ss ...*string) *string {
	for _, s := range ss {
		if s != nil {
			return s
		}
	}
	return nil
}

func valueOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// parseLength 把上游声明的字节数转为整数；空串、负数、非数字都视为缺失。
func parseLength(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return domain.Int64(n)
}

func parseDim(s *string) *int {
	if s == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*s))
	if err != nil {
		return nil
	}
	return domain.Int(n)
}
