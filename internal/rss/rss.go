package rss

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/John-Robertt/feed2pod/internal/domain"
)

const (
	// Header 是固定的 XML 声明；紧跟其后就是 <rss>，中间没有换行。
	Header = `<?xml version="1.0" encoding="UTF-8"?>`

	// Generator 是 <generator> 的基础文本。
	Generator = "feed2pod"
)

// Options 控制序列化形态，不影响结构与文本内容。
type Options struct {
	// Indent=true 时两空格缩进；否则单行输出。
	Indent bool
}

// 字段顺序就是输出元素顺序（下游可能按位置取第一个），不要随意调整。
type document struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel channel  `xml:"channel"`
}

type channel struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	Description string  `xml:"description"`
	PubDate     *string `xml:"pubDate,omitempty"`
	Author      *string `xml:"author,omitempty"`
	Generator   string  `xml:"generator"`
	Image       *image  `xml:"image,omitempty"`
	Items       []item  `xml:"item"`
}

type image struct {
	Href   string  `xml:"href"`
	Title  string  `xml:"title"`
	Link   string  `xml:"link"`
	Width  *string `xml:"width,omitempty"`
	Height *string `xml:"height,omitempty"`
}

type item struct {
	Title       string    `xml:"title"`
	GUID        *guid     `xml:"guid,omitempty"`
	Author      *string   `xml:"author,omitempty"`
	Link        *string   `xml:"link,omitempty"`
	PubDate     *string   `xml:"pubDate,omitempty"`
	Description *string   `xml:"description,omitempty"`
	Enclosure   enclosure `xml:"enclosure"`
}

type guid struct {
	IsPermalink string `xml:"isPermalink,attr"`
	Value       string `xml:",chardata"`
}

// enclosure 没有内容；encoding/xml 总是输出成对标签，Encode 最后再改写为自闭合。
type enclosure struct {
	URL    string  `xml:"url,attr"`
	Type   *string `xml:"type,attr,omitempty"`
	Length string  `xml:"length,attr"`
}

// Encode 把解析后的 feed 与逐条解析结果序列化为 RSS 2.0。
//
// 规则：
// - 频道 title/link/description 总是输出（缺失则为空元素）
// - 没有音频的条目直接跳过，不报错
// - 输出是确定的：相同输入 => 字节级相同输出
func Encode(feed domain.Feed, entries []domain.ResolvedEntry, opts Options) ([]byte, error) {
	doc := document{
		Version: "2.0",
		Channel: buildChannel(feed),
	}
	for _, re := range entries {
		if !re.Audio.Found() {
			continue
		}
		doc.Channel.Items = append(doc.Channel.Items, buildItem(re.Entry, re.Audio))
	}

	var (
		b   []byte
		err error
	)
	if opts.Indent {
		b, err = xml.MarshalIndent(doc, "", "  ")
	} else {
		b, err = xml.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("rss: 序列化失败：%w", err)
	}
	// 文本与属性中的 '>' 已被转义，这里只会命中真正的结束标签。
	b = bytes.ReplaceAll(b, []byte("></enclosure>"), []byte("/>"))
	return append([]byte(Header), b...), nil
}

func buildChannel(feed domain.Feed) channel {
	ch := channel{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		PubDate:     feed.Published,
		Author:      emailOnly(feed.Author),
		Generator:   Generator,
	}
	if feed.Generator != nil {
		ch.Generator = fmt.Sprintf("%s (from: %s)", Generator, *feed.Generator)
	}
	if img := feed.Image; img != nil {
		ch.Image = &image{
			Href:   deref(img.Href),
			Title:  orElse(img.Title, feed.Title),
			Link:   orElse(img.Link, feed.Link),
			Width:  itoa(img.Width),
			Height: itoa(img.Height),
		}
	}
	return ch
}

func buildItem(e domain.Entry, a domain.Audio) item {
	it := item{
		Title:   e.Title,
		Author:  emailOnly(e.Author),
		Link:    e.Link,
		PubDate: e.Published,
		Enclosure: enclosure{
			URL:    a.URL,
			Type:   mediaType(a),
			Length: "0",
		},
	}
	if e.ID != nil {
		// isPermalink 的含义是“GUID 同时也是可访问链接”。
		perma := "false"
		if e.Link != nil && *e.ID == *e.Link {
			perma = "true"
		}
		it.GUID = &guid{IsPermalink: perma, Value: *e.ID}
	}
	if len(e.Content) > 0 {
		it.Description = domain.Str(e.Content[0].Value)
	} else if e.Summary != nil {
		it.Description = e.Summary
	}
	if a.Length != nil {
		it.Enclosure.Length = strconv.FormatInt(*a.Length, 10)
	}
	return it
}

// mediaType 返回最终的 MIME：解析结果优先，其次按扩展名推断，否则缺失。
func mediaType(a domain.Audio) *string {
	if a.Type != nil && *a.Type != "" {
		return a.Type
	}
	switch {
	case strings.HasSuffix(a.URL, ".mp3"):
		return domain.Str("audio/mpeg")
	case strings.HasSuffix(a.URL, ".ogg"):
		return domain.Str("audio/ogg")
	}
	return nil
}

// emailOnly：RSS 的 <author> 要求是邮箱，不像邮箱的就不输出。
func emailOnly(s *string) *string {
	if s == nil || !strings.Contains(*s, "@") {
		return nil
	}
	return s
}

func orElse(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func itoa(n *int) *string {
	if n == nil {
		return nil
	}
	return domain.Str(strconv.Itoa(*n))
}
