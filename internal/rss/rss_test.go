package rss

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/John-Robertt/feed2pod/internal/domain"
)

type rssOut struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel struct {
		Title       string    `xml:"title"`
		Link        string    `xml:"link"`
		Description string    `xml:"description"`
		PubDate     *string   `xml:"pubDate"`
		Author      *string   `xml:"author"`
		Generator   string    `xml:"generator"`
		Image       *imgOut   `xml:"image"`
		Items       []itemOut `xml:"item"`
	} `xml:"channel"`
}

type imgOut struct {
	Href   string  `xml:"href"`
	Title  string  `xml:"title"`
	Link   string  `xml:"link"`
	Width  *string `xml:"width"`
	Height *string `xml:"height"`
}

type itemOut struct {
	Title string `xml:"title"`
	GUID  *struct {
		IsPermalink string `xml:"isPermalink,attr"`
		Value       string `xml:",chardata"`
	} `xml:"guid"`
	Author      *string `xml:"author"`
	Link        *string `xml:"link"`
	PubDate     *string `xml:"pubDate"`
	Description *string `xml:"description"`
	Enclosure   struct {
		URL    string  `xml:"url,attr"`
		Type   *string `xml:"type,attr"`
		Length string  `xml:"length,attr"`
	} `xml:"enclosure"`
}

func decode(t *testing.T, b []byte) rssOut {
	t.Helper()
	var out rssOut
	if err := xml.Unmarshal(b, &out); err != nil {
		t.Fatalf("xml.Unmarshal 失败：%v\n%s", err, string(b))
	}
	return out
}

func minimalFeed() domain.Feed {
	return domain.Feed{Title: "T", Link: "http://x", Description: "D"}
}

func TestEncode_MinimalRoundTrip(t *testing.T) {
	entries := []domain.ResolvedEntry{{
		Entry: domain.Entry{Title: "E"},
		Audio: domain.Audio{URL: "a.mp3", Type: domain.Str("audio/mpeg"), Length: domain.Int64(100)},
	}}

	b, err := Encode(minimalFeed(), entries, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !bytes.HasPrefix(b, []byte(Header+`<rss version="2.0">`)) {
		t.Fatalf("XML 声明后必须紧跟 <rss version=\"2.0\">：%s", string(b))
	}
	if !strings.Contains(string(b), `<enclosure url="a.mp3" type="audio/mpeg" length="100"/>`) {
		t.Fatalf("enclosure 属性或顺序不符合预期：%s", string(b))
	}

	out := decode(t, b)
	if out.Version != "2.0" {
		t.Fatalf("version 不一致：%q", out.Version)
	}
	ch := out.Channel
	if ch.Title != "T" || ch.Link != "http://x" || ch.Description != "D" {
		t.Fatalf("频道字段不一致：%q %q %q", ch.Title, ch.Link, ch.Description)
	}
	if ch.Generator != "feed2pod" {
		t.Fatalf("generator 不一致：%q", ch.Generator)
	}
	if ch.PubDate != nil || ch.Author != nil || ch.Image != nil {
		t.Fatalf("未提供的可选字段不应输出：%+v", ch)
	}
	if len(ch.Items) != 1 {
		t.Fatalf("期望 1 个 item，实际 %d", len(ch.Items))
	}
	it := ch.Items[0]
	if it.Title != "E" {
		t.Fatalf("item title 不一致：%q", it.Title)
	}
	if it.GUID != nil || it.Author != nil || it.Link != nil || it.PubDate != nil || it.Description != nil {
		t.Fatalf("未提供的 item 字段不应输出：%+v", it)
	}
}

func TestEncode_SkipsEntriesWithoutAudio(t *testing.T) {
	entries := []domain.ResolvedEntry{
		{Entry: domain.Entry{Title: "none"}},
		{Entry: domain.Entry{Title: "ok"}, Audio: domain.Audio{URL: "ok.ogg"}},
	}
	out := decode(t, mustEncode(t, minimalFeed(), entries))
	if len(out.Channel.Items) != 1 || out.Channel.Items[0].Title != "ok" {
		t.Fatalf("没有音频的条目应被跳过：%+v", out.Channel.Items)
	}

	out = decode(t, mustEncode(t, minimalFeed(), entries[:1]))
	if len(out.Channel.Items) != 0 {
		t.Fatalf("期望 0 个 item，实际 %d", len(out.Channel.Items))
	}
	if out.Channel.Title != "T" {
		t.Fatalf("频道字段仍应输出")
	}
}

func TestEncode_ChannelAuthorRequiresAt(t *testing.T) {
	f := minimalFeed()
	f.Author = domain.Str("noreply")
	if out := decode(t, mustEncode(t, f, nil)); out.Channel.Author != nil {
		t.Fatalf("不像邮箱的 author 不应输出：%q", *out.Channel.Author)
	}

	f.Author = domain.Str("a@b.com")
	out := decode(t, mustEncode(t, f, nil))
	if out.Channel.Author == nil || *out.Channel.Author != "a@b.com" {
		t.Fatalf("邮箱形式的 author 应输出：%v", out.Channel.Author)
	}
}

func TestEncode_ChannelOptionalFields(t *testing.T) {
	f := minimalFeed()
	f.Published = domain.Str("Mon, 02 Jan 2006 15:04:05 GMT")
	f.Generator = domain.Str("WordPress 6.4")
	f.Image = &domain.Image{
		Href:  domain.Str("http://x/logo.png"),
		Title: domain.Str(""),
		Width: domain.Int(144),
	}

	out := decode(t, mustEncode(t, f, nil))
	ch := out.Channel
	if ch.PubDate == nil || *ch.PubDate != "Mon, 02 Jan 2006 15:04:05 GMT" {
		t.Fatalf("pubDate 不一致：%v", ch.PubDate)
	}
	if ch.Generator != "feed2pod (from: WordPress 6.4)" {
		t.Fatalf("generator 不一致：%q", ch.Generator)
	}
	if ch.Image == nil {
		t.Fatalf("image 应输出")
	}
	if ch.Image.Href != "http://x/logo.png" {
		t.Fatalf("image href 不一致：%q", ch.Image.Href)
	}
	// title 为空串、link 缺失：都回退到频道值。
	if ch.Image.Title != "T" || ch.Image.Link != "http://x" {
		t.Fatalf("image title/link 回退不正确：%q %q", ch.Image.Title, ch.Image.Link)
	}
	if ch.Image.Width == nil || *ch.Image.Width != "144" {
		t.Fatalf("image width 不一致：%v", ch.Image.Width)
	}
	if ch.Image.Height != nil {
		t.Fatalf("未提供 height 时不应输出")
	}
}

func TestEncode_ChannelElementOrder(t *testing.T) {
	f := minimalFeed()
	f.Published = domain.Str("p")
	f.Author = domain.Str("a@b.c")
	f.Image = &domain.Image{Href: domain.Str("h")}
	s := string(mustEncode(t, f, []domain.ResolvedEntry{{Entry: domain.Entry{Title: "E"}, Audio: domain.Audio{URL: "a.mp3"}}}))

	order := []string{"<title>T", "<link>", "<description>", "<pubDate>", "<author>", "<generator>", "<image>", "<item>"}
	last := -1
	for _, tag := range order {
		i := strings.Index(s, tag)
		if i < 0 {
			t.Fatalf("缺少 %s：%s", tag, s)
		}
		if i <= last {
			t.Fatalf("%s 顺序不正确：%s", tag, s)
		}
		last = i
	}
}

func TestEncode_ItemFields(t *testing.T) {
	e := domain.Entry{
		Title:     "E",
		ID:        domain.Str("http://x/1"),
		Link:      domain.Str("http://x/1"),
		Author:    domain.Str("me@x"),
		Published: domain.Str("Tue, 03 Jan 2006 12:00:00 GMT"),
		Summary:   domain.Str("summary"),
		Content:   []domain.ContentBlock{{Type: "text/html", Value: "<p>body</p>"}, {Type: "text/plain", Value: "second"}},
	}
	out := decode(t, mustEncode(t, minimalFeed(), []domain.ResolvedEntry{{Entry: e, Audio: domain.Audio{URL: "a.bin"}}}))
	it := out.Channel.Items[0]

	if it.GUID == nil || it.GUID.Value != "http://x/1" || it.GUID.IsPermalink != "true" {
		t.Fatalf("guid 不一致：%+v", it.GUID)
	}
	if it.Author == nil || *it.Author != "me@x" {
		t.Fatalf("author 不一致：%v", it.Author)
	}
	if it.Link == nil || *it.Link != "http://x/1" {
		t.Fatalf("link 不一致：%v", it.Link)
	}
	if it.PubDate == nil || *it.PubDate != "Tue, 03 Jan 2006 12:00:00 GMT" {
		t.Fatalf("pubDate 不一致：%v", it.PubDate)
	}
	// 有正文时用第一个正文块，而不是 summary。
	if it.Description == nil || *it.Description != "<p>body</p>" {
		t.Fatalf("description 不一致：%v", it.Description)
	}
	// 无法推断类型：不输出 type 属性；长度缺失时为 "0"。
	if it.Enclosure.URL != "a.bin" || it.Enclosure.Type != nil || it.Enclosure.Length != "0" {
		t.Fatalf("enclosure 不一致：%+v", it.Enclosure)
	}
}

func TestEncode_ItemElementOrder(t *testing.T) {
	e := domain.Entry{
		Title:     "E",
		ID:        domain.Str("g-1"),
		Author:    domain.Str("me@x"),
		Link:      domain.Str("http://x/1"),
		Published: domain.Str("p"),
		Summary:   domain.Str("s"),
	}
	s := string(mustEncode(t, minimalFeed(), []domain.ResolvedEntry{{Entry: e, Audio: domain.Audio{URL: "a.mp3"}}}))
	s = s[strings.Index(s, "<item>"):]

	order := []string{"<title>E", "<guid ", "<author>", "<link>", "<pubDate>", "<description>", "<enclosure ", "</item>"}
	last := -1
	for _, tag := range order {
		i := strings.Index(s, tag)
		if i < 0 {
			t.Fatalf("缺少 %s：%s", tag, s)
		}
		if i <= last {
			t.Fatalf("%s 顺序不正确：%s", tag, s)
		}
		last = i
	}
}

func TestEncode_EnclosureSelfClosing(t *testing.T) {
	entries := []domain.ResolvedEntry{
		{Entry: domain.Entry{Title: "a"}, Audio: domain.Audio{URL: "a.mp3"}},
		{Entry: domain.Entry{Title: "b"}, Audio: domain.Audio{URL: "b.bin", Length: domain.Int64(7)}},
	}
	for _, indent := range []bool{false, true} {
		b, err := Encode(minimalFeed(), entries, Options{Indent: indent})
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		s := string(b)
		if strings.Contains(s, "</enclosure>") {
			t.Fatalf("indent=%v：enclosure 应为自闭合：%s", indent, s)
		}
		if !strings.Contains(s, `<enclosure url="a.mp3" type="audio/mpeg" length="0"/>`) ||
			!strings.Contains(s, `<enclosure url="b.bin" length="7"/>`) {
			t.Fatalf("indent=%v：enclosure 输出不符合预期：%s", indent, s)
		}
		decode(t, b)
	}
}

func TestEncode_GUIDNotPermalink(t *testing.T) {
	cases := []domain.Entry{
		{Title: "a", ID: domain.Str("tag:x,2024:1"), Link: domain.Str("http://x/1")},
		{Title: "b", ID: domain.Str("http://x/1")},
	}
	for _, e := range cases {
		out := decode(t, mustEncode(t, minimalFeed(), []domain.ResolvedEntry{{Entry: e, Audio: domain.Audio{URL: "a.mp3"}}}))
		g := out.Channel.Items[0].GUID
		if g == nil || g.IsPermalink != "false" {
			t.Fatalf("%s：期望 isPermalink=false，实际 %+v", e.Title, g)
		}
	}
}

func TestEncode_DescriptionFallsBackToSummary(t *testing.T) {
	e := domain.Entry{Title: "E", Summary: domain.Str("just a summary"), Author: domain.Str("nobody")}
	out := decode(t, mustEncode(t, minimalFeed(), []domain.ResolvedEntry{{Entry: e, Audio: domain.Audio{URL: "a.mp3"}}}))
	it := out.Channel.Items[0]
	if it.Description == nil || *it.Description != "just a summary" {
		t.Fatalf("description 应回退到 summary：%v", it.Description)
	}
	if it.Author != nil {
		t.Fatalf("不像邮箱的 author 不应输出")
	}
}

func TestEncode_TypeInferredFromExtension(t *testing.T) {
	entries := []domain.ResolvedEntry{
		{Entry: domain.Entry{Title: "mp3"}, Audio: domain.Audio{URL: "http://x/a.mp3", Length: domain.Int64(5)}},
		{Entry: domain.Entry{Title: "ogg"}, Audio: domain.Audio{URL: "http://x/b.ogg"}},
		{Entry: domain.Entry{Title: "declared"}, Audio: domain.Audio{URL: "http://x/c.mp3", Type: domain.Str("audio/x-custom")}},
	}
	out := decode(t, mustEncode(t, minimalFeed(), entries))
	want := []string{"audio/mpeg", "audio/ogg", "audio/x-custom"}
	for i, it := range out.Channel.Items {
		if it.Enclosure.Type == nil || *it.Enclosure.Type != want[i] {
			t.Fatalf("item[%d] type 期望 %q，实际 %v", i, want[i], it.Enclosure.Type)
		}
	}
	if out.Channel.Items[0].Enclosure.Length != "5" {
		t.Fatalf("length 不一致：%q", out.Channel.Items[0].Enclosure.Length)
	}
}

func TestEncode_MissingChannelFieldsAreEmpty(t *testing.T) {
	b := mustEncode(t, domain.Feed{}, nil)
	s := string(b)
	for _, tag := range []string{"<title></title>", "<link></link>", "<description></description>"} {
		if !strings.Contains(s, tag) {
			t.Fatalf("缺失的频道字段应输出为空元素 %s：%s", tag, s)
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	f := minimalFeed()
	f.Generator = domain.Str("g")
	entries := []domain.ResolvedEntry{
		{Entry: domain.Entry{Title: "1", ID: domain.Str("1")}, Audio: domain.Audio{URL: "1.mp3"}},
		{Entry: domain.Entry{Title: "2"}, Audio: domain.Audio{URL: "2.ogg", Length: domain.Int64(9)}},
	}
	for _, opts := range []Options{{Indent: false}, {Indent: true}} {
		a, err := Encode(f, entries, opts)
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		b, err := Encode(f, entries, opts)
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("两次输出不一致（indent=%v）", opts.Indent)
		}
	}
}

func TestEncode_IndentKeepsStructure(t *testing.T) {
	entries := []domain.ResolvedEntry{{Entry: domain.Entry{Title: "E"}, Audio: domain.Audio{URL: "a.mp3"}}}
	flat := decode(t, mustEncode(t, minimalFeed(), entries))

	b, err := Encode(minimalFeed(), entries, Options{Indent: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !bytes.HasPrefix(b, []byte(Header+"<rss")) {
		t.Fatalf("缩进模式下声明后也必须紧跟 <rss>")
	}
	ind := decode(t, b)
	if ind.Channel.Title != flat.Channel.Title || len(ind.Channel.Items) != len(flat.Channel.Items) {
		t.Fatalf("缩进不应改变结构")
	}
}

func TestEncode_EscapesText(t *testing.T) {
	f := minimalFeed()
	f.Title = `Tom & Jerry <live>`
	out := decode(t, mustEncode(t, f, nil))
	if out.Channel.Title != f.Title {
		t.Fatalf("文本应被正确转义并可还原：%q", out.Channel.Title)
	}
}

func mustEncode(t *testing.T, f domain.Feed, entries []domain.ResolvedEntry) []byte {
	t.Helper()
	b, err := Encode(f, entries, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	return b
}
