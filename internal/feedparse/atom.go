package feedparse

import (
	"bytes"
	"strings"

	"github.com/John-Robertt/feed2pod/internal/domain"
)

type atomFeed struct {
	Title     *atomText    `xml:"http://www.w3.org/2005/Atom title"`
	Subtitle  *atomText    `xml:"http://www.w3.org/2005/Atom subtitle"`
	Links     []atomLink   `xml:"http://www.w3.org/2005/Atom link"`
	Authors   []atomPerson `xml:"http://www.w3.org/2005/Atom author"`
	Generator *string      `xml:"http://www.w3.org/2005/Atom generator"`
	Logo      *string      `xml:"http://www.w3.org/2005/Atom logo"`
	Entries   []atomEntry  `xml:"http://www.w3.org/2005/Atom entry"`
}

type atomEntry struct {
	Title     *atomText    `xml:"http://www.w3.org/2005/Atom title"`
	ID        *string      `xml:"http://www.w3.org/2005/Atom id"`
	Links     []atomLink   `xml:"http://www.w3.org/2005/Atom link"`
	Authors   []atomPerson `xml:"http://www.w3.org/2005/Atom author"`
	Published *string      `xml:"http://www.w3.org/2005/Atom published"`
	Summary   *atomText    `xml:"http://www.w3.org/2005/Atom summary"`
	Content   []atomText   `xml:"http://www.w3.org/2005/Atom content"`
}

// atomText 保留原始内层 XML：xhtml 需要原样保留标签，html/text 需要再解码一次转义。
type atomText struct {
	Type  string `xml:"type,attr"`
	Inner string `xml:",innerxml"`
}

type atomLink struct {
	Href   string `xml:"href,attr"`
	Rel    string `xml:"rel,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

type atomPerson struct {
	Name  string `xml:"http://www.w3.org/2005/Atom name"`
	Email string `xml:"http://www.w3.org/2005/Atom email"`
}

func (f atomFeed) toFeed() *domain.Feed {
	out := &domain.Feed{
		Title:       f.Title.value(),
		Link:        valueOr(alternateLink(f.Links)),
		Description: f.Subtitle.value(),
		Author:      firstAuthor(f.Authors),
		Generator:   trimPtr(f.Generator),
		Entries:     make([]domain.Entry, 0, len(f.Entries)),
	}
	if logo := trimPtr(f.Logo); logo != nil {
		out.Image = &domain.Image{Href: logo}
	}
	for _, e := range f.Entries {
		out.Entries = append(out.Entries, e.toEntry())
	}
	return out
}

func (e atomEntry) toEntry() domain.Entry {
	out := domain.Entry{
		Title:     e.Title.value(),
		ID:        trimPtr(e.ID),
		Link:      alternateLink(e.Links),
		Author:    firstAuthor(e.Authors),
		Published: trimPtr(e.Published),
	}
	if e.Summary != nil {
		out.Summary = domain.Str(e.Summary.value())
	}
	for i := range e.Content {
		c := &e.Content[i]
		out.Content = append(out.Content, domain.ContentBlock{Type: c.mediaType(), Value: c.value()})
	}
	for _, l := range e.Links {
		if strings.TrimSpace(l.Rel) != "enclosure" {
			continue
		}
		out.Enclosures = append(out.Enclosures, domain.Enclosure{
			Href:   strings.TrimSpace(l.Href),
			Type:   strings.TrimSpace(l.Type),
			Length: parseLength(l.Length),
		})
	}
	return out
}

// mediaType 把 Atom 的 type 简写映射为 MIME；其它值原样透传。
func (t *atomText) mediaType() string {
	switch strings.TrimSpace(t.Type) {
	case "", "text":
		return "text/plain"
	case "html":
		return "text/html"
	case "xhtml":
		return "application/xhtml+xml"
	default:
		return strings.TrimSpace(t.Type)
	}
}

// value 返回解码后的文本；nil 接收者返回空串。
func (t *atomText) value() string {
	if t == nil {
		return ""
	}
	if strings.TrimSpace(t.Type) == "xhtml" {
		return unwrapDiv(strings.TrimSpace(t.Inner))
	}
	return strings.TrimSpace(unescapeInner(t.Inner))
}

// unescapeInner 把内层 XML 重新按字符数据解码（处理 &lt; 转义与 CDATA）。
// 解码失败时原样返回，避免丢内容。
func unescapeInner(inner string) string {
	if !strings.ContainsAny(inner, "&<") {
		return inner
	}
	dec := newDecoder(strings.NewReader("<v>" + inner + "</v>"))
	var v struct {
		Text string `xml:",chardata"`
	}
	if err := dec.Decode(&v); err != nil {
		return inner
	}
	return v.Text
}

// unwrapDiv 去掉 xhtml 内容外层的 <div xmlns="...">（Atom 规范要求的包装）。
func unwrapDiv(s string) string {
	if !strings.HasPrefix(s, "<div") || !strings.HasSuffix(s, "</div>") {
		return s
	}
	i := strings.IndexByte(s, '>')
	if i < 0 {
		return s
	}
	return strings.TrimSpace(s[i+1 : len(s)-len("</div>")])
}

// alternateLink：rel 缺省或为 alternate 的第一个链接。
func alternateLink(links []atomLink) *string {
	for _, l := range links {
		rel := strings.TrimSpace(l.Rel)
		if rel == "" || rel == "alternate" {
			return trimmed(l.Href)
		}
	}
	return nil
}

// firstAuthor 采用 "name (email)" 的约定；只有其一时用其一。
func firstAuthor(people []atomPerson) *string {
	for _, p := range people {
		name := strings.TrimSpace(p.Name)
		email := strings.TrimSpace(p.Email)
		switch {
		case name != "" && email != "":
			var b bytes.Buffer
			b.WriteString(name)
			b.WriteString(" (")
			b.WriteString(email)
			b.WriteString(")")
			return domain.Str(b.String())
		case name != "":
			return domain.Str(name)
		case email != "":
			return domain.Str(email)
		}
	}
	return nil
}
