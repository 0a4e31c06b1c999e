package feedparse

import (
	"encoding/xml"
	"strings"

	"github.com/John-Robertt/feed2pod/internal/domain"
)

const (
	nsRSS10   = "http://purl.org/rss/1.0/"
	nsRSS090  = "http://my.netscape.com/rdf/simple/0.9/"
	nsContent = "http://purl.org/rss/1.0/modules/content/"
	nsDC      = "http://purl.org/dc/elements/1.1/"
	nsITunes  = "http://www.itunes.com/dtds/podcast-1.0.dtd"
)

// RSS 自身的元素：RSS 2.0 无命名空间，RSS 1.0/0.9 有默认命名空间。
var native = []string{"", nsRSS10, nsRSS090}

type rssDoc struct {
	Channel rssChannel `xml:"channel"`
}

// rdfDoc：RSS 1.0 的 item/image 与 channel 是兄弟节点。
type rdfDoc struct {
	Channel rssChannel `xml:"channel"`
	Images  []rssImage `xml:"image"`
	Items   []rssItem  `xml:"item"`
}

type rssChannel struct {
	Titles         []text     `xml:"title"`
	Links          []text     `xml:"link"`
	Descriptions   []text     `xml:"description"`
	PubDates       []text     `xml:"pubDate"`
	Authors        []text     `xml:"author"`
	ManagingEditor []text     `xml:"managingEditor"`
	Creators       []text     `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Generators     []text     `xml:"generator"`
	Images         []rssImage `xml:"image"`
	Items          []rssItem  `xml:"item"`
}

type rssImage struct {
	XMLName xml.Name
	URL     *string `xml:"url"`
	Title   *string `xml:"title"`
	Link    *string `xml:"link"`
	Width   *string `xml:"width"`
	Height  *string `xml:"height"`
}

type rssItem struct {
	Titles       []text         `xml:"title"`
	Links        []text         `xml:"link"`
	Descriptions []text         `xml:"description"`
	PubDates     []text         `xml:"pubDate"`
	Authors      []text         `xml:"author"`
	Creators     []text         `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Encoded      []text         `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	GUIDs        []rssGUID      `xml:"guid"`
	Enclosures   []rssEnclosure `xml:"enclosure"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

// toFeed 把频道与条目映射为 domain.Feed。extraImages 仅用于 RDF（image 在根下）。
func (c rssChannel) toFeed(items []rssItem, extraImages []rssImage) *domain.Feed {
	f := &domain.Feed{
		Title:       valueOr(pick(c.Titles, native...)),
		Link:        valueOr(pick(c.Links, native...)),
		Description: valueOr(pick(c.Descriptions, native...)),
		Published:   pick(c.PubDates, native...),
		Author: firstOf(
			pick(c.Authors, native...),
			pick(c.ManagingEditor, native...),
			pick(c.Creators, nsDC),
			pick(c.Authors, nsITunes),
		),
		Generator: pick(c.Generators, native...),
		Image:     pickImage(append(append([]rssImage(nil), c.Images...), extraImages...)),
		Entries:   make([]domain.Entry, 0, len(items)),
	}
	for _, it := range items {
		f.Entries = append(f.Entries, it.toEntry())
	}
	return f
}

// pickImage 只接受 RSS 自身的 <image>（<itunes:image href> 属于 podcast 元数据，不在这里处理）。
func pickImage(imgs []rssImage) *domain.Image {
	for _, img := range imgs {
		if !isNative(img.XMLName.Space) {
			continue
		}
		return &domain.Image{
			Href:   trimPtr(img.URL),
			Link:   trimPtr(img.Link),
			Title:  trimPtr(img.Title),
			Width:  parseDim(img.Width),
			Height: parseDim(img.Height),
		}
	}
	return nil
}

func (it rssItem) toEntry() domain.Entry {
	e := domain.Entry{
		Title:     valueOr(pick(it.Titles, native...)),
		Link:      pick(it.Links, native...),
		Published: pick(it.PubDates, native...),
		Summary:   pick(it.Descriptions, native...),
		Author: firstOf(
			pick(it.Authors, native...),
			pick(it.Creators, nsDC),
			pick(it.Authors, nsITunes),
		),
	}

	if len(it.GUIDs) > 0 {
		g := it.GUIDs[0]
		e.ID = trimmed(g.Value)
		// isPermaLink 缺省为 true：没有 <link> 时 guid 本身就是链接。
		if e.Link == nil && !strings.EqualFold(strings.TrimSpace(g.IsPermaLink), "false") && *e.ID != "" {
			e.Link = e.ID
		}
	}

	for _, enc := range it.Encoded {
		e.Content = append(e.Content, domain.ContentBlock{Type: "text/html", Value: strings.TrimSpace(enc.Value)})
	}
	for _, enc := range it.Enclosures {
		e.Enclosures = append(e.Enclosures, domain.Enclosure{
			Href:   strings.TrimSpace(enc.URL),
			Type:   strings.TrimSpace(enc.Type),
			Length: parseLength(enc.Length),
		})
	}
	return e
}

func isNative(space string) bool {
	for _, sp := range native {
		if space == sp {
			return true
		}
	}
	return false
}
