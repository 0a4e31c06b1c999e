package audio

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/feed2pod/internal/domain"
)

// Rule 是级联中命中的规则名（用于日志与 report 追溯）。
type Rule string

const (
	RuleNone           Rule = ""
	RuleEnclosureType  Rule = "enclosure_type"
	RuleEnclosureExt   Rule = "enclosure_ext"
	RuleHTMLSourceMPEG Rule = "html_source_mpeg"
	RuleHTMLSource     Rule = "html_source"
	RuleHTMLAudioSrc   Rule = "html_audio_src"
)

const (
	htmlType  = "text/html"
	mpegType  = "audio/mpeg"
	audioMark = "audio/"
)

// matcher 尝试从条目中选出音频；命中返回 ok=true。
type matcher func(e domain.Entry) (domain.Audio, Rule, bool)

// cascade 的顺序就是优先级，调整顺序会改变输出。
var cascade = []matcher{
	byEnclosureType,
	byEnclosureExt,
	byEmbeddedAudio,
}

// Resolve 为条目选出“最佳”音频资源；找不到时返回零值（URL 为空）。
//
// 约束：纯函数，相同输入 => 相同输出；不发请求、不做 HEAD 补长度。
func Resolve(e domain.Entry) domain.Audio {
	a, _ := ResolveTrace(e)
	return a
}

// ResolveTrace 与 Resolve 相同，但额外返回命中的规则（未命中为 RuleNone）。
func ResolveTrace(e domain.Entry) (domain.Audio, Rule) {
	for _, m := range cascade {
		if a, r, ok := m(e); ok {
			return a, r
		}
	}
	return domain.Audio{}, RuleNone
}

// byEnclosureType：第一个声明类型包含 "audio/" 的附件。
// 上游类型不可信，所以是子串匹配而不是完整 MIME 比较（例如 application/audio/x-custom 也算）。
func byEnclosureType(e domain.Entry) (domain.Audio, Rule, bool) {
	for _, enc := range e.Enclosures {
		if strings.Contains(enc.Type, audioMark) {
			return domain.Audio{URL: enc.Href, Type: domain.Str(enc.Type), Length: enc.Length}, RuleEnclosureType, true
		}
	}
	return domain.Audio{}, RuleNone, false
}

// byEnclosureExt：按扩展名兜底，类型视为未声明。
func byEnclosureExt(e domain.Entry) (domain.Audio, Rule, bool) {
	for _, enc := range e.Enclosures {
		if strings.HasSuffix(enc.Href, ".ogg") || strings.HasSuffix(enc.Href, ".mp3") {
			return domain.Audio{URL: enc.Href, Length: enc.Length}, RuleEnclosureExt, true
		}
	}
	return domain.Audio{}, RuleNone, false
}

// byEmbeddedAudio 在 text/html 正文里找 <audio>，是最后的手段。
func byEmbeddedAudio(e domain.Entry) (domain.Audio, Rule, bool) {
	for _, c := range e.Content {
		if c.Type != htmlType {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(c.Value))
		if err != nil {
			continue
		}
		if a, r, ok := fromAudioElement(doc.Find("audio").First()); ok {
			return a, r, true
		}
	}
	return domain.Audio{}, RuleNone, false
}

// fromAudioElement 在单个 <audio> 内部按优先级取值：
// 1) type="audio/mpeg" 的 <source>（兼容性最好）
// 2) 第一个 <source>
// 3) <audio src>
//
// 没有 src 的候选不算命中，继续往下走。
func fromAudioElement(audio *goquery.Selection) (domain.Audio, Rule, bool) {
	if audio.Length() == 0 {
		return domain.Audio{}, RuleNone, false
	}

	sources := audio.Find("source")

	mpeg := sources.FilterFunction(func(_ int, s *goquery.Selection) bool {
		t, ok := s.Attr("type")
		return ok && t == mpegType
	}).First()
	if src, ok := attr(mpeg, "src"); ok {
		return domain.Audio{URL: src, Type: domain.Str(mpegType)}, RuleHTMLSourceMPEG, true
	}

	first := sources.First()
	if src, ok := attr(first, "src"); ok {
		a := domain.Audio{URL: src}
		if t, ok := first.Attr("type"); ok {
			a.Type = domain.Str(t)
		}
		return a, RuleHTMLSource, true
	}

	if src, ok := attr(audio, "src"); ok {
		return domain.Audio{URL: src}, RuleHTMLAudioSrc, true
	}
	return domain.Audio{}, RuleNone, false
}

// attr 读取属性原值；空选择集、缺失或只有空白都视为不存在。
func attr(s *goquery.Selection, name string) (string, bool) {
	if s.Length() == 0 {
		return "", false
	}
	v, ok := s.Attr(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
