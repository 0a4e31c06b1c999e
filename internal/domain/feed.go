package domain

// Feed 是解析后的频道级数据（一次转换内有效，用完即弃）。
//
// 约束：
// - Title/Link/Description 缺失时为空串（上游不规范不应导致转换失败）
// - 其余字段为可选：nil 表示上游没有该元素（与“存在但为空”区分开）
type Feed struct {
	Title       string
	Link        string
	Description string

	Published *string
	Author    *string
	Generator *string
	Image     *Image

	Entries []Entry
}

// Image 是频道图片。Width/Height 解析失败时视为缺失。
type Image struct {
	Href   *string
	Link   *string
	Title  *string
	Width  *int
	Height *int
}

// Entry 是单条条目。Content/Enclosures 保持上游顺序（规则按位置取第一个）。
type Entry struct {
	Title string

	ID        *string
	Link      *string
	Author    *string
	Published *string
	Summary   *string

	Content    []ContentBlock
	Enclosures []Enclosure
}

// Enclosure 是条目附件。Type 来自上游，不可信（可能为空或乱填）。
type Enclosure struct {
	Href   string
	Type   string
	Length *int64
}

// ContentBlock 是带 MIME 类型的正文块，Value 可能包含 HTML。
type ContentBlock struct {
	Type  string
	Value string
}

// Str 返回 s 的指针，便于构造可选字段。
func Str(s string) *string { return &s }

// Int64 返回 n 的指针。
func Int64(n int64) *int64 { return &n }

// Int 返回 n 的指针。
func Int(n int) *int { return &n }
