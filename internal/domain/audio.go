package domain

// Audio 是为某个条目选出的音频资源。
//
// URL 为空表示未找到（该条目不输出 <item>）；Type/Length 为 nil 表示上游未声明。
type Audio struct {
	URL    string
	Type   *string
	Length *int64
}

// Found 报告是否选出了音频资源。
func (a Audio) Found() bool { return a.URL != "" }

// ResolvedEntry 把条目与其解析结果配对，按上游顺序交给 RSS 构建。
type ResolvedEntry struct {
	Entry Entry
	Audio Audio
}
