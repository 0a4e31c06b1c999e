package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stdin 是命令行中表示“从标准输入读取”的占位参数。
const Stdin = "-"

// Kind 描述 feed 原文的来源类型（写入日志与报告）。
type Kind string

const (
	KindHTTP  Kind = "http"
	KindFile  Kind = "file"
	KindStdin Kind = "stdin"
)

// Fetcher 是远程抓取的最小接口（*httpx.Fetcher 满足它）。
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Opener 按参数形态把 feed 来源统一为 io.ReadCloser。
type Opener struct {
	Fetcher Fetcher
	Stdin   io.Reader
}

// Classify 判断参数属于哪种来源：http(s) URL、"-" 或本地路径。
func Classify(arg string) Kind {
	a := strings.TrimSpace(arg)
	if a == Stdin {
		return KindStdin
	}
	lower := strings.ToLower(a)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return KindHTTP
	}
	return KindFile
}

// Open 打开来源。调用方负责 Close；stdin 的 Close 不会关闭进程的标准输入。
func (o *Opener) Open(ctx context.Context, arg string) (io.ReadCloser, Kind, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, "", fmt.Errorf("feed 来源为空")
	}

	switch kind := Classify(arg); kind {
	case KindStdin:
		in := o.Stdin
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), kind, nil
	case KindHTTP:
		if o.Fetcher == nil {
			return nil, kind, fmt.Errorf("未配置 HTTP 抓取器，无法打开 %s", arg)
		}
		rc, err := o.Fetcher.Fetch(ctx, arg)
		if err != nil {
			return nil, kind, err
		}
		return rc, kind, nil
	default:
		f, err := os.Open(arg)
		if err != nil {
			return nil, kind, fmt.Errorf("打开本地 feed 失败：%w", err)
		}
		return f, kind, nil
	}
}
