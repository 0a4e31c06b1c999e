package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/feed2pod/internal/app/convert"
	"github.com/John-Robertt/feed2pod/internal/config"
	"github.com/John-Robertt/feed2pod/internal/feedparse"
	"github.com/John-Robertt/feed2pod/internal/infra/fsx"
	"github.com/John-Robertt/feed2pod/internal/infra/httpx"
	"github.com/John-Robertt/feed2pod/internal/logger"
	"github.com/John-Robertt/feed2pod/internal/rss"
	"github.com/John-Robertt/feed2pod/internal/source"
)

// env 收拢进程级依赖，测试时替换为内存实现。
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getwd  func() (string, error)
}

func defaultEnv() env {
	return env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, getwd: os.Getwd}
}

func newRootCommand(e env) *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "feed2pod <url|path|->",
		Short: "把普通 RSS/Atom feed 转换为播客可订阅的 RSS 2.0",
		Long: `feed2pod 为每个条目找出一个音频资源（enclosure 或正文中的 <audio>），
输出只包含带音频条目的 RSS 2.0 文档。

来源可以是 http(s) URL、本地文件路径，或 "-"（标准输入）。
XML 写到标准输出（或 --filename 指定的文件），日志写到标准错误。
其余选项（配置文件、日志级别、缩进等）通过 FEED2POD_* 环境变量、.env
或 feed2pod.toml 提供。`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, e, filename, args[0])
		},
	}
	cmd.SetIn(e.stdin)
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)

	cmd.Flags().StringVar(&filename, "filename", "", "输出文件（原子写入）；默认写到标准输出")
	return cmd
}

func runConvert(cmd *cobra.Command, e env, filename, arg string) error {
	cwd, err := e.getwd()
	if err != nil {
		return fmt.Errorf("读取当前目录失败：%w", err)
	}

	eff, err := config.LoadEffective(cwd)
	if err != nil {
		return err
	}

	log := logger.New(e.stderr, eff.LogLevel)
	if eff.ConfigPath != "" {
		log.Debug("Config loaded", slog.String("path", eff.ConfigPath))
	}

	client, err := httpx.NewClient(httpx.ClientOptions{
		UserAgent: eff.UserAgent,
		Timeout:   eff.Timeout,
		RetryMax:  eff.RetryMax,
		ProxyURL:  eff.ProxyURL,
	})
	if err != nil {
		return &config.Error{Code: config.ErrCodeInvalid, Path: "proxy_url", Err: err}
	}

	opener := &source.Opener{Fetcher: httpx.NewFetcher(client, log), Stdin: e.stdin}
	conv := convert.New(opener, feedparse.NewParser(log), log, rss.Options{Indent: eff.Indent})

	res, err := conv.Convert(cmd.Context(), arg)
	if err != nil {
		return err
	}

	if out := strings.TrimSpace(filename); out != "" {
		if err := fsx.WriteFile(out, res.XML); err != nil {
			return fmt.Errorf("写入 %s 失败：%w", out, err)
		}
		return nil
	}
	if _, err := e.stdout.Write(append(res.XML, '\n')); err != nil {
		return fmt.Errorf("写入标准输出失败：%w", err)
	}
	return nil
}
