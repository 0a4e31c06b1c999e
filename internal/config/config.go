package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// ErrCodeNotFound 表示 FEED2POD_CONFIG 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	FileName = "feed2pod.toml"
	DotEnv   = ".env"

	EnvConfig    = "FEED2POD_CONFIG"
	EnvUserAgent = "FEED2POD_USER_AGENT"
	EnvTimeout   = "FEED2POD_TIMEOUT"
	EnvRetryMax  = "FEED2POD_RETRY_MAX"
	EnvProxyURL  = "FEED2POD_PROXY_URL"
	EnvLogLevel  = "FEED2POD_LOG_LEVEL"
	EnvIndent    = "FEED2POD_INDENT"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultRetryMax = 0
	DefaultLogLevel = "warn"
	MaxRetry        = 5
)

// FileConfig 对应 feed2pod.toml 的解析结构。指针字段用于区分“未写”与“写了零值”。
type FileConfig struct {
	UserAgent string `toml:"user_agent"`
	Timeout   string `toml:"timeout"`
	RetryMax  *int   `toml:"retry_max"`
	ProxyURL  string `toml:"proxy_url"`
	LogLevel  string `toml:"log_level"`
	Indent    *bool  `toml:"indent"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；未读取任何文件时为空。
	ConfigPath string

	UserAgent string
	Timeout   time.Duration
	RetryMax  int
	ProxyURL  string
	LogLevel  string
	Indent    bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置，然后与环境变量合并为最终配置。
//
// 发现规则（固定）：
// 1) FEED2POD_CONFIG 指定了文件：必须存在
// 2) 否则尝试 <cwd>/feed2pod.toml（可选）
//
// 覆盖优先级（固定）：进程环境变量 > <cwd>/.env > 配置文件 > 默认值。
// .env 只作为补充来源，不会写回进程环境。
func LoadEffective(cwd string) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	env, err := newEnv(filepath.Join(cwdAbs, DotEnv))
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: filepath.Join(cwdAbs, DotEnv), Err: err}
	}

	explicit, _ := env.lookup(EnvConfig)

	var (
		cfgPath string
		fc      FileConfig
	)
	if explicit != "" {
		cfgPath = absCleanFrom(cwdAbs, explicit)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		p := filepath.Join(cwdAbs, FileName)
		var exists bool
		fc, exists, err = readFileConfig(p)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if exists {
			cfgPath = p
		}
	}

	return merge(env, fc, cfgPath)
}

func merge(env envSource, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		ConfigPath: cfgPath,
		UserAgent:  strings.TrimSpace(fc.UserAgent),
		Timeout:    DefaultTimeout,
		RetryMax:   DefaultRetryMax,
		ProxyURL:   strings.TrimSpace(fc.ProxyURL),
		LogLevel:   DefaultLogLevel,
		Indent:     true,
	}
	// invalid 统一标注错误来源（文件或环境变量名）。
	invalid := func(src string, err error) error {
		return &Error{Code: ErrCodeInvalid, Path: src, Err: err}
	}

	if s := strings.TrimSpace(fc.Timeout); s != "" {
		d, err := parseTimeout(s)
		if err != nil {
			return EffectiveConfig{}, invalid(cfgPath, err)
		}
		eff.Timeout = d
	}
	if fc.RetryMax != nil {
		eff.RetryMax = *fc.RetryMax
	}
	if s := strings.TrimSpace(fc.LogLevel); s != "" {
		eff.LogLevel = s
	}
	if fc.Indent != nil {
		eff.Indent = *fc.Indent
	}

	// 环境变量覆盖配置文件。
	if v, ok := env.lookup(EnvUserAgent); ok {
		eff.UserAgent = v
	}
	if v, ok := env.lookup(EnvTimeout); ok {
		d, err := parseTimeout(v)
		if err != nil {
			return EffectiveConfig{}, invalid(EnvTimeout, err)
		}
		eff.Timeout = d
	}
	if v, ok := env.lookup(EnvRetryMax); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return EffectiveConfig{}, invalid(EnvRetryMax, fmt.Errorf("retry_max 必须是整数：%q", v))
		}
		eff.RetryMax = n
	}
	if v, ok := env.lookup(EnvProxyURL); ok {
		eff.ProxyURL = v
	}
	if v, ok := env.lookup(EnvLogLevel); ok {
		eff.LogLevel = v
	}
	if v, ok := env.lookup(EnvIndent); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return EffectiveConfig{}, invalid(EnvIndent, fmt.Errorf("indent 必须是布尔值：%q", v))
		}
		eff.Indent = b
	}

	// 文档约定：retry_max 范围 [0, 5]；超出截断。
	if eff.RetryMax < 0 {
		eff.RetryMax = 0
	}
	if eff.RetryMax > MaxRetry {
		eff.RetryMax = MaxRetry
	}

	eff.LogLevel = strings.ToLower(eff.LogLevel)
	if err := validateLogLevel(eff.LogLevel); err != nil {
		return EffectiveConfig{}, invalid(orSource(cfgPath, "log_level"), err)
	}

	if eff.ProxyURL != "" {
		u, err := url.Parse(eff.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid(orSource(cfgPath, "proxy_url"), fmt.Errorf("proxy_url 无效：%q", eff.ProxyURL))
		}
	}
	return eff, nil
}

func validateLogLevel(l string) error {
	switch l {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log_level 只能是 debug/info/warn/error，实际是 %q", l)
	}
}

// parseTimeout 接受 Go duration（"30s"、"1m"）或纯秒数（"30"）；必须为正。
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var d time.Duration
	if n, err := strconv.Atoi(s); err == nil {
		d = time.Duration(n) * time.Second
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, fmt.Errorf("timeout 无效：%q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout 必须为正：%q", s)
	}
	return d, nil
}

func orSource(cfgPath, field string) string {
	if cfgPath == "" {
		return field
	}
	return cfgPath
}

// envSource 合并进程环境与 .env；进程环境优先。
type envSource struct {
	dotenv map[string]string
}

func newEnv(dotenvPath string) (envSource, error) {
	if _, err := os.Stat(dotenvPath); err != nil {
		if os.IsNotExist(err) {
			return envSource{}, nil
		}
		return envSource{}, err
	}
	m, err := godotenv.Read(dotenvPath)
	if err != nil {
		return envSource{}, err
	}
	return envSource{dotenv: m}, nil
}

// lookup 返回去空白后的值；空值视为未设置。
func (e envSource) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	if v, ok := e.dotenv[key]; ok {
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", false
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件；未知字段视为错误（多半是拼写错误）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
