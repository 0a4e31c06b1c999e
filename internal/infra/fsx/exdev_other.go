//go:build !unix

package fsx

// 非 unix 平台没有 EXDEV 语义，rename 失败原样返回。
func isEXDEV(err error) bool { return false }
