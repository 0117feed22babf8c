package node

import "unicode/utf8"

// TruncateMessage 将模型或存储返回的错误文本截到 maxRunes 个字符以内
// 被截断时以 suffix 结尾，suffix 计入长度
func TruncateMessage(s string, maxRunes int, suffix string) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	keep := maxRunes - utf8.RuneCountInString(suffix)
	if keep <= 0 {
		return prefixRunes(suffix, maxRunes)
	}
	return prefixRunes(s, keep) + suffix
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
