package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	idPattern       = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	identityPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:@-]+$`)
	hashPattern     = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// SanitizeString 清理字符串，移除或转义危险字符
func SanitizeString(input string) string {
	// 1. HTML 转义，防止 XSS
	sanitized := html.EscapeString(input)

	// 2. 移除控制字符（除了换行符和制表符）
	var result strings.Builder
	for _, r := range sanitized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}

// ValidateID 验证任务/提交 ID 格式
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(id) > 64 {
		return ErrIDTooLong
	}
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}
	return nil
}

// ValidateIdentity 验证调用方身份格式,允许 "component:escrow" 这类组件身份
func ValidateIdentity(identity string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}
	if len(identity) > 128 {
		return ErrIdentityTooLong
	}
	if !identityPattern.MatchString(identity) {
		return ErrInvalidIdentity
	}
	return nil
}

// ValidateContentHash 验证内容引用哈希,由内容存储返回的十六进制或 base58 字符串
func ValidateContentHash(hash string) error {
	if hash == "" {
		return ErrEmptyHash
	}
	if len(hash) > 128 {
		return ErrHashTooLong
	}
	if !hashPattern.MatchString(hash) {
		return ErrInvalidHash
	}
	return nil
}

// TrimAndValidate 清理并验证字符串
func TrimAndValidate(s string, maxLen int) (string, error) {
	// 1. 去除首尾空白字符
	trimmed := strings.TrimSpace(s)

	// 2. 检查是否为空
	if trimmed == "" {
		return "", ErrEmptyString
	}

	// 3. 检查长度
	if maxLen > 0 && len(trimmed) > maxLen {
		return "", ErrStringTooLong
	}

	// 4. 清理危险字符
	return SanitizeString(trimmed), nil
}

// 错误定义
var (
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrEmptyIdentity   = &ValidationError{Code: "EMPTY_IDENTITY", Message: "identity cannot be empty"}
	ErrInvalidIdentity = &ValidationError{Code: "INVALID_IDENTITY", Message: "identity contains invalid characters"}
	ErrIdentityTooLong = &ValidationError{Code: "IDENTITY_TOO_LONG", Message: "identity exceeds maximum length"}
	ErrEmptyHash       = &ValidationError{Code: "EMPTY_HASH", Message: "content hash cannot be empty"}
	ErrInvalidHash     = &ValidationError{Code: "INVALID_HASH", Message: "content hash contains invalid characters"}
	ErrHashTooLong     = &ValidationError{Code: "HASH_TOO_LONG", Message: "content hash exceeds maximum length"}
	ErrEmptyString     = &ValidationError{Code: "EMPTY_STRING", Message: "string cannot be empty"}
	ErrStringTooLong   = &ValidationError{Code: "STRING_TOO_LONG", Message: "string exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
