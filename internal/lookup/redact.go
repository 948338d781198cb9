package lookup

import "regexp"

var secretParam = regexp.MustCompile(`(?i)\b(api_key|apikey|access_token|token)=[^&\s"'#]*`)

// RedactURL 把 URL（或包含 URL 的错误信息）中的凭据参数替换为 REDACTED，
// 避免 API key 出现在日志与 report 中。
func RedactURL(s string) string {
	return secretParam.ReplaceAllString(s, "${1}=REDACTED")
}
