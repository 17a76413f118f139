package casauth

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	saltPatterns = []*regexp.Regexp{
		regexp.MustCompile(`id="pwdEncryptSalt"\s+value="([^"]*)"`),
		regexp.MustCompile(`value="([^"]*)"\s+id="pwdEncryptSalt"`),
		regexp.MustCompile(`var\s+pwdDefaultEncryptSalt\s*=\s*"([^"]*)"`),
	}
	executionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`name="execution"\s+value="([^"]*)"`),
		regexp.MustCompile(`value="([^"]*)"\s+name="execution"`),
	}
)

// extractSalt returns the per-session encryption salt of a login page.
func extractSalt(body []byte) (string, bool) {
	return firstMatch(body, saltPatterns)
}

// extractExecution returns the execution token of a login page.
func extractExecution(body []byte) (string, bool) {
	return firstMatch(body, executionPatterns)
}

func firstMatch(body []byte, patterns []*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		m := re.FindSubmatch(body)
		if m == nil || len(m[1]) == 0 {
			continue
		}
		return html.UnescapeString(string(m[1])), true
	}
	return "", false
}

// errorTipSelectors locate the inline error message of a rejected login.
var errorTipSelectors = []string{"#showErrorTip", "#formErrorTip", "#errorMsg", "#msg", ".auth_error"}

// extractErrorTip returns the trimmed text of the login page's error tip.
func extractErrorTip(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	for _, sel := range errorTipSelectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

type errorRule struct {
	kind    FailureType
	needles []string
}

// errorRules are checked in order; the first rule with a matching needle wins.
var errorRules = []errorRule{
	{AccountLocked, []string{"冻结", "锁定", "locked"}},
	{WrongCaptcha, []string{"验证码错误", "图形动态码错误", "验证码无效", "invalid captcha"}},
	{EnabledSSO, []string{"其他地方登录", "已在别处登录", "already logged in"}},
	{WrongPassword, []string{"用户名或者密码有误", "用户名或密码错误", "密码错误", "invalid credentials"}},
}

// classifyError maps a provider error string to a failure kind.
func classifyError(text string) (FailureType, bool) {
	if text == "" {
		return Unknown, false
	}
	lower := strings.ToLower(text)
	for _, rule := range errorRules {
		for _, n := range rule.needles {
			if strings.Contains(lower, n) {
				return rule.kind, true
			}
		}
	}
	return Unknown, false
}

// classifyPage classifies a 200 answer to the credential submission by its
// error tip. Page chrome such as titles and banners is never searched. The
// returned message is the tip text when there is one.
func classifyPage(body []byte) (FailureType, string) {
	tip := extractErrorTip(body)
	if tip == "" {
		return Unknown, "login page returned without a redirect"
	}
	kind, _ := classifyError(tip)
	return kind, tip
}
