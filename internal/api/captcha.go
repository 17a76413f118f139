package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/warpdl/warpcas/common"
	"github.com/warpdl/warpcas/pkg/casauth"
)

// CaptchaRequired asks the identity provider whether id must solve a
// captcha before logging in.
func (a *Api) CaptchaRequired(ctx context.Context, p *common.CaptchaRequiredParams) (*common.CaptchaRequiredResult, error) {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return nil, invalid("id is required")
	}
	id := strings.TrimSpace(p.ID)
	neg, err := a.client.Captcha(p.WebVPN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	required, err := neg.CheckCaptchaRequired(ctx, casauth.NewCookieStore(), id)
	if err != nil {
		return nil, err
	}
	return &common.CaptchaRequiredResult{ID: id, Required: required}, nil
}

// VerifyCaptcha submits a slider answer for a pending login. A rejected
// answer comes back with a fresh challenge.
func (a *Api) VerifyCaptcha(ctx context.Context, p *common.CaptchaVerifyParams) (*common.CaptchaVerifyResult, error) {
	if p == nil || p.LoginID == "" {
		return nil, invalid("loginId is required")
	}
	if p.Width <= 0 {
		return nil, invalid("width must be positive")
	}
	entry, ok := a.pending.Get(p.LoginID)
	if !ok {
		return nil, ErrLoginNotFound
	}
	neg, err := a.client.Captcha(entry.pending.WebVPN)
	if err != nil {
		return nil, err
	}
	passed, err := neg.VerifyCaptcha(ctx, entry.pending.Cookies, p.Moved, p.Width)
	if err != nil {
		return nil, err
	}
	a.metrics.ObserveCaptcha(passed)
	if passed {
		return &common.CaptchaVerifyResult{OK: true}, nil
	}
	ch, err := neg.FetchCaptcha(ctx, entry.pending.Cookies)
	if err != nil {
		a.log.Warning("refetch captcha for %s: %v", entry.id, err)
		return &common.CaptchaVerifyResult{}, nil
	}
	return &common.CaptchaVerifyResult{Captcha: ch}, nil
}
