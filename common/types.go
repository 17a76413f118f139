package common

import "github.com/warpdl/warpcas/pkg/casauth"

// LoginParams is the body of a login request. A first attempt carries ID and
// Password (or AuthToken); an attempt answering a captcha adds LoginID and
// Captcha.
type LoginParams struct {
	// Portal is only read by auth.login; REST takes it from the path.
	Portal    string `json:"portal,omitempty"`
	ID        string `json:"id"`
	Password  string `json:"password,omitempty"`
	AuthToken string `json:"authToken,omitempty"`
	LoginID   string `json:"loginId,omitempty"`
	Captcha   string `json:"captcha,omitempty"`
}

type CaptchaRequiredParams struct {
	ID     string `json:"id"`
	WebVPN bool   `json:"webvpn,omitempty"`
}

type CaptchaRequiredResult struct {
	ID       string `json:"id"`
	Required bool   `json:"required"`
}

// CaptchaVerifyParams submits a slider answer for a pending login.
type CaptchaVerifyParams struct {
	LoginID string `json:"loginId"`
	Moved   int    `json:"moved"`
	Width   int    `json:"width"`
}

// CaptchaVerifyResult reports the slider check. When OK is false Captcha
// holds a fresh challenge.
type CaptchaVerifyResult struct {
	OK      bool                      `json:"ok"`
	Captcha *casauth.CaptchaChallenge `json:"captcha,omitempty"`
}

type PortalInfo struct {
	Name   string `json:"name"`
	Title  string `json:"title,omitempty"`
	WebVPN bool   `json:"webvpn"`
}

type PortalListResult struct {
	Portals []PortalInfo `json:"portals"`
}

type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// ErrorResponse is the body of a REST request fault (4xx).
type ErrorResponse struct {
	Error string `json:"error"`
}
