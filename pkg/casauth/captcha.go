package casauth

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// CaptchaChallenge is a slider captcha issued by the identity provider. It
// is bound to the cookies of the store it was fetched with.
type CaptchaChallenge struct {
	// Slider is the base64 encoded piece the user drags.
	Slider string `json:"slider"`
	// Background is the base64 encoded image with the gap.
	Background string `json:"background"`
	// SliderWidth is the width of the slider piece in pixels.
	SliderWidth int `json:"sliderWidth"`
	// VerticalOffset is the y position of the slider piece in pixels.
	VerticalOffset int `json:"verticalOffset"`
}

// CaptchaNegotiator translates captcha requests into identity provider calls.
// It holds no state; validation happens upstream.
type CaptchaNegotiator struct {
	c    *Client
	base string
}

// Captcha returns a negotiator for the direct (webVPN false) or the
// tunnelled identity provider.
func (c *Client) Captcha(webVPN bool) (*CaptchaNegotiator, error) {
	base, err := c.endpoints.authBase(webVPN)
	if err != nil {
		return nil, err
	}
	return &CaptchaNegotiator{c: c, base: base}, nil
}

type needCaptchaResp struct {
	IsNeed bool `json:"isNeed"`
}

// CheckCaptchaRequired asks the provider whether id must solve a captcha
// before its credentials are accepted.
func (n *CaptchaNegotiator) CheckCaptchaRequired(ctx context.Context, store *CookieStore, id string) (bool, error) {
	var out needCaptchaResp
	if err := n.getJSON(ctx, store, captchaCheckURL(n.base, id), &out); err != nil {
		return false, err
	}
	return out.IsNeed, nil
}

type sliderResp struct {
	BigImage   string `json:"bigImage"`
	SmallImage string `json:"smallImage"`
	TagWidth   int    `json:"tagWidth"`
	YHeight    int    `json:"yHeight"`
}

// FetchCaptcha requests a new slider challenge for the session in store.
func (n *CaptchaNegotiator) FetchCaptcha(ctx context.Context, store *CookieStore) (*CaptchaChallenge, error) {
	var out sliderResp
	if err := n.getJSON(ctx, store, sliderCaptchaURL(n.base), &out); err != nil {
		return nil, err
	}
	if out.BigImage == "" || out.SmallImage == "" {
		return nil, newFailure(Unknown, "captcha response carries no images")
	}
	return &CaptchaChallenge{
		Slider:         out.SmallImage,
		Background:     out.BigImage,
		SliderWidth:    out.TagWidth,
		VerticalOffset: out.YHeight,
	}, nil
}

type verifyResp struct {
	ErrorCode int    `json:"errorCode"`
	ErrorMsg  string `json:"errorMsg"`
}

// VerifyCaptcha submits the slider displacement moved out of a canvas of
// width pixels. A rejected solution is reported as false with no error.
func (n *CaptchaNegotiator) VerifyCaptcha(ctx context.Context, store *CookieStore, moved, width int) (bool, error) {
	form := url.Values{
		"canvasLength": {strconv.Itoa(width)},
		"moveLength":   {strconv.Itoa(moved)},
	}
	r, err := n.c.PostForm(ctx, store, verifySliderURL(n.base), form)
	if err != nil {
		return false, err
	}
	var out verifyResp
	if err := decodeJSON(r, &out); err != nil {
		return false, err
	}
	return out.ErrorCode == 1, nil
}

func (n *CaptchaNegotiator) getJSON(ctx context.Context, store *CookieStore, rawURL string, v any) error {
	r, err := n.c.Get(ctx, store, rawURL)
	if err != nil {
		return err
	}
	return decodeJSON(r, v)
}

func decodeJSON(r *Response, v any) error {
	if r.StatusCode < 200 || r.StatusCode > 299 {
		f := newFailure(Unknown, "captcha endpoint %s answered %d", r.URL.Path, r.StatusCode)
		f.Status = r.StatusCode
		return f
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		f := newFailure(Unknown, "captcha endpoint %s returned non-JSON content", r.URL.Path)
		f.Status = r.StatusCode
		return f
	}
	return nil
}
