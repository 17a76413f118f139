package casauth

// Step names a state of the login state machine.
type Step string

const (
	StepFetchLoginPage    Step = "fetch_login_page"
	StepExtractTokens     Step = "extract_tokens"
	StepCaptchaCheck      Step = "captcha_check"
	StepAwaitCaptcha      Step = "await_captcha"
	StepSubmitCredentials Step = "submit_credentials"
	StepInterpretResult   Step = "interpret_result"
	StepVPNBridge         Step = "vpn_bridge"
	StepVPNCallback       Step = "vpn_callback"
	StepVPNKeyRotate      Step = "vpn_key_rotate"
	StepRedeemTicket      Step = "redeem_ticket"
)

type (
	StepHandlerFunc func(step Step)
)

// Handlers observe a login flow. All fields are optional.
type Handlers struct {
	// StepHandler is called when the flow enters a new step.
	StepHandler StepHandlerFunc
}

// Step reports s to the step handler, if any. It is safe on a nil receiver.
func (h *Handlers) Step(s Step) {
	if h == nil || h.StepHandler == nil {
		return
	}
	h.StepHandler(s)
}
