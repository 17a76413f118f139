package common

// RPCMethod names a JSON-RPC 2.0 method.
type RPCMethod string

const (
	METHOD_VERSION          RPCMethod = "system.getVersion"
	METHOD_PORTAL_LIST      RPCMethod = "portal.list"
	METHOD_AUTH_LOGIN       RPCMethod = "auth.login"
	METHOD_CAPTCHA_REQUIRED RPCMethod = "captcha.required"
	METHOD_CAPTCHA_VERIFY   RPCMethod = "captcha.verify"
)

// VPN_PORTAL is the pseudo portal that logs into the WebVPN itself.
const VPN_PORTAL = "vpn"
