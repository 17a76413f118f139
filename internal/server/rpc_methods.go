package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/warpdl/warpcas/common"
	"github.com/warpdl/warpcas/internal/api"
	"github.com/warpdl/warpcas/pkg/portal"
)

// Custom JSON-RPC error codes for login request faults.
const (
	codeBlacklisted   = jrpc2.Code(-32001)
	codeRateLimited   = jrpc2.Code(-32002)
	codeLoginNotFound = jrpc2.Code(-32003)
	codeUpstream      = jrpc2.Code(-32010)
	codeInvalidParams = jrpc2.Code(-32602)
)

// RPCConfig holds configuration for the JSON-RPC endpoints.
type RPCConfig struct {
	Secret    string // Auth token (required -- empty means RPC disabled)
	Version   string
	Commit    string
	BuildType string
}

// RPCServer serves the JSON-RPC 2.0 methods over HTTP and WebSocket.
type RPCServer struct {
	bridge  jhttp.Bridge
	methods handler.Map
	secret  string
	version common.VersionResult
	api     *api.Api
}

func NewRPCServer(cfg *RPCConfig, a *api.Api) *RPCServer {
	rs := &RPCServer{
		secret: cfg.Secret,
		version: common.VersionResult{
			Version:   cfg.Version,
			Commit:    cfg.Commit,
			BuildType: cfg.BuildType,
		},
		api: a,
	}
	rs.methods = handler.Map{
		string(common.METHOD_VERSION):          handler.New(rs.systemGetVersion),
		string(common.METHOD_PORTAL_LIST):      handler.New(rs.portalList),
		string(common.METHOD_AUTH_LOGIN):       handler.New(rs.authLogin),
		string(common.METHOD_CAPTCHA_REQUIRED): handler.New(rs.captchaRequired),
		string(common.METHOD_CAPTCHA_VERIFY):   handler.New(rs.captchaVerify),
	}
	rs.bridge = jhttp.NewBridge(rs.methods, nil)
	return rs
}

// HTTPHandler is the authenticated /jsonrpc endpoint.
func (rs *RPCServer) HTTPHandler() http.Handler {
	return requireToken(rs.secret, rs.bridge)
}

// WSHandler is the authenticated /jsonrpc/ws endpoint.
func (rs *RPCServer) WSHandler() http.Handler {
	return requireToken(rs.secret, http.HandlerFunc(rs.serveWS))
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*common.VersionResult, error) {
	v := rs.version
	return &v, nil
}

func (rs *RPCServer) portalList(_ context.Context) (*common.PortalListResult, error) {
	return rs.api.Portals(), nil
}

func (rs *RPCServer) authLogin(ctx context.Context, p *common.LoginParams) (*api.Outcome, error) {
	if p == nil || p.Portal == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: portal"}
	}
	out, err := rs.api.Login(ctx, p.Portal, p)
	if err != nil {
		return nil, rpcError(err)
	}
	return out, nil
}

func (rs *RPCServer) captchaRequired(ctx context.Context, p *common.CaptchaRequiredParams) (*common.CaptchaRequiredResult, error) {
	res, err := rs.api.CaptchaRequired(ctx, p)
	if err != nil {
		return nil, rpcError(err)
	}
	return res, nil
}

func (rs *RPCServer) captchaVerify(ctx context.Context, p *common.CaptchaVerifyParams) (*common.CaptchaVerifyResult, error) {
	res, err := rs.api.VerifyCaptcha(ctx, p)
	if err != nil {
		return nil, rpcError(err)
	}
	return res, nil
}

// rpcError maps a request fault to a JSON-RPC error.
func rpcError(err error) *jrpc2.Error {
	code := codeUpstream
	switch {
	case errors.Is(err, api.ErrInvalidRequest), errors.Is(err, portal.ErrUnknownPortal):
		code = codeInvalidParams
	case errors.Is(err, api.ErrBlacklisted):
		code = codeBlacklisted
	case errors.Is(err, api.ErrRateLimited):
		code = codeRateLimited
	case errors.Is(err, api.ErrLoginNotFound):
		code = codeLoginNotFound
	}
	return &jrpc2.Error{Code: code, Message: err.Error()}
}

// Close shuts down the HTTP bridge.
func (rs *RPCServer) Close() error {
	return rs.bridge.Close()
}
