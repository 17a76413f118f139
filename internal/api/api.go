// Package api turns login requests into calls on the portal adapters and
// login results into JSON outcomes. It owns the state shared between
// requests: pending captcha logins, rate limits and the session vault.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warpdl/warpcas/common"
	"github.com/warpdl/warpcas/internal/cache"
	"github.com/warpdl/warpcas/internal/metrics"
	"github.com/warpdl/warpcas/internal/store"
	"github.com/warpdl/warpcas/pkg/casauth"
	"github.com/warpdl/warpcas/pkg/credman"
	"github.com/warpdl/warpcas/pkg/logger"
	"github.com/warpdl/warpcas/pkg/portal"
)

const (
	DEF_PENDING_TTL    = 5 * time.Minute
	vaultSweepInterval = 10 * time.Minute
)

// Request faults. They are not login failures and map to 4xx statuses.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrBlacklisted    = errors.New("account is blacklisted")
	ErrRateLimited    = errors.New("too many login attempts")
	ErrLoginNotFound  = errors.New("pending login not found or expired")
)

type pendingLogin struct {
	id      string
	portal  string
	pending *casauth.PendingLogin
}

// Options configures an Api. Client and Portals are required.
type Options struct {
	Client  *casauth.Client
	Portals *portal.Registry
	Logger  logger.Logger
	// Store, Vault, Metrics and Limiter are optional.
	Store   *store.Store
	Vault   *credman.Vault
	Metrics *metrics.Metrics
	Limiter *Limiter
	// PendingTTL bounds how long a login may wait for a captcha answer.
	PendingTTL time.Duration
}

type Api struct {
	log     logger.Logger
	client  *casauth.Client
	portals *portal.Registry
	store   *store.Store
	vault   *credman.Vault
	metrics *metrics.Metrics
	limiter *Limiter
	pending *cache.TTL[string, *pendingLogin]
	stop    chan struct{}
	// newLoginID is replaced in tests.
	newLoginID func() string
}

func New(opts *Options) (*Api, error) {
	if opts == nil || opts.Client == nil || opts.Portals == nil {
		return nil, errors.New("api: client and portals are required")
	}
	ttl := opts.PendingTTL
	if ttl <= 0 {
		ttl = DEF_PENDING_TTL
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}
	a := &Api{
		log:        l,
		client:     opts.Client,
		portals:    opts.Portals,
		store:      opts.Store,
		vault:      opts.Vault,
		metrics:    opts.Metrics,
		limiter:    opts.Limiter,
		pending:    cache.NewTTL[string, *pendingLogin](ttl),
		stop:       make(chan struct{}),
		newLoginID: uuid.NewString,
	}
	go a.pending.Janitor(ttl, a.stop)
	if a.limiter != nil {
		go a.limiter.users.Janitor(a.limiter.window, a.stop)
	}
	if a.vault != nil {
		go a.sweepVault(vaultSweepInterval)
	}
	return a, nil
}

// sweepVault drops expired vault records every interval until Close.
func (a *Api) sweepVault(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			n, err := a.vault.Sweep()
			if err != nil {
				a.log.Warning("vault sweep: %v", err)
				continue
			}
			if n > 0 {
				a.log.Debug("vault sweep removed %d expired sessions", n)
			}
		case <-a.stop:
			return
		}
	}
}

// PendingCount is the number of logins waiting for a captcha answer.
func (a *Api) PendingCount() int {
	n := 0
	a.pending.Range(func(string, *pendingLogin) bool {
		n++
		return true
	})
	return n
}

// Close stops background sweeping.
func (a *Api) Close() error {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	return nil
}

// Portals lists the configured portals.
func (a *Api) Portals() *common.PortalListResult {
	res := &common.PortalListResult{Portals: []common.PortalInfo{}}
	for _, p := range a.portals.List() {
		res.Portals = append(res.Portals, common.PortalInfo{Name: p.Name, Title: p.Title, WebVPN: p.WebVPN})
	}
	return res
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// validate checks the request shape and normalises the id.
func (a *Api) validate(p *common.LoginParams) error {
	if p == nil {
		return invalid("empty body")
	}
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return invalid("id is required")
	}
	if p.Password == "" && p.AuthToken == "" {
		return invalid("password or authToken is required")
	}
	if p.LoginID != "" && p.Captcha == "" {
		return invalid("captcha is required with loginId")
	}
	if p.Password == "" && a.vault == nil {
		return invalid("authToken requires the session vault, which is disabled")
	}
	return nil
}

// admit runs the checks every login passes before touching the network.
func (a *Api) admit(ctx context.Context, id string) error {
	if a.store != nil {
		blocked, err := a.store.IsBlocked(ctx, id)
		if err != nil {
			a.log.Error("blacklist lookup for %s: %v", id, err)
		} else if blocked {
			a.metrics.Reject("blacklist")
			return ErrBlacklisted
		}
	}
	if !a.limiter.Allow(id) {
		a.metrics.Reject("ratelimit")
		return ErrRateLimited
	}
	return nil
}
