// Package environment selects which underwriting deployment a flow talks to.
package environment

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/spec-kit/gap-pos/internal/config"
	"github.com/spec-kit/gap-pos/internal/domain"
)

// Target is the resolved configuration of one environment.
type Target struct {
	Environment    domain.Environment
	Label          string
	BaseURL        string
	APIURL         string
	Username       string
	Password       string
	SellerNodeCode string
}

// Resolver holds the process-wide active environment.
// Reads are lock free; SetActive swaps the value atomically.
type Resolver struct {
	targets       map[domain.Environment]Target
	active        atomic.Value
	allowOverride bool
}

// NewResolver builds a resolver from underwriting configuration.
func NewResolver(cfg config.UnderwritingConfig) (*Resolver, error) {
	def, err := domain.ParseEnvironment(cfg.DefaultEnvironment)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		targets: map[domain.Environment]Target{
			domain.EnvironmentTest:       newTarget(domain.EnvironmentTest, cfg.Test),
			domain.EnvironmentProduction: newTarget(domain.EnvironmentProduction, cfg.Production),
		},
		allowOverride: cfg.AllowOverride,
	}
	r.active.Store(def)
	return r, nil
}

func newTarget(env domain.Environment, ep config.EnvironmentEndpoints) Target {
	return Target{
		Environment:    env,
		Label:          env.Label(),
		BaseURL:        strings.TrimRight(ep.BaseURL, "/"),
		APIURL:         strings.TrimRight(ep.APIURL, "/"),
		Username:       ep.Username,
		Password:       ep.Password,
		SellerNodeCode: ep.SellerNodeCode,
	}
}

// Active returns the process-wide environment.
func (r *Resolver) Active() domain.Environment {
	return r.active.Load().(domain.Environment)
}

// SetActive replaces the process-wide environment.
func (r *Resolver) SetActive(env domain.Environment) error {
	if _, ok := r.targets[env]; !ok {
		return fmt.Errorf("unknown environment %q", env)
	}
	r.active.Store(env)
	return nil
}

// Select picks the environment for a request: the client override when given and allowed, else the active one.
func (r *Resolver) Select(override string) (domain.Environment, error) {
	if strings.TrimSpace(override) == "" || !r.allowOverride {
		return r.Active(), nil
	}
	return domain.ParseEnvironment(override)
}

// Resolve returns the target for the selected environment.
func (r *Resolver) Resolve(override string) (Target, error) {
	env, err := r.Select(override)
	if err != nil {
		return Target{}, err
	}
	return r.Target(env)
}

// Target returns the configuration of env.
func (r *Resolver) Target(env domain.Environment) (Target, error) {
	t, ok := r.targets[env]
	if !ok {
		return Target{}, fmt.Errorf("unknown environment %q", env)
	}
	return t, nil
}
