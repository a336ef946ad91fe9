package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lendingpool/crypto"
	"lendingpool/native/pool"
	"lendingpool/services/poold/service"
)

type rateRequest struct {
	Value string `json:"value"`
}

type treasuryRequest struct {
	Treasury string `json:"treasury"`
}

type operatorPauseRequest struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type rateSetter func(e *pool.Engine, caller crypto.Address, p pool.Percent) error

var rateSetters = map[string]rateSetter{
	"target-stake":            (*pool.Engine).SetTargetStakePercent,
	"target-liquidity":        (*pool.Engine).SetTargetLiquidityPercent,
	"protocol-earning":        (*pool.Engine).SetProtocolEarningPercent,
	"manager-earn-factor":     (*pool.Engine).SetManagerEarnFactor,
	"manager-earn-factor-max": (*pool.Engine).SetManagerEarnFactorMax,
}

type statusSetter func(e *pool.Engine, caller crypto.Address) error

var statusSetters = map[string]statusSetter{
	"pause":   (*pool.Engine).Pause,
	"unpause": (*pool.Engine).Unpause,
	"close":   (*pool.Engine).Close,
	"open":    (*pool.Engine).Open,
}

func (s *Server) setRate(r *http.Request, caller crypto.Address) (any, error) {
	name := strings.ToLower(chi.URLParam(r, "rate"))
	setter, ok := rateSetters[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown rate %q", errNotFound, name)
	}
	var req rateRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	value, err := parsePercent("value", req.Value)
	if err != nil {
		return nil, err
	}
	var rates pool.RateConfig
	err = s.svc.Update("set_rate", func(a service.Accounts) error {
		if err := setter(a.Engine, caller, value); err != nil {
			return err
		}
		rates = a.Engine.Stats().Rates
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rates, nil
}

func (s *Server) setStatus(r *http.Request, caller crypto.Address) (any, error) {
	action := strings.ToLower(chi.URLParam(r, "action"))
	setter, ok := statusSetters[action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown status action %q", errNotFound, action)
	}
	var view poolView
	err := s.svc.Update(action, func(a service.Accounts) error {
		if err := setter(a.Engine, caller); err != nil {
			return err
		}
		view = s.summarize(a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Server) setTreasury(r *http.Request, caller crypto.Address) (any, error) {
	var req treasuryRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	treasury, err := parseAddress("treasury", req.Treasury)
	if err != nil {
		return nil, err
	}
	err = s.svc.Update("set_treasury", func(a service.Accounts) error {
		return a.Engine.SetTreasury(caller, treasury)
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"treasury": treasury.String()}, nil
}

func (s *Server) authorizeOriginator(r *http.Request, caller crypto.Address) (any, error) {
	return s.updateOriginator(r, caller, true)
}

func (s *Server) revokeOriginator(r *http.Request, caller crypto.Address) (any, error) {
	return s.updateOriginator(r, caller, false)
}

func (s *Server) updateOriginator(r *http.Request, caller crypto.Address, authorized bool) (any, error) {
	originator, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		return nil, err
	}
	err = s.svc.Update("set_originator", func(a service.Accounts) error {
		if authorized {
			return a.Engine.AuthorizeOriginator(caller, originator)
		}
		return a.Engine.RevokeOriginator(caller, originator)
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"originator": originator.String(), "authorized": authorized}, nil
}

// setOperatorPause toggles the operator switch that halts the pool module
// without touching the pool's own pause flag. Only governance may use it.
func (s *Server) setOperatorPause(r *http.Request, caller crypto.Address) (any, error) {
	var req operatorPauseRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	module := strings.TrimSpace(req.Module)
	if module == "" {
		module = pool.ModuleName
	}
	var governance crypto.Address
	s.svc.View(func(a service.Accounts) { governance = a.Engine.Governance() })
	if caller != governance {
		return nil, fmt.Errorf("%w: %s is not governance", pool.ErrUnauthorized, caller)
	}
	s.svc.SetOperatorPause(module, req.Paused)
	return operatorPauseRequest{Module: module, Paused: req.Paused}, nil
}
