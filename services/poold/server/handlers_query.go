package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lendingpool/crypto"
	"lendingpool/native/pool"
	"lendingpool/services/poold/journal"
	"lendingpool/services/poold/service"
)

type statsView struct {
	Custody           string          `json:"custody"`
	Liquid            string          `json:"liquid"`
	Allocated         string          `json:"allocated"`
	Strategized       string          `json:"strategized"`
	TotalFund         string          `json:"totalFund"`
	ManagerRevenue    string          `json:"managerRevenue"`
	ProtocolRevenue   string          `json:"protocolRevenue"`
	TotalShares       string          `json:"totalShares"`
	StakedShares      string          `json:"stakedShares"`
	PoolFundsLimit    string          `json:"poolFundsLimit"`
	AvgStrategyAPR    pool.Percent    `json:"avgStrategyApr"`
	StakeFraction     pool.Percent    `json:"stakeFraction"`
	Rates             pool.RateConfig `json:"rates"`
	Paused            bool            `json:"paused"`
	Closed            bool            `json:"closed"`
	ManagerLastActive time.Time       `json:"managerLastActive"`
}

type poolView struct {
	Name              string       `json:"name"`
	Address           string       `json:"address"`
	Asset             string       `json:"asset"`
	AssetDecimals     uint8        `json:"assetDecimals"`
	ShareSymbol       string       `json:"shareSymbol"`
	Manager           string       `json:"manager"`
	Governance        string       `json:"governance"`
	Treasury          string       `json:"treasury"`
	Stats             statsView    `json:"stats"`
	Depositable       string       `json:"depositable"`
	Stakable          string       `json:"stakable"`
	Unstakable        string       `json:"unstakable"`
	StakedBalance     string       `json:"stakedBalance"`
	StrategyLiquidity string       `json:"strategyLiquidity"`
	SharePrice        string       `json:"sharePrice"`
	CurrentLenderAPY  pool.Percent `json:"currentLenderApy"`
	Functional        bool         `json:"functional"`
	ManagerInactive   bool         `json:"managerInactive"`
	OperatorPaused    bool         `json:"operatorPaused"`
}

type accountView struct {
	Address          string `json:"address"`
	AssetBalance     string `json:"assetBalance"`
	PoolAllowance    string `json:"poolAllowance"`
	Shares           string `json:"shares"`
	Withdrawable     string `json:"withdrawable"`
	ProtocolEarnings string `json:"protocolEarnings"`
	Originator       bool   `json:"originator"`
	Manager          bool   `json:"manager"`
}

type apyView struct {
	StrategyRate pool.Percent `json:"strategyRate"`
	AvgAPR       pool.Percent `json:"avgApr"`
	LenderAPY    pool.Percent `json:"lenderApy"`
}

type eventView struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func viewStats(stats pool.Stats) statsView {
	return statsView{
		Custody:           amountString(stats.Custody),
		Liquid:            amountString(stats.Liquid),
		Allocated:         amountString(stats.Allocated),
		Strategized:       amountString(stats.Strategized),
		TotalFund:         amountString(stats.TotalFund),
		ManagerRevenue:    amountString(stats.ManagerRevenue),
		ProtocolRevenue:   amountString(stats.ProtocolRevenue),
		TotalShares:       amountString(stats.TotalShares),
		StakedShares:      amountString(stats.StakedShares),
		PoolFundsLimit:    amountString(stats.PoolFundsLimit),
		AvgStrategyAPR:    stats.AvgStrategyAPR,
		StakeFraction:     stats.StakeFraction(),
		Rates:             stats.Rates,
		Paused:            stats.Paused,
		Closed:            stats.Closed,
		ManagerLastActive: time.Unix(stats.ManagerLastActive, 0).UTC(),
	}
}

func (s *Server) summarize(a service.Accounts) poolView {
	e := a.Engine
	return poolView{
		Name:              s.svc.Name(),
		Address:           e.PoolAddress().String(),
		Asset:             a.Assets.Symbol(),
		AssetDecimals:     a.Assets.Decimals(),
		ShareSymbol:       a.Shares.Symbol(),
		Manager:           e.Manager().String(),
		Governance:        e.Governance().String(),
		Treasury:          e.Treasury().String(),
		Stats:             viewStats(e.Stats()),
		Depositable:       amountString(e.Depositable()),
		Stakable:          amountString(e.Stakable()),
		Unstakable:        amountString(e.Unstakable()),
		StakedBalance:     amountString(e.StakedBalance()),
		StrategyLiquidity: amountString(e.StrategyLiquidity()),
		SharePrice:        amountString(e.SharePrice()),
		CurrentLenderAPY:  e.CurrentLenderAPY(),
		Functional:        e.IsFunctional(),
		ManagerInactive:   e.IsManagerInactive(),
		OperatorPaused:    s.svc.OperatorPaused(),
	}
}

func (s *Server) poolSummary(_ *http.Request, _ crypto.Address) (any, error) {
	var view poolView
	s.svc.View(func(a service.Accounts) { view = s.summarize(a) })
	return view, nil
}

func (s *Server) accountSummary(r *http.Request, _ crypto.Address) (any, error) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		return nil, err
	}
	var view accountView
	s.svc.View(func(a service.Accounts) {
		e := a.Engine
		view = accountView{
			Address:          addr.String(),
			AssetBalance:     amountString(a.Assets.BalanceOf(addr)),
			PoolAllowance:    amountString(a.Assets.Allowance(addr, e.PoolAddress())),
			Shares:           amountString(e.SharesOf(addr)),
			Withdrawable:     amountString(e.Withdrawable(addr)),
			ProtocolEarnings: amountString(e.ProtocolEarnings(addr)),
			Originator:       e.IsOriginator(addr),
			Manager:          addr == e.Manager(),
		}
	})
	return view, nil
}

func (s *Server) loanSummary(r *http.Request, _ crypto.Address) (any, error) {
	originator, err := parseAddress("originator", chi.URLParam(r, "originator"))
	if err != nil {
		return nil, err
	}
	loanID, err := loanIDParam(r)
	if err != nil {
		return nil, err
	}
	var status pool.LoanStatus
	s.svc.View(func(a service.Accounts) { status = a.Engine.LoanStatus(originator, loanID) })
	return loanResponse{Originator: originator.String(), LoanID: loanID, Status: status.String()}, nil
}

func (s *Server) projectedAPY(r *http.Request, _ crypto.Address) (any, error) {
	query := r.URL.Query()
	strategyRate, err := parsePercent("strategyRate", query.Get("strategyRate"))
	if err != nil {
		return nil, err
	}
	avgAPR, err := parsePercent("avgApr", query.Get("avgApr"))
	if err != nil {
		return nil, err
	}
	view := apyView{StrategyRate: strategyRate, AvgAPR: avgAPR}
	s.svc.View(func(a service.Accounts) { view.LenderAPY = a.Engine.ProjectedLenderAPY(strategyRate, avgAPR) })
	return view, nil
}

func (s *Server) listEvents(r *http.Request, _ crypto.Address) (any, error) {
	if s.journal == nil {
		return nil, fmt.Errorf("%w: event journal disabled", errNotFound)
	}
	query := r.URL.Query()
	filter := journal.Filter{Type: query.Get("type")}
	if raw := query.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid after", errBadRequest)
		}
		filter.After = after
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("%w: invalid limit", errBadRequest)
		}
		filter.Limit = limit
	}
	entries, err := s.journal.List(r.Context(), filter)
	if err != nil {
		return nil, err
	}
	out := make([]eventView, 0, len(entries))
	for _, entry := range entries {
		attrs, err := entry.Decoded()
		if err != nil {
			return nil, err
		}
		out = append(out, eventView{Sequence: entry.Sequence, Type: entry.Type, Attributes: attrs, CreatedAt: entry.CreatedAt})
	}
	return out, nil
}
