package server

import (
	"math/big"
	"net/http"

	"lendingpool/crypto"
	"lendingpool/services/poold/service"
)

type amountRequest struct {
	Amount string `json:"amount"`
}

// fundResponse reports the shares minted by an entry or the value paid out
// by an exit.
type fundResponse struct {
	Amount string `json:"amount"`
	Shares string `json:"shares,omitempty"`
	Paid   string `json:"paid,omitempty"`
}

type payoutResponse struct {
	Amount string `json:"amount"`
}

func decodeAmount(r *http.Request) (*big.Int, error) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return parseAmount("amount", req.Amount)
}

func (s *Server) approve(r *http.Request, caller crypto.Address) (any, error) {
	amount, err := decodeAmount(r)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Approve(caller, amount); err != nil {
		return nil, err
	}
	return payoutResponse{Amount: amount.String()}, nil
}

func (s *Server) faucet(r *http.Request, caller crypto.Address) (any, error) {
	amount, err := decodeAmount(r)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Mint(caller, amount); err != nil {
		return nil, err
	}
	return payoutResponse{Amount: amount.String()}, nil
}

// fundOperation runs an entry or exit engine call for the requested value.
func (s *Server) fundOperation(operation string, r *http.Request, exit bool, call func(a service.Accounts, value *big.Int) (*big.Int, error)) (any, error) {
	value, err := decodeAmount(r)
	if err != nil {
		return nil, err
	}
	var result *big.Int
	err = s.svc.Update(operation, func(a service.Accounts) error {
		var callErr error
		result, callErr = call(a, value)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if exit {
		return fundResponse{Amount: value.String(), Paid: amountString(result)}, nil
	}
	return fundResponse{Amount: value.String(), Shares: amountString(result)}, nil
}

func (s *Server) deposit(r *http.Request, caller crypto.Address) (any, error) {
	return s.fundOperation("deposit", r, false, func(a service.Accounts, value *big.Int) (*big.Int, error) {
		return a.Engine.Deposit(caller, value)
	})
}

func (s *Server) withdraw(r *http.Request, caller crypto.Address) (any, error) {
	return s.fundOperation("withdraw", r, true, func(a service.Accounts, value *big.Int) (*big.Int, error) {
		return a.Engine.Withdraw(caller, value)
	})
}

func (s *Server) stake(r *http.Request, caller crypto.Address) (any, error) {
	return s.fundOperation("stake", r, false, func(a service.Accounts, value *big.Int) (*big.Int, error) {
		return a.Engine.Stake(caller, value)
	})
}

func (s *Server) unstake(r *http.Request, caller crypto.Address) (any, error) {
	return s.fundOperation("unstake", r, true, func(a service.Accounts, value *big.Int) (*big.Int, error) {
		return a.Engine.Unstake(caller, value)
	})
}

func (s *Server) claim(operation string, call func(a service.Accounts) (*big.Int, error)) (any, error) {
	var paid *big.Int
	err := s.svc.Update(operation, func(a service.Accounts) error {
		var callErr error
		paid, callErr = call(a)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return payoutResponse{Amount: amountString(paid)}, nil
}

func (s *Server) withdrawProtocolEarnings(_ *http.Request, caller crypto.Address) (any, error) {
	return s.claim("withdraw_protocol_earnings", func(a service.Accounts) (*big.Int, error) {
		return a.Engine.WithdrawProtocolEarnings(caller)
	})
}

func (s *Server) withdrawManagerRevenue(_ *http.Request, caller crypto.Address) (any, error) {
	return s.claim("withdraw_manager_revenue", func(a service.Accounts) (*big.Int, error) {
		return a.Engine.WithdrawManagerRevenue(caller)
	})
}
