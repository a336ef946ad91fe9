package server

import (
	"math/big"
	"net/http"

	"lendingpool/crypto"
	"lendingpool/native/pool"
	"lendingpool/services/poold/service"
)

type offerUpdateRequest struct {
	Previous string `json:"previous"`
	Amount   string `json:"amount"`
}

type borrowRequest struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
	APR      string `json:"apr"`
}

type repayRequest struct {
	Borrower        string `json:"borrower"`
	Payer           string `json:"payer"`
	APR             string `json:"apr"`
	TransferAmount  string `json:"transferAmount"`
	PaymentAmount   string `json:"paymentAmount"`
	InterestPayable string `json:"interestPayable"`
}

type repayResponse struct {
	LoanID      uint64 `json:"loanId"`
	ProtocolCut string `json:"protocolCut"`
	ManagerCut  string `json:"managerCut"`
	LenderYield string `json:"lenderYield"`
}

type closeRequest struct {
	APR                 string `json:"apr"`
	AmountRepaid        string `json:"amountRepaid"`
	RemainingDifference string `json:"remainingDifference"`
}

type closeResponse struct {
	LoanID     uint64 `json:"loanId"`
	Reimbursed string `json:"reimbursed"`
}

type defaultRequest struct {
	APR             string `json:"apr"`
	CarryAmountUsed string `json:"carryAmountUsed"`
	Loss            string `json:"loss"`
}

type defaultResponse struct {
	LoanID      uint64 `json:"loanId"`
	ManagerLoss string `json:"managerLoss"`
	LenderLoss  string `json:"lenderLoss"`
}

type loanResponse struct {
	Originator string `json:"originator"`
	LoanID     uint64 `json:"loanId"`
	Status     string `json:"status"`
}

func (s *Server) offer(r *http.Request, caller crypto.Address) (any, error) {
	amount, err := decodeAmount(r)
	if err != nil {
		return nil, err
	}
	err = s.svc.Update("offer", func(a service.Accounts) error {
		return a.Engine.OnOffer(caller, amount)
	})
	if err != nil {
		return nil, err
	}
	return payoutResponse{Amount: amount.String()}, nil
}

func (s *Server) offerUpdate(r *http.Request, caller crypto.Address) (any, error) {
	var req offerUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	previous, err := parseAmount("previous", req.Previous)
	if err != nil {
		return nil, err
	}
	next, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	err = s.svc.Update("offer_update", func(a service.Accounts) error {
		return a.Engine.OnOfferUpdate(caller, previous, next)
	})
	if err != nil {
		return nil, err
	}
	return payoutResponse{Amount: next.String()}, nil
}

func (s *Server) borrow(r *http.Request, caller crypto.Address) (any, error) {
	loanID, err := loanIDParam(r)
	if err != nil {
		return nil, err
	}
	var req borrowRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	borrower, err := parseAddress("borrower", req.Borrower)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	apr, err := parsePercent("apr", req.APR)
	if err != nil {
		return nil, err
	}
	err = s.svc.Update("borrow", func(a service.Accounts) error {
		return a.Engine.OnBorrow(caller, loanID, borrower, amount, apr)
	})
	if err != nil {
		return nil, err
	}
	return loanResponse{Originator: caller.String(), LoanID: loanID, Status: pool.LoanStatusFunded.String()}, nil
}

func (s *Server) repay(r *http.Request, caller crypto.Address) (any, error) {
	loanID, err := loanIDParam(r)
	if err != nil {
		return nil, err
	}
	var req repayRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	borrower, err := parseAddress("borrower", req.Borrower)
	if err != nil {
		return nil, err
	}
	payer := borrower
	if req.Payer != "" {
		if payer, err = parseAddress("payer", req.Payer); err != nil {
			return nil, err
		}
	}
	apr, err := parsePercent("apr", req.APR)
	if err != nil {
		return nil, err
	}
	payment, err := parseAmount("paymentAmount", req.PaymentAmount)
	if err != nil {
		return nil, err
	}
	transfer := payment
	if req.TransferAmount != "" {
		if transfer, err = parseAmount("transferAmount", req.TransferAmount); err != nil {
			return nil, err
		}
	}
	interest, err := parseOptionalAmount("interestPayable", req.InterestPayable)
	if err != nil {
		return nil, err
	}
	var split pool.YieldSplit
	err = s.svc.Update("repay", func(a service.Accounts) error {
		var callErr error
		split, callErr = a.Engine.OnRepay(caller, pool.Repayment{
			LoanID:          loanID,
			Borrower:        borrower,
			Payer:           payer,
			APR:             apr,
			TransferAmount:  transfer,
			PaymentAmount:   payment,
			InterestPayable: interest,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return repayResponse{
		LoanID:      loanID,
		ProtocolCut: amountString(split.Protocol),
		ManagerCut:  amountString(split.Manager),
		LenderYield: amountString(split.Lender),
	}, nil
}

func (s *Server) closeLoan(r *http.Request, caller crypto.Address) (any, error) {
	loanID, err := loanIDParam(r)
	if err != nil {
		return nil, err
	}
	var req closeRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	apr, err := parsePercent("apr", req.APR)
	if err != nil {
		return nil, err
	}
	repaid, err := parseOptionalAmount("amountRepaid", req.AmountRepaid)
	if err != nil {
		return nil, err
	}
	remaining, err := parseOptionalAmount("remainingDifference", req.RemainingDifference)
	if err != nil {
		return nil, err
	}
	var reimbursed *big.Int
	err = s.svc.Update("close_loan", func(a service.Accounts) error {
		var callErr error
		reimbursed, callErr = a.Engine.OnCloseLoan(caller, loanID, apr, repaid, remaining)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return closeResponse{LoanID: loanID, Reimbursed: amountString(reimbursed)}, nil
}

func (s *Server) defaultLoan(r *http.Request, caller crypto.Address) (any, error) {
	loanID, err := loanIDParam(r)
	if err != nil {
		return nil, err
	}
	var req defaultRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	apr, err := parsePercent("apr", req.APR)
	if err != nil {
		return nil, err
	}
	carry, err := parseOptionalAmount("carryAmountUsed", req.CarryAmountUsed)
	if err != nil {
		return nil, err
	}
	loss, err := parseOptionalAmount("loss", req.Loss)
	if err != nil {
		return nil, err
	}
	var managerLoss, lenderLoss *big.Int
	err = s.svc.Update("default_loan", func(a service.Accounts) error {
		var callErr error
		managerLoss, lenderLoss, callErr = a.Engine.OnDefault(caller, loanID, apr, carry, loss)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return defaultResponse{LoanID: loanID, ManagerLoss: amountString(managerLoss), LenderLoss: amountString(lenderLoss)}, nil
}
