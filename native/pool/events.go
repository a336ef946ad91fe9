package pool

import (
	"math/big"
	"strconv"

	"lendingpool/core/events"
	"lendingpool/core/types"
	"lendingpool/crypto"
)

const (
	// EventTypeDeposited is emitted when a lender deposits into the pool.
	EventTypeDeposited = "pool.deposited"
	// EventTypeWithdrawn is emitted when a lender redeems shares for value.
	EventTypeWithdrawn = "pool.withdrawn"
	// EventTypeStaked is emitted when the manager adds first-loss stake.
	EventTypeStaked = "pool.stake.added"
	// EventTypeUnstaked is emitted when the manager removes stake.
	EventTypeUnstaked = "pool.stake.removed"
	// EventTypeProtocolEarningsWithdrawn is emitted when a beneficiary claims
	// accrued protocol earnings.
	EventTypeProtocolEarningsWithdrawn = "pool.protocol.withdrawn"
	// EventTypeManagerRevenueWithdrawn is emitted when the manager claims the
	// revenue buffer.
	EventTypeManagerRevenueWithdrawn = "pool.manager.withdrawn"
	// EventTypeOfferAllocated is emitted when liquidity is reserved for an offer.
	EventTypeOfferAllocated = "pool.offer.allocated"
	// EventTypeOfferUpdated is emitted when an offer's reservation changes.
	EventTypeOfferUpdated = "pool.offer.updated"
	// EventTypeLoanFunded is emitted when loan funds leave custody.
	EventTypeLoanFunded = "pool.loan.funded"
	// EventTypeLoanRepaid is emitted for every repayment with its yield split.
	EventTypeLoanRepaid = "pool.loan.repaid"
	// EventTypeLoanClosed is emitted when a loan closes.
	EventTypeLoanClosed = "pool.loan.closed"
	// EventTypeLoanDefaulted is emitted when a loan's loss is written down.
	EventTypeLoanDefaulted = "pool.loan.defaulted"
	// EventTypeLossSocialized is emitted when a loss was written down against
	// every shareholder.
	EventTypeLossSocialized = "pool.loss.socialized"
	// EventTypeStakeDepleted is emitted when a loss burned the last staked share.
	EventTypeStakeDepleted = "pool.stake.depleted"
	// EventTypeRatesUpdated is emitted whenever a rate setter succeeds.
	EventTypeRatesUpdated = "pool.rates.updated"
	// EventTypeStatusChanged is emitted on pause, unpause, close and open.
	EventTypeStatusChanged = "pool.status.changed"
	// EventTypeOriginatorUpdated is emitted when originator authorization changes.
	EventTypeOriginatorUpdated = "pool.originator.updated"
	// EventTypeTreasuryUpdated is emitted when the protocol beneficiary changes.
	EventTypeTreasuryUpdated = "pool.treasury.updated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// Payload extracts the typed payload from an envelope produced by WrapEvent.
func Payload(evt events.Event) (*types.Event, bool) {
	env, ok := evt.(eventEnvelope)
	if !ok || env.evt == nil {
		return nil, false
	}
	return env.evt, true
}

func amountEvent(eventType string, account crypto.Address, amount, shares *big.Int) *types.Event {
	attrs := map[string]string{
		"account": account.String(),
		"amount":  formatAmount(amount),
	}
	if shares != nil {
		attrs["shares"] = formatAmount(shares)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// DepositedEvent captures a lender deposit and the shares minted for it.
func DepositedEvent(lender crypto.Address, amount, shares *big.Int) *types.Event {
	return amountEvent(EventTypeDeposited, lender, amount, shares)
}

// WithdrawnEvent captures a lender withdrawal, the shares burned and the fee
// retained in the fund.
func WithdrawnEvent(lender crypto.Address, amount, shares, fee *big.Int) *types.Event {
	evt := amountEvent(EventTypeWithdrawn, lender, amount, shares)
	evt.Attributes["fee"] = formatAmount(fee)
	return evt
}

// StakedEvent captures the manager adding stake.
func StakedEvent(manager crypto.Address, amount, shares *big.Int) *types.Event {
	return amountEvent(EventTypeStaked, manager, amount, shares)
}

// UnstakedEvent captures the manager removing stake.
func UnstakedEvent(manager crypto.Address, amount, shares, fee *big.Int) *types.Event {
	evt := amountEvent(EventTypeUnstaked, manager, amount, shares)
	evt.Attributes["fee"] = formatAmount(fee)
	return evt
}

// ProtocolEarningsWithdrawnEvent captures a protocol earnings claim.
func ProtocolEarningsWithdrawnEvent(beneficiary crypto.Address, amount *big.Int) *types.Event {
	return amountEvent(EventTypeProtocolEarningsWithdrawn, beneficiary, amount, nil)
}

// ManagerRevenueWithdrawnEvent captures a manager revenue claim.
func ManagerRevenueWithdrawnEvent(manager crypto.Address, amount *big.Int) *types.Event {
	return amountEvent(EventTypeManagerRevenueWithdrawn, manager, amount, nil)
}

// OfferAllocatedEvent captures liquidity reserved for a new offer.
func OfferAllocatedEvent(originator crypto.Address, amount *big.Int) *types.Event {
	return amountEvent(EventTypeOfferAllocated, originator, amount, nil)
}

// OfferUpdatedEvent captures a change to an offer's reservation.
func OfferUpdatedEvent(originator crypto.Address, previous, next *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeOfferUpdated,
		Attributes: map[string]string{
			"account":  originator.String(),
			"previous": formatAmount(previous),
			"amount":   formatAmount(next),
		},
	}
}

func loanEvent(eventType string, key LoanKey, attrs map[string]string) *types.Event {
	attrs["originator"] = key.Originator.String()
	attrs["loanId"] = strconv.FormatUint(key.LoanID, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}

// LoanFundedEvent captures loan funds released to the borrower.
func LoanFundedEvent(key LoanKey, borrower crypto.Address, amount *big.Int, apr Percent) *types.Event {
	return loanEvent(EventTypeLoanFunded, key, map[string]string{
		"borrower": borrower.String(),
		"amount":   formatAmount(amount),
		"apr":      apr.String(),
	})
}

// LoanRepaidEvent captures a repayment and how its interest was split.
func LoanRepaidEvent(key LoanKey, payer crypto.Address, principal *big.Int, split YieldSplit) *types.Event {
	return loanEvent(EventTypeLoanRepaid, key, map[string]string{
		"payer":       payer.String(),
		"principal":   formatAmount(principal),
		"protocolCut": formatAmount(split.Protocol),
		"managerCut":  formatAmount(split.Manager),
		"lenderYield": formatAmount(split.Lender),
	})
}

// LoanClosedEvent captures a loan closing and how its shortfall was absorbed.
func LoanClosedEvent(key LoanKey, repaid *big.Int, out ShortfallOutcome) *types.Event {
	return loanEvent(EventTypeLoanClosed, key, map[string]string{
		"amountRepaid":      formatAmount(repaid),
		"fromRevenue":       formatAmount(out.FromRevenue),
		"fromStake":         formatAmount(out.FromStake),
		"stakeSharesBurned": formatAmount(out.StakeSharesBurned),
		"socialized":        formatAmount(out.Socialized),
	})
}

// LoanDefaultedEvent captures a default and its loss attribution.
func LoanDefaultedEvent(key LoanKey, carry *big.Int, out DefaultOutcome) *types.Event {
	return loanEvent(EventTypeLoanDefaulted, key, map[string]string{
		"carryAmountUsed":   formatAmount(carry),
		"managerLoss":       formatAmount(out.ManagerLoss),
		"lenderLoss":        formatAmount(out.LenderLoss),
		"stakeSharesBurned": formatAmount(out.StakeSharesBurned),
	})
}

// LossSocializedEvent captures value written down against every shareholder.
func LossSocializedEvent(key LoanKey, amount *big.Int) *types.Event {
	return loanEvent(EventTypeLossSocialized, key, map[string]string{
		"amount": formatAmount(amount),
	})
}

// StakeDepletedEvent captures the manager's stake being fully consumed.
func StakeDepletedEvent(key LoanKey) *types.Event {
	return loanEvent(EventTypeStakeDepleted, key, map[string]string{})
}

// RatesUpdatedEvent captures a rate change.
func RatesUpdatedEvent(caller crypto.Address, field string, value Percent) *types.Event {
	return &types.Event{
		Type: EventTypeRatesUpdated,
		Attributes: map[string]string{
			"caller": caller.String(),
			"field":  field,
			"value":  value.String(),
		},
	}
}

// StatusChangedEvent captures pause and close transitions.
func StatusChangedEvent(caller crypto.Address, status string) *types.Event {
	return &types.Event{
		Type: EventTypeStatusChanged,
		Attributes: map[string]string{
			"caller": caller.String(),
			"status": status,
		},
	}
}

// OriginatorUpdatedEvent captures an originator being authorized or revoked.
func OriginatorUpdatedEvent(originator crypto.Address, authorized bool) *types.Event {
	return &types.Event{
		Type: EventTypeOriginatorUpdated,
		Attributes: map[string]string{
			"originator": originator.String(),
			"authorized": strconv.FormatBool(authorized),
		},
	}
}

// TreasuryUpdatedEvent captures a new protocol beneficiary.
func TreasuryUpdatedEvent(treasury crypto.Address) *types.Event {
	return &types.Event{
		Type: EventTypeTreasuryUpdated,
		Attributes: map[string]string{
			"treasury": treasury.String(),
		},
	}
}
