// Package commitment implements the Commitment Service: the per-swap flat
// state machine, the factory that creates and dispatches swaps from
// inbound commitments, and the matcher that pairs maker and taker swaps
// into trades.
package commitment

// SwapState is one of the CS Swap FSM's flat states (§4.3).
type SwapState string

const (
	StateInitiated             SwapState = "initiated"
	StateReceivedMakerSuccess  SwapState = "received_maker_success"
	StateReceivedTakerSuccess  SwapState = "received_taker_success"
	StateCompleted             SwapState = "completed"
	StateTimeout               SwapState = "timeout"
)

// swapTransition is one row of the static CS Swap FSM table. Unlike the
// Order/Trade FSM (internal/order), rows here are additionally guarded by
// which party ("maker" or "taker", or "" for unconditional) the trigger
// concerns, since "success_message" from the same state can lead to two
// different destinations depending on which party sent it.
type swapTransition struct {
	Trigger string
	Party   string // "maker", "taker", or "" (unconditional)
	From    SwapState
	To      SwapState
}

const (
	triggerSuccessMessage = "success_message"
	triggerTimeout        = "timeout"
)

// swapTable is the static transition table for the CS Swap FSM.
var swapTable = []swapTransition{
	{Trigger: triggerSuccessMessage, Party: "maker", From: StateInitiated, To: StateReceivedMakerSuccess},
	{Trigger: triggerSuccessMessage, Party: "taker", From: StateInitiated, To: StateReceivedTakerSuccess},
	{Trigger: triggerSuccessMessage, Party: "taker", From: StateReceivedMakerSuccess, To: StateCompleted},
	{Trigger: triggerSuccessMessage, Party: "maker", From: StateReceivedTakerSuccess, To: StateCompleted},
	{Trigger: triggerTimeout, Party: "", From: StateInitiated, To: StateTimeout},
	{Trigger: triggerTimeout, Party: "", From: StateReceivedMakerSuccess, To: StateTimeout},
	{Trigger: triggerTimeout, Party: "", From: StateReceivedTakerSuccess, To: StateTimeout},
}

// swapMachine is a minimal party-conditioned state machine over swapTable.
type swapMachine struct {
	state SwapState
}

func newSwapMachine() *swapMachine {
	return &swapMachine{state: StateInitiated}
}

func (m *swapMachine) fire(trigger, party string) (SwapState, bool) {
	for _, t := range swapTable {
		if t.Trigger != trigger || t.From != m.state {
			continue
		}
		if t.Party != "" && t.Party != party {
			continue
		}
		m.state = t.To
		return t.To, true
	}
	return "", false
}
