/**
 * @description
 * This file defines the domain models for dutch-pay settlement: a group expense
 * split across a host and N participants, each driven to a settled state
 * independently while a running settlement accumulator tracks group completion.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Dutchpay is one expense-splitting event. The settlement accumulator starts at
// zero and advances monotonically; is_completed flips exactly when settlement
// reaches price and never reverts.
type Dutchpay struct {
	ID            uuid.UUID  `json:"id"`
	HostWalletID  uuid.UUID  `json:"host_wallet_id"`
	HostMemberID  uuid.UUID  `json:"host_member_id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	Price         int64      `json:"price"`
	Settlement    int64      `json:"settlement"`
	IsCompleted   bool       `json:"is_completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DutchpayParticipant is keyed by (dutchpay, wallet). The host is excluded: the
// host's share is folded into the settlement accumulator at creation time.
// Status true means this participant's share has been settled.
type DutchpayParticipant struct {
	DutchpayID    uuid.UUID `json:"dutchpay_id"`
	WalletID      uuid.UUID `json:"wallet_id"`
	Price         int64     `json:"price"`
	DepositTxnID  uuid.UUID `json:"deposit_txn_id"`
	WithdrawTxnID uuid.UUID `json:"withdraw_txn_id"`
	Status        bool      `json:"status"`
}

// ParticipantShare is one entry of a dutch-pay creation request. Duplicate
// member entries are aggregated by summing before validation.
type ParticipantShare struct {
	MemberID uuid.UUID `json:"member_id"`
	Price    int64     `json:"price"`
}

// CreateDutchpayRequest is the DTO for creating a dutch-pay event.
type CreateDutchpayRequest struct {
	AppointmentID uuid.UUID          `json:"appointment_id"`
	TotalPrice    int64              `json:"total_price"`
	Participants  []ParticipantShare `json:"participants"`
}

// CompleteDutchpayRequest is the DTO for the host marking a share settled off-platform.
type CompleteDutchpayRequest struct {
	ParticipantMemberID uuid.UUID `json:"participant_member_id"`
}

// SettlementResult reports the outcome of settling one participant's share.
type SettlementResult struct {
	DutchpayID    uuid.UUID `json:"dutchpay_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Amount        int64     `json:"amount"`
	Completed     bool      `json:"completed"`
}

// DutchpayDemand is one open claim a host holds against a participant.
type DutchpayDemand struct {
	DutchpayID    uuid.UUID `json:"dutchpay_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	MemberID      uuid.UUID `json:"member_id"`
	Price         int64     `json:"price"`
	Status        bool      `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// DutchpayReceipt is one share a participant still owes, grouped by dutchpay.
type DutchpayReceipt struct {
	DutchpayID    uuid.UUID `json:"dutchpay_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	HostMemberID  uuid.UUID `json:"host_member_id"`
	Price         int64     `json:"price"`
	Status        bool      `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
