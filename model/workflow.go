package model

import "time"

type RequestType string

const REQUEST_TYPE_CANCELLATION RequestType = "cancellation"
const REQUEST_TYPE_ADDRESS_CHANGE RequestType = "address_change"

type FulfillmentMethod string

const FULFILLMENT_WAREHOUSE_EMAIL FulfillmentMethod = "warehouse_email"
const FULFILLMENT_THREE_PL_API FulfillmentMethod = "3pl_api"
const FULFILLMENT_SELF FulfillmentMethod = "self_fulfillment"

type WorkflowStatus string

const STATUS_PROCESSING WorkflowStatus = "processing"
const STATUS_AWAITING_CONFIRMATION WorkflowStatus = "awaiting_external_confirmation"
const STATUS_COMPLETED WorkflowStatus = "completed"
const STATUS_CANNOT_FULFILL WorkflowStatus = "cannot_fulfill"
const STATUS_FAILED WorkflowStatus = "failed"
const STATUS_ESCALATED WorkflowStatus = "escalated"

type WorkflowStep string

const STEP_IDENTIFY_ORDER WorkflowStep = "identify_order"
const STEP_CHECK_ELIGIBILITY WorkflowStep = "check_eligibility"
const STEP_ACKNOWLEDGE_CUSTOMER WorkflowStep = "acknowledge_customer"
const STEP_CONTACT_BACKEND WorkflowStep = "contact_backend"
const STEP_AWAIT_CONFIRMATION WorkflowStep = "await_confirmation"
const STEP_FINALIZE WorkflowStep = "finalize"

// statusRank fixes the partial order of workflow statuses. A transition
// may never move to a lower rank, and terminal statuses accept no
// transition at all.
var statusRank = map[WorkflowStatus]int{
	STATUS_PROCESSING:            1,
	STATUS_AWAITING_CONFIRMATION: 2,
	STATUS_COMPLETED:             3,
	STATUS_CANNOT_FULFILL:        3,
	STATUS_FAILED:                3,
	STATUS_ESCALATED:             3,
}

// WorkflowRecord is the durable record of one automated
// order-modification request. It is mutated only through the state
// machine and becomes immutable once terminal.
type WorkflowRecord struct {
	Id            string      `json:"id"`
	UserId        string      `json:"userId"`
	OrderNumber   string      `json:"orderNumber"`
	CustomerEmail string      `json:"customerEmail"`
	RequestType   RequestType `json:"requestType"`

	// FulfillmentMethod is snapshotted at creation. Settings changes
	// never redirect an in-flight workflow to another backend.
	FulfillmentMethod FulfillmentMethod `json:"fulfillmentMethod"`
	Status            WorkflowStatus    `json:"status"`
	Step              WorkflowStep      `json:"step"`

	// Progress flags are monotonic, set once and never unset.
	CustomerAcknowledgmentSent bool `json:"customerAcknowledgmentSent"`
	BackendContacted           bool `json:"backendContacted"`
	ExternalReplyReceived      bool `json:"externalReplyReceived"`
	ChangeApplied              bool `json:"changeApplied"`
	RefundProcessed            bool `json:"refundProcessed"`

	RequestedAddress  string `json:"requestedAddress,omitempty"`
	EligibilityReason string `json:"eligibilityReason,omitempty"`
	ExternalReply     string `json:"externalReply,omitempty"`
	WasUpdated        *bool  `json:"wasUpdated,omitempty"`
	FailureReason     string `json:"failureReason,omitempty"`

	Attempts int    `json:"attempts"`
	Version  uint64 `json:"version"`

	CreatedAt        time.Time  `json:"createdAt"`
	LastTransitionAt time.Time  `json:"lastTransitionAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	// AwaitingDeadline is set while the workflow waits on an external
	// reply; the escalation scheduler polls on it.
	AwaitingDeadline *time.Time `json:"awaitingDeadline,omitempty"`
}

func (wf *WorkflowRecord) IsTerminal() bool {
	switch wf.Status {
	case STATUS_COMPLETED, STATUS_CANNOT_FULFILL, STATUS_FAILED, STATUS_ESCALATED:
		return true
	}
	return false
}

// CanTransition reports whether moving to the given status respects the
// forward-only partial order.
func (wf *WorkflowRecord) CanTransition(to WorkflowStatus) bool {
	if wf.IsTerminal() {
		return false
	}
	from, ok := statusRank[wf.Status]
	if !ok {
		return false
	}
	target, ok := statusRank[to]
	if !ok {
		return false
	}
	if to == STATUS_PROCESSING {
		// re-entering processing from awaiting is how a reply resumes
		// the workflow
		return wf.Status == STATUS_PROCESSING || wf.Status == STATUS_AWAITING_CONFIRMATION
	}
	return target >= from
}

// IdempotencyKey identifies the at-most-once scope of the mutating
// backend call.
func (wf *WorkflowRecord) IdempotencyKey() string {
	return wf.OrderNumber + ":" + string(wf.RequestType)
}

type Order struct {
	Number          string    `json:"number"`
	CustomerEmail   string    `json:"customerEmail"`
	PlacedAt        time.Time `json:"placedAt"`
	ShippingAddress string    `json:"shippingAddress,omitempty"`
}

// Change describes the mutation requested against an order.
type Change struct {
	Type       RequestType `json:"type"`
	NewAddress string      `json:"newAddress,omitempty"`
}

// Intent is the structured result of classifying an inbound customer
// email.
type Intent struct {
	RequestType      RequestType `json:"requestType"`
	OrderNumber      string      `json:"orderNumber,omitempty"`
	RequestedAddress string      `json:"requestedAddress,omitempty"`
	Confidence       float64     `json:"confidence"`
}
