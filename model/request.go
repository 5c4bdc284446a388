package model

type InboundEmailRequest struct {
	UserId      string `json:"userId"`
	FromAddress string `json:"fromAddress"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

type WarehouseReplyRequest struct {
	WorkflowId  string      `json:"workflowId,omitempty"`
	OrderNumber string      `json:"orderNumber,omitempty"`
	RequestType RequestType `json:"requestType,omitempty"`
	Body        string      `json:"body"`
}

// TestRunRequest drives the operator-facing self-verification mode:
// the full state machine runs against stubbed mutating backends while
// notifications are genuinely sent to the supplied addresses.
type TestRunRequest struct {
	UserId           string `json:"userId"`
	EmailBody        string `json:"emailBody"`
	CustomerAddress  string `json:"customerAddress"`
	WarehouseAddress string `json:"warehouseAddress,omitempty"`
}
