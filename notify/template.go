package notify

type Template struct {
	Subject string
	Body    string
}

func defaultTemplates() map[TemplateId]Template {
	return map[TemplateId]Template{
		TEMPLATE_CUSTOMER_ACK: {
			Subject: "We received your {$.requestType} request for order {$.orderNumber}",
			Body:    "Hi,\n\nWe're on it. Your {$.requestType} request for order {$.orderNumber} is being processed and we'll follow up as soon as we hear back.\n",
		},
		TEMPLATE_CUSTOMER_CANNOT_FULFILL: {
			Subject: "About your {$.requestType} request for order {$.orderNumber}",
			Body:    "Hi,\n\nUnfortunately we couldn't complete your request: {$.reason}\n\nReply to this email and our team will help directly.\n",
		},
		TEMPLATE_CUSTOMER_COMPLETED: {
			Subject: "Your {$.requestType} request for order {$.orderNumber} is done",
			Body:    "Hi,\n\nGood news, your {$.requestType} request for order {$.orderNumber} has been completed.\n",
		},
		TEMPLATE_WAREHOUSE_REQUEST: {
			Subject: "[Action needed] {$.requestType} for order {$.orderNumber}",
			Body:    "Team,\n\nPlease action a {$.requestType} for order {$.orderNumber}.\n{$.detail}\n\nReply to this email with the outcome.\n",
		},
		TEMPLATE_OPERATOR_ESCALATION: {
			Subject: "[Escalated] workflow {$.workflowId} needs a human",
			Body:    "Workflow {$.workflowId} ({$.requestType}, order {$.orderNumber}) got no warehouse reply before the deadline. Please take over.\n",
		},
		TEMPLATE_OPERATOR_FAILED: {
			Subject: "[Failed] workflow {$.workflowId} needs attention",
			Body:    "Workflow {$.workflowId} ({$.requestType}, order {$.orderNumber}) failed: {$.reason}\n",
		},
	}
}
