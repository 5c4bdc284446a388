package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"go.uber.org/zap"
)

type TemplateId string

const TEMPLATE_CUSTOMER_ACK TemplateId = "customer_ack"
const TEMPLATE_CUSTOMER_CANNOT_FULFILL TemplateId = "customer_cannot_fulfill"
const TEMPLATE_CUSTOMER_COMPLETED TemplateId = "customer_completed"
const TEMPLATE_WAREHOUSE_REQUEST TemplateId = "warehouse_request"
const TEMPLATE_OPERATOR_ESCALATION TemplateId = "operator_escalation"
const TEMPLATE_OPERATOR_FAILED TemplateId = "operator_failed"

// Dispatcher sends templated notification email. It is fire and forget
// from the workflow's point of view: delivery failures are logged and
// retried here, never surfaced as workflow failures.
type Dispatcher interface {
	Send(ctx context.Context, templateId TemplateId, recipient string, contextData map[string]any) error
}

var _ Dispatcher = new(httpMailDispatcher)

type httpMailDispatcher struct {
	conf      config.MailerConfig
	client    *http.Client
	templates map[TemplateId]Template
}

func NewHttpMailDispatcher(conf config.MailerConfig) *httpMailDispatcher {
	return &httpMailDispatcher{
		conf:      conf,
		client:    &http.Client{Timeout: 10 * time.Second},
		templates: defaultTemplates(),
	}
}

type mailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (d *httpMailDispatcher) Send(ctx context.Context, templateId TemplateId, recipient string, contextData map[string]any) error {
	tmpl, ok := d.templates[templateId]
	if !ok {
		return fmt.Errorf("unknown notification template %s", templateId)
	}
	req := mailRequest{
		From:    d.conf.FromAddress,
		To:      recipient,
		Subject: ResolveTemplate(tmpl.Subject, contextData),
		Body:    ResolveTemplate(tmpl.Body, contextData),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	err = backoff.Retry(func() error {
		return d.post(ctx, payload)
	}, b)
	if err != nil {
		logger.Error("error sending notification", zap.String("template", string(templateId)), zap.String("recipient", recipient), zap.Error(err))
		return err
	}
	logger.Info("notification sent", zap.String("template", string(templateId)), zap.String("recipient", recipient))
	return nil
}

func (d *httpMailDispatcher) post(ctx context.Context, payload []byte) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.conf.ApiURL, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	res, err := d.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 500 {
		return fmt.Errorf("mail api returned %d", res.StatusCode)
	}
	if res.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("mail api rejected request with %d", res.StatusCode))
	}
	return nil
}
