package config

import "time"

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig RedisStorageConfig
	StorageType StorageType
	HttpPort    int
	Policy      Policy
	Intent      IntentConfig
	Mailer      MailerConfig
	Backend     BackendConfig
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

// Policy holds the business-policy knobs for the workflow engine. The
// numbers are merchant policy, not derived constants, so they stay
// configurable.
type Policy struct {
	// FlatCutoff bounds automated order changes for warehouse and 3PL
	// backends after order placement.
	FlatCutoff time.Duration
	// WeekendGraceEnabled extends eligibility for orders placed from
	// Friday noon onward until the following Monday noon, because
	// warehouse pick/pack does not run on weekends.
	WeekendGraceEnabled bool
	// EscalationTimeout bounds how long a workflow waits on a warehouse
	// reply before it is handed to a human.
	EscalationTimeout time.Duration
	// SchedulerTick is the poll interval of the escalation scheduler.
	SchedulerTick time.Duration
	// BackendMaxAttempts caps retries of transient backend failures.
	BackendMaxAttempts uint64
	// BackendRetryInterval is the initial backoff interval for backend
	// retries.
	BackendRetryInterval time.Duration
	// GuardExpression is an optional merchant-defined javascript guard
	// evaluated after the built-in eligibility rules. Empty disables it.
	GuardExpression string
}

type IntentConfig struct {
	// ClassifierURL is the endpoint of the intent extraction service.
	ClassifierURL string
	// ConfidenceThreshold below which an email is left for human triage.
	ConfidenceThreshold float64
}

type MailerConfig struct {
	// ApiURL is the endpoint of the transactional mail service.
	ApiURL      string
	FromAddress string
	// OperatorAddress receives escalation notices.
	OperatorAddress string
}

type BackendConfig struct {
	// ThreePLApiURL and StoreApiURL are the mutation endpoints of the
	// API-backed fulfillment variants.
	ThreePLApiURL string
	StoreApiURL   string
	// WarehouseAddress receives coordination emails for the
	// warehouse-email fulfillment variant.
	WarehouseAddress string
	// DefaultFulfillmentMethod is the merchant's configured backend,
	// snapshotted onto each workflow at creation.
	DefaultFulfillmentMethod string
	// OrderStatusCacheTTL bounds staleness of cached live order-status
	// lookups.
	OrderStatusCacheTTL time.Duration
}
