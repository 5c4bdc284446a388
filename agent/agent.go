package agent

import (
	"sync"

	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/remyhfb/delight-desk-v2-sub006/eligibility"
	"github.com/remyhfb/delight-desk-v2-sub006/fulfillment"
	"github.com/remyhfb/delight-desk-v2-sub006/intent"
	"github.com/remyhfb/delight-desk-v2-sub006/logger"
	"github.com/remyhfb/delight-desk-v2-sub006/model"
	"github.com/remyhfb/delight-desk-v2-sub006/notify"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence"
	"github.com/remyhfb/delight-desk-v2-sub006/persistence/inmem"
	redisstore "github.com/remyhfb/delight-desk-v2-sub006/persistence/redis"
	"github.com/remyhfb/delight-desk-v2-sub006/rest"
	"github.com/remyhfb/delight-desk-v2-sub006/scheduler"
	"github.com/remyhfb/delight-desk-v2-sub006/util"
	"github.com/remyhfb/delight-desk-v2-sub006/workflow"
)

type Agent struct {
	Config          config.Config
	store           persistence.WorkflowStore
	dispatcher      notify.Dispatcher
	workflowService *workflow.WorkflowService
	escalation      *scheduler.EscalationScheduler
	httpServer      *rest.Server
	shutdown        bool
	shutdownLock    sync.Mutex
	wg              sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config: conf,
	}
	setup := []func() error{
		a.setupStore,
		a.setupWorkflowService,
		a.setupScheduler,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStore() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		conf := redisstore.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		}
		encoderDecoder := util.NewJsonEncoderDecoder[model.WorkflowRecord]()
		a.store = redisstore.NewRedisWorkflowStore(conf, encoderDecoder)
	default:
		a.store = inmem.NewInMemWorkflowStore()
	}
	return nil
}

func (a *Agent) setupWorkflowService() error {
	a.dispatcher = notify.NewHttpMailDispatcher(a.Config.Mailer)
	storeClient := fulfillment.NewStoreClient(a.Config.Backend, a.Config.Policy)
	registry := fulfillment.NewRegistry(
		fulfillment.NewWarehouseEmailAdapter(storeClient, a.dispatcher, a.Config.Policy, a.Config.Backend.WarehouseAddress, nil),
		fulfillment.NewThreePLAdapter(storeClient, a.Config.Backend, a.Config.Policy, nil),
		fulfillment.NewSelfFulfillmentAdapter(storeClient),
	)
	guard := eligibility.NewGuard(a.Config.Policy.GuardExpression)
	if err := guard.Validate(); err != nil {
		return err
	}
	machine := workflow.NewMachine(a.store, registry, a.dispatcher, guard, nil, a.Config.Policy, a.Config.Mailer.OperatorAddress, nil)
	extractor := intent.NewHttpClassifierExtractor(a.Config.Intent)
	settings := workflow.StaticSettings{Method: model.FulfillmentMethod(a.Config.Backend.DefaultFulfillmentMethod)}
	a.workflowService = workflow.NewWorkflowService(a.store, machine, extractor, settings, a.dispatcher, a.Config.Intent.ConfidenceThreshold, nil)
	return nil
}

func (a *Agent) setupScheduler() error {
	a.escalation = scheduler.NewEscalationScheduler(a.workflowService, a.Config.Policy.SchedulerTick, &a.wg)
	a.escalation.Start()
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.workflowService)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	go func() {
		err := a.httpServer.Start()
		if err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		func() error {
			a.escalation.Stop()
			return nil
		},
		a.httpServer.Stop,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
