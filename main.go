package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/remyhfb/delight-desk-v2-sub006/agent"
	"github.com/remyhfb/delight-desk-v2-sub006/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "delightdesk", "namespace used in storage")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "redis", "implementation of underline storage")
	cmd.Flags().Duration("flat-cutoff", 24*time.Hour, "flat order modification window")
	cmd.Flags().Bool("weekend-grace", true, "extend eligibility of friday afternoon and weekend orders to monday noon")
	cmd.Flags().Duration("escalation-timeout", 8*time.Hour, "how long to wait for a warehouse reply before escalating")
	cmd.Flags().Duration("scheduler-tick", 30*time.Second, "escalation scheduler poll interval")
	cmd.Flags().Uint64("backend-max-attempts", 3, "retry attempts for transient backend failures")
	cmd.Flags().Duration("backend-retry-interval", 2*time.Second, "initial backoff interval for backend retries")
	cmd.Flags().String("guard-expression", "", "optional javascript eligibility guard")
	cmd.Flags().String("classifier-url", "http://localhost:9090/classify", "intent classifier endpoint")
	cmd.Flags().Float64("confidence-threshold", 0.75, "minimum intent confidence to automate")
	cmd.Flags().String("mail-api-url", "http://localhost:9091/send", "transactional mail api endpoint")
	cmd.Flags().String("from-address", "support@example.com", "from address for outbound notifications")
	cmd.Flags().String("operator-address", "", "address receiving escalation and failure notices")
	cmd.Flags().String("threepl-api-url", "", "3pl api endpoint")
	cmd.Flags().String("store-api-url", "", "store platform api endpoint")
	cmd.Flags().String("warehouse-address", "", "warehouse coordination email address")
	cmd.Flags().String("fulfillment-method", "warehouse_email", "configured fulfillment backend")
	cmd.Flags().Duration("order-status-cache-ttl", 30*time.Second, "ttl of cached live order status lookups")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.Policy.FlatCutoff = viper.GetDuration("flat-cutoff")
	c.cfg.Policy.WeekendGraceEnabled = viper.GetBool("weekend-grace")
	c.cfg.Policy.EscalationTimeout = viper.GetDuration("escalation-timeout")
	c.cfg.Policy.SchedulerTick = viper.GetDuration("scheduler-tick")
	c.cfg.Policy.BackendMaxAttempts = viper.GetUint64("backend-max-attempts")
	c.cfg.Policy.BackendRetryInterval = viper.GetDuration("backend-retry-interval")
	c.cfg.Policy.GuardExpression = viper.GetString("guard-expression")
	c.cfg.Intent.ClassifierURL = viper.GetString("classifier-url")
	c.cfg.Intent.ConfidenceThreshold = viper.GetFloat64("confidence-threshold")
	c.cfg.Mailer.ApiURL = viper.GetString("mail-api-url")
	c.cfg.Mailer.FromAddress = viper.GetString("from-address")
	c.cfg.Mailer.OperatorAddress = viper.GetString("operator-address")
	c.cfg.Backend.ThreePLApiURL = viper.GetString("threepl-api-url")
	c.cfg.Backend.StoreApiURL = viper.GetString("store-api-url")
	c.cfg.Backend.WarehouseAddress = viper.GetString("warehouse-address")
	c.cfg.Backend.DefaultFulfillmentMethod = viper.GetString("fulfillment-method")
	c.cfg.Backend.OrderStatusCacheTTL = viper.GetDuration("order-status-cache-ttl")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		panic(err)
	}
	err = agent.Start()
	if err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "delightdesk",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
