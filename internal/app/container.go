package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/simpledialer/internal/config"
	"github.com/acme/simpledialer/internal/dialer"
	"github.com/acme/simpledialer/internal/infra/db"
	"github.com/acme/simpledialer/internal/infra/redis"
	"github.com/acme/simpledialer/internal/queue"
	"github.com/acme/simpledialer/internal/report"
	"github.com/acme/simpledialer/internal/repository"
	pgrepo "github.com/acme/simpledialer/internal/repository/postgres"
	scyllarepo "github.com/acme/simpledialer/internal/repository/scylla"
	campaignsvc "github.com/acme/simpledialer/internal/service/campaign"
	"github.com/acme/simpledialer/internal/service/runsignal"
	"github.com/acme/simpledialer/internal/telephony"
	telephonyMock "github.com/acme/simpledialer/internal/telephony/mock"
	"github.com/acme/simpledialer/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		publisher    *queue.StatusPublisher
		telephony    telephony.Client
		signal       *runsignal.Signal
		reports      *report.Store
		initErr      error
	}
}

type repositories struct {
	Campaigns repository.CampaignRepository
	Contacts  repository.ContactRepository
	CallLogs  repository.CallLogRepository
	Events    repository.EventArchive
}

type services struct {
	Campaign *campaignsvc.Service
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

func (c *Container) initComponents() error {
	c.components.once.Do(func() {
		repos := &repositories{
			Campaigns: pgrepo.NewCampaignRepository(c.Postgres.DB()),
			Contacts:  pgrepo.NewContactRepository(c.Postgres.DB()),
			CallLogs:  pgrepo.NewCallLogRepository(c.Postgres.DB()),
			Events:    scyllarepo.NewEventArchive(c.Scylla.Session()),
		}

		c.components.repositories = repos
		c.components.services = &services{
			Campaign: campaignsvc.NewService(repos.Campaigns, repos.Contacts, repos.CallLogs),
		}
		c.components.publisher = queue.NewStatusPublisher(c.Kafka, c.Config.Kafka.StatusTopic, c.Config.Kafka.SummaryTopic)
		c.components.signal = runsignal.New(c.Redis.Inner(), c.Config.Dialer.RunLockTTL)
		c.components.reports = report.NewStore(c.Config.Report)

		switch c.Config.Telephony.Provider {
		case "mock":
			c.components.telephony = telephonyMock.NewClient(c.Config.Telephony)
		default:
			c.components.initErr = fmt.Errorf("unknown telephony provider %q", c.Config.Telephony.Provider)
		}
	})
	return c.components.initErr
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	_ = c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	_ = c.initComponents()
	return c.components.services
}

// Signal exposes the run signal helper.
func (c *Container) Signal() *runsignal.Signal {
	_ = c.initComponents()
	return c.components.signal
}

// NewDialer builds a dialer ready to run one campaign.
func (c *Container) NewDialer() (*dialer.Dialer, error) {
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	repos := c.components.repositories
	deps := dialer.Deps{
		Campaigns: repos.Campaigns,
		Contacts:  repos.Contacts,
		CallLogs:  repos.CallLogs,
		Archive:   repos.Events,
		Telephony: c.components.telephony,
		Signal:    c.components.signal,
		Publisher: c.components.publisher,
		Reports:   c.components.reports,
	}
	return dialer.New(deps, c.Config.Dialer, c.Config.Telephony, c.Logger), nil
}

// EnsureTopics creates the Kafka topics the publisher writes to.
func (c *Container) EnsureTopics(ctx context.Context) error {
	topics := []string{c.Config.Kafka.StatusTopic, c.Config.Kafka.SummaryTopic}
	return c.Kafka.EnsureTopics(ctx, topics, 3, 1)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if c.components.publisher != nil {
		if err := c.components.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("status publisher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}

	if c.Logger != nil {
		c.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("container close: %v", errs)
	}
	return nil
}
