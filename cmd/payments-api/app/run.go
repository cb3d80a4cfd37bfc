package app

import (
	"context"
	"time"

	"github.com/dstein131/Main/configs"
	"github.com/dstein131/Main/internal/adapter/cache"
	"github.com/dstein131/Main/internal/adapter/email"
	apihttp "github.com/dstein131/Main/internal/adapter/http"
	"github.com/dstein131/Main/internal/adapter/http/middleware"
	"github.com/dstein131/Main/internal/adapter/queue"
	"github.com/dstein131/Main/internal/adapter/repo"
	stripeadapter "github.com/dstein131/Main/internal/adapter/stripe"
	"github.com/dstein131/Main/internal/logging"
	"github.com/dstein131/Main/internal/usecase"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logging.Init(cfg.App.Name, cfg.App.LogFile)
	l := logging.Base()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repo.Connect(ctx, cfg.MySQL.DSN, cfg.MySQL.MaxOpenConns, cfg.MySQL.MaxIdleConns, cfg.MySQL.ConnMaxLifetime)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		_ = db.Close()
		_ = rdb.Close()
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		_ = rdb.Close()
		return nil, nil, err
	}

	// infra
	cartRepo := repo.NewMySQLCartRepo(db)
	orderRepo := repo.NewMySQLOrderRepo(db)
	catalogRepo := repo.NewMySQLCatalogRepo(db)
	outboxRepo := repo.NewMySQLOutboxRepo(db)
	events := cache.NewRedisEventStore(rdb, cfg.Webhook.EventTTL)
	provider := stripeadapter.New(cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret)

	producer, err := queue.NewRabbitProducer(ch)
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		_ = rdb.Close()
		return nil, nil, err
	}

	// settlement pipeline
	cartSvc := usecase.NewCartService(cartRepo, catalogRepo)
	createIntent := usecase.NewCreateIntent(catalogRepo, provider)
	materializer := usecase.NewMaterializer(cartRepo, orderRepo)
	processEvent := usecase.NewProcessEvent(provider, orderRepo, materializer, events)

	// outbox drain + notification consumer
	pollerCtx, stopPoller := context.WithCancel(context.Background())
	poller := queue.NewOutboxPoller(outboxRepo, producer, logging.New("outbox"))
	go poller.Run(pollerCtx)

	sender := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	settled := queue.NewOrderSettledHandler(sender, cfg.SMTP.NotifyTo, logging.New("notify"))
	consumer := queue.NewConsumer(ch, "order.settled.q", queue.JSONHandler[usecase.OrderSettledMsg]{HandleFunc: settled.HandleSettled}, logging.New("consumer"))
	if err := consumer.Start(); err != nil {
		stopPoller()
		_ = conn.Close()
		_ = db.Close()
		_ = rdb.Close()
		return nil, nil, err
	}

	// handlers + router + middleware
	cartHandler := apihttp.NewCartHandler(cartSvc)
	payHandler := apihttp.NewPaymentHandler(createIntent, processEvent)
	orderHandler := apihttp.NewOrderHandler(orderRepo)
	authn := middleware.NewAuthn(cfg)
	router := apihttp.NewRouter(cartHandler, payHandler, orderHandler, authn)

	l.Info("payments-api wired", "http_addr", cfg.App.HTTPAddr)

	cleanup := func() {
		stopPoller()
		_ = ch.Close()
		_ = conn.Close()
		_ = rdb.Close()
		_ = db.Close()
	}
	return &App{Router: router}, cleanup, nil
}
