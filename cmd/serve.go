package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-payment-events/app/controller"
	eventsgrpc "github.com/vibast-solutions/ms-go-payment-events/app/grpc"
	"github.com/vibast-solutions/ms-go-payment-events/config"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) webhook and admin API, the gRPC queue service and the subscription sweep worker.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type controllers struct {
	webhooks      *controller.WebhookController
	partners      *controller.PartnerController
	payments      *controller.PaymentController
	queue         *controller.QueueController
	subscriptions *controller.SubscriptionController
	discounts     *controller.DiscountController
	health        *controller.HealthController
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, svc, cleanup := mustCreateServices()
	defer cleanup()

	ctrl := &controllers{
		webhooks:      controller.NewWebhookController(svc.webhooks),
		partners:      controller.NewPartnerController(svc.partners, svc.dispatcher, svc.backend),
		payments:      controller.NewPaymentController(svc.payments),
		queue:         controller.NewQueueController(svc.queue),
		subscriptions: controller.NewSubscriptionController(svc.subscriptions),
		discounts:     controller.NewDiscountController(svc.discounts),
		health:        controller.NewHealthController(svc.payments, svc.bus),
	}

	e := setupHTTPServer(ctrl, cfg.App.APIKey)
	grpcSrv, lis := setupGRPCServer(cfg, eventsgrpc.NewServer(svc.queue, svc.subscriptions))

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	var sweepers sync.WaitGroup
	startSweepers(sweepCtx, &sweepers, cfg.Jobs, svc)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	stopSweep()
	sweepers.Wait()
	svc.webhooks.Wait()

	logrus.Info("Server stopped")
}

func setupHTTPServer(ctrl *controllers, apiKey string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	admin := controller.RequireAPIKey(apiKey)

	e.GET("/health", ctrl.health.Health)

	webhooks := e.Group("/webhooks")
	webhooks.POST("/stripe", ctrl.webhooks.Stripe)
	webhooks.POST("/mercadopago", ctrl.webhooks.MercadoPago)
	webhooks.POST("/mock", ctrl.webhooks.Mock)
	webhooks.POST("/external", ctrl.webhooks.External)
	webhooks.POST("/test", ctrl.webhooks.Test, admin)
	webhooks.GET("/events", ctrl.webhooks.ListEvents, admin)

	partners := e.Group("/partners", admin)
	partners.POST("/register", ctrl.partners.Register)
	partners.GET("", ctrl.partners.List)
	partners.GET("/events/available", ctrl.partners.AvailableEvents)
	partners.POST("/notify/:event", ctrl.partners.Notify)
	partners.GET("/:id", ctrl.partners.Get)
	partners.PATCH("/:id", ctrl.partners.Update)
	partners.DELETE("/:id", ctrl.partners.Delete)
	partners.POST("/:id/rotate-secret", ctrl.partners.RotateSecret)
	partners.POST("/:id/verify-webhook", ctrl.partners.VerifyWebhook)

	payments := e.Group("/payments")
	payments.POST("", ctrl.payments.CreatePayment)
	payments.GET("/gateways", ctrl.payments.Gateways)
	payments.POST("/refund", ctrl.payments.Refund, admin)
	payments.GET("/:id", ctrl.payments.GetPayment)

	queue := e.Group("/queue")
	queue.POST("", ctrl.queue.Enqueue)
	queue.GET("/next/:business_id", ctrl.queue.Next)
	queue.GET("/peek/:business_id", ctrl.queue.Peek)
	queue.GET("/position/:booking_id", ctrl.queue.Position)
	queue.GET("/business/:business_id", ctrl.queue.List)
	queue.GET("/stats/:business_id", ctrl.queue.Stats)
	queue.DELETE("/business/:business_id", ctrl.queue.Clear, admin)
	queue.DELETE("/:booking_id", ctrl.queue.Cancel)

	subscriptions := e.Group("/subscriptions")
	subscriptions.POST("", ctrl.subscriptions.Create)
	subscriptions.POST("/cancel", ctrl.subscriptions.Cancel)
	subscriptions.GET("/plans/info", ctrl.subscriptions.PlanInfo)
	subscriptions.GET("/premium/users", ctrl.subscriptions.PremiumUsers, admin)
	subscriptions.GET("/user/:user_id", ctrl.subscriptions.GetByUser)
	subscriptions.GET("/user/:user_id/verify", ctrl.subscriptions.VerifyPremium)
	subscriptions.GET("/:id", ctrl.subscriptions.Get)
	subscriptions.POST("/:id/renew", ctrl.subscriptions.Renew, admin)
	subscriptions.POST("/:id/pause", ctrl.subscriptions.Pause)
	subscriptions.POST("/:id/resume", ctrl.subscriptions.Resume)

	discounts := e.Group("/discounts")
	discounts.GET("/user/:user_id", ctrl.discounts.ForUser)
	discounts.POST("/claim", ctrl.discounts.Claim)
	discounts.GET("/stats", ctrl.discounts.Stats, admin)

	return e
}

func setupGRPCServer(cfg *config.Config, queueServer *eventsgrpc.Server) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			eventsgrpc.RecoveryInterceptor(),
			eventsgrpc.RequestIDInterceptor(),
			eventsgrpc.LoggingInterceptor(),
		),
	)
	eventsgrpc.RegisterQueueServiceServer(grpcSrv, queueServer)

	return grpcSrv, lis
}

// startSweepers runs the subscription jobs in-process until ctx is cancelled.
func startSweepers(ctx context.Context, wg *sync.WaitGroup, cfg config.JobsConfig, svc *services) {
	for _, job := range subscriptionJobs(cfg) {
		if job.interval <= 0 {
			continue
		}
		wg.Add(1)
		go func(job subscriptionJob) {
			defer wg.Done()
			ticker := time.NewTicker(job.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					runJob(job.name, func() error { return job.run(ctx, svc) })
				}
			}
		}(job)
	}
}
