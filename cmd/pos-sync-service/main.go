package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"bitbucket.org/mmdatafocus/pos_terminal/models"
	"bitbucket.org/mmdatafocus/pos_terminal/possync"
	"bitbucket.org/mmdatafocus/pos_terminal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8090"

func main() {
	port := os.Getenv("POS_TERMINAL_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	terminalId := strings.TrimSpace(os.Getenv("TERMINAL_ID"))
	if terminalId == "" {
		logger.Fatal("TERMINAL_ID is required")
	}
	businessId := strings.TrimSpace(os.Getenv("BUSINESS_ID"))
	apiKey := strings.TrimSpace(os.Getenv("TERMINAL_API_KEY"))

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if err := config.ConnectDatabase(); err != nil {
		logger.Fatal(err)
	}
	defer config.CloseDatabase()
	models.MigrateTable()

	client, err := possync.NewServerClient(apiKey)
	if err != nil {
		logger.Fatal(err)
	}

	state := possync.NewStateManager()
	monitor := possync.NewNetworkMonitor(client, logger)
	bootstrapper := &possync.Bootstrapper{
		Client:     client,
		Logger:     logger,
		State:      state,
		TerminalId: terminalId,
	}
	pusher := &possync.Pusher{
		Client:     client,
		Logger:     logger,
		State:      state,
		TerminalId: terminalId,
		Bootstrap:  bootstrapper,
	}
	reconciler := possync.NewReconciler(client, logger, state, terminalId)
	worker := possync.NewSyncWorker(logger, monitor, pusher, bootstrapper, terminalId)

	engine := &possync.Engine{
		State:        state,
		Monitor:      monitor,
		Pusher:       pusher,
		Bootstrapper: bootstrapper,
		Reconciler:   reconciler,
		TerminalId:   terminalId,
	}

	go monitor.Run(sigCtx)
	go worker.Run(sigCtx)
	go logPendingCounts(sigCtx, logger, worker)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		ctx = utils.SetBusinessIdInContext(ctx, businessId)
		ctx = utils.SetTerminalIdInContext(ctx, terminalId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")

	r.Use(cors.New(corsConfig))
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	// Local terminal API
	r.GET("/v1/sync/status", possync.StatusHandler(engine))
	r.POST("/v1/sync/flush", possync.FlushHandler(engine))
	r.POST("/v1/sync/bootstrap", possync.BootstrapHandler(engine))
	r.POST("/v1/sync/merge", possync.MergeHandler(engine))
	r.POST("/v1/orders", possync.EnqueueOrderHandler())
	r.POST("/v1/activity-logs", possync.EnqueueActivityLogHandler())
	r.GET("/v1/reports/sales-overview", possync.SalesOverviewHandler())
	r.GET("/v1/reports/top-products", possync.TopSellingProductsHandler())
	r.GET("/v1/reports/payment-methods", possync.PaymentMethodBreakdownHandler())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func logPendingCounts(ctx context.Context, logger *logrus.Logger, worker *possync.SyncWorker) {
	for {
		select {
		case <-ctx.Done():
			return
		case count := <-worker.PendingCounts():
			logger.WithFields(logrus.Fields{
				"module":  "pos-sync-service",
				"pending": count,
			}).Info("pending count changed")
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}
