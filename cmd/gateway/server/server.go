package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vaishnaviprints/printlogic/cmd/gateway/server/handler"
	"github.com/vaishnaviprints/printlogic/cmd/gateway/server/service"
	"github.com/vaishnaviprints/printlogic/pkg/kafka"
)

type Server struct {
	Config   ServerConfig
	Producer *kafka.Producer
	Handler  *handler.Handler
	Router   *gin.Engine
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func NewServer(conf ServerConfig, prodConf kafka.ProducerConfig) (*Server, error) {
	producer := kafka.NewProducer(prodConf)

	svc, err := service.NewService(context.Background(), producer)
	if err != nil {
		return nil, err
	}

	server := &Server{
		Config:   conf,
		Producer: producer,
		Handler:  handler.NewHandler(svc),
	}

	server.SetupRouter()

	return server, nil
}

func (s *Server) SetupRouter() {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	//	middleware
	router.Use(gin.Recovery())

	// routes
	api := router.Group("/api/v1")
	{
		api.POST("/estimates", s.Handler.Estimate)

		orders := api.Group("/orders")
		{
			orders.POST("", s.Handler.CreateOrder)
			orders.GET("/:id", s.Handler.GetOrder)
			orders.POST("/:id/pay", s.Handler.PayOrder)
			orders.POST("/:id/cancel", s.Handler.CancelOrder)
			orders.POST("/:id/respond", s.Handler.VendorRespond)
		}

		vendors := api.Group("/vendors")
		{
			vendors.POST("", s.Handler.RegisterVendor)
		}

		admin := api.Group("/admin")
		{
			admin.GET("/manual-queue", s.Handler.ListManualQueue)
			admin.POST("/orders/:id/assign", s.Handler.ManualAssign)
			admin.POST("/rules", s.Handler.CreateRule)
		}
	}
	router.GET("/health", s.Handler.HealthCheck)

	s.Router = router
}

func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", s.Config.Port),
		Handler:      s.Router,
		ReadTimeout:  s.Config.ReadTimeout,
		WriteTimeout: s.Config.WriteTimeout,
		IdleTimeout:  s.Config.IdleTimeout,
	}

	go func() {
		log.Printf("API Gateway starting on %s", s.Config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	return s.HandleShutdown(srv)
}

func (s *Server) HandleShutdown(srv *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down API Gateway...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown server: %v", err)
		return err
	}

	if err := s.Producer.Close(); err != nil {
		log.Printf("Failed to close kafka Producer: %v", err)
		return err
	}

	log.Printf("API Gateway stopped")
	return nil
}
