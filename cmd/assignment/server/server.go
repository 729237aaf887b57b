package server

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaishnaviprints/printlogic/cmd/assignment/server/handler"
	"github.com/vaishnaviprints/printlogic/pkg/assignment"
	"github.com/vaishnaviprints/printlogic/pkg/database"
	"github.com/vaishnaviprints/printlogic/pkg/kafka"
	"github.com/vaishnaviprints/printlogic/pkg/notify"
	"github.com/vaishnaviprints/printlogic/pkg/outbox"
	"github.com/vaishnaviprints/printlogic/pkg/scheduler"
)

type Server struct {
	Producer    *kafka.Producer
	Consumer    *kafka.Consumer
	Relay       *outbox.Relay
	Coordinator *assignment.Coordinator
	Handler     *handler.Handler
	Timers      *scheduler.DelayQueue[assignment.TimerItem]
}

func NewServer(prodConf kafka.ProducerConfig, consConf kafka.ConsumerConfig) (*Server, error) {
	producer := kafka.NewProducer(prodConf)

	store, err := database.NewStoreFromEnv(context.Background())
	if err != nil {
		return nil, err
	}

	relay := outbox.NewRelay(producer, store, kafka.TopicAssignment)
	timers := scheduler.NewQueue[assignment.TimerItem](64)
	registry := notify.NewRegistry(producer)

	coord := assignment.NewCoordinator(store, timers, registry, relay)
	consumer := kafka.NewConsumer(consConf, relay)

	return &Server{
		Producer:    producer,
		Consumer:    consumer,
		Relay:       relay,
		Coordinator: coord,
		Handler:     handler.NewHandler(coord),
		Timers:      timers,
	}, nil
}

func (s *Server) Start() error {
	log.Println("Starting Assignment Service...")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.Consumer.ConsumeWithRetry(ctx, s.Handler.HandleMessage, 3); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := s.Coordinator.RunTimeouts(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := s.Relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return s.HandleShutdown(ctx, g)
}

func (s *Server) HandleShutdown(ctx context.Context, g *errgroup.Group) error {
	<-ctx.Done()
	log.Println("Shutdown signal received, commencing graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Producer.Close(); err != nil {
		log.Printf("Error closing producer: %v", err)
	}
	if err := s.Consumer.Close(); err != nil {
		log.Printf("Error closing consumer: %v", err)
	}
	s.Timers.Close()

	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}

	select {
	case <-shutdownCtx.Done():
		if shutdownCtx.Err() == context.DeadlineExceeded {
			log.Println("Graceful shutdown timed out")
		}
	default:
	}
	log.Println("Assignment Service stopped cleanly")
	return nil
}
