package main

import (
	"log"
	"strings"

	"github.com/vaishnaviprints/printlogic/cmd/assignment/server"
	"github.com/vaishnaviprints/printlogic/pkg/kafka"
	"github.com/vaishnaviprints/printlogic/pkg/utils"
)

func main() {
	kafkaBrokers := utils.GetEnv("KAFKA_BROKERS", "kafka:9092")

	brokers := strings.Split(kafkaBrokers, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	prodConf := kafka.ProducerConfig{
		Brokers: brokers,
	}
	consConf := kafka.ConsumerConfig{
		Brokers: brokers,
		Topics:  []string{kafka.TopicOrder, kafka.TopicVendor},
		GroupId: utils.GetEnv("ASSIGNMENT_GROUP_ID", "assignment-service"),
	}

	srv, err := server.NewServer(prodConf, consConf)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
