package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"goqsw"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	config, err := readConfig("config.yaml")
	if err != nil {
		log.Fatalf("Error reading configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	client := goqsw.NewClient(nil, goqsw.ConnectionOptions{
		URL:      config.URL,
		User:     config.Username,
		Password: config.Password,
	})
	client.SetLogger(logger)
	device := goqsw.NewDevice(client)

	// Fail fast on an unreachable host or bad credentials before serving.
	ctx, cancel := context.WithTimeout(context.Background(), config.scrapeTimeout())
	board, err := device.Validate(ctx)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, goqsw.ErrInvalidHost):
			log.Fatalf("Switch unreachable at %s: %v", config.URL, err)
		case errors.Is(err, goqsw.ErrLogin):
			log.Fatalf("Login rejected by %s: %v", config.URL, err)
		default:
			log.Fatalf("Error validating switch connection: %v", err)
		}
	}
	if model := board.Model; model != nil {
		log.Printf("Connected to %s", *model)
	}

	collector := newQswCollector(device, config.scrapeTimeout())
	prometheus.MustRegister(collector)

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("Starting Prometheus exporter on %s/metrics", config.Listen)
		if err := http.ListenAndServe(config.Listen, nil); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown handling
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel = context.WithTimeout(context.Background(), config.scrapeTimeout())
	defer cancel()
	device.Client().Logout(ctx)
}
