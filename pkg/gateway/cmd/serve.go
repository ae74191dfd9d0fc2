package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-redis/redis"
	"github.com/gorilla/mux"
	colorable "github.com/mattn/go-colorable"
	"github.com/ory/herodot"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/C0kke/FitFashion/pkg/bridge"
	"github.com/C0kke/FitFashion/pkg/gateway"
	"github.com/C0kke/FitFashion/pkg/gateway/config"
	"github.com/C0kke/FitFashion/pkg/middleware"
	"github.com/C0kke/FitFashion/pkg/stats"
	"github.com/C0kke/FitFashion/pkg/transport"
	amqptransport "github.com/C0kke/FitFashion/pkg/transport/amqp"
	kafkatransport "github.com/C0kke/FitFashion/pkg/transport/kafka"
)

var (
	flagConfigFile string
	flagListen     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Parent command for starting the HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		// Setup logging
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{
			ForceColors: true,
		})
		log.SetOutput(colorable.NewColorableStdout())

		log.Info("Starting FitFashion gateway...")

		cfg, err := config.Load(flagConfigFile)
		if err != nil {
			log.Error(err)
			os.Exit(1)
		}

		if flagListen != "" {
			cfg.Listen = flagListen
		}

		log.WithFields(log.Fields{"listen": cfg.Listen, "amqpUrl": cfg.AMQPURL, "kafkaBrokers": cfg.KafkaBrokers}).
			Debug("Application settings")

		// One registry, listener and dispatcher per transport. Replies
		// can only arrive on the transport the request went out on.
		amqpRegistry := bridge.NewRegistry()
		amqpTransport, err := amqptransport.Dial(cfg.AMQPURL,
			amqptransport.WithOnDisconnect(func(cause error) {
				amqpRegistry.FailAll(cause)
			}))
		if err != nil {
			log.Error("AMQP connection failed: ", err)
			os.Exit(1)
		}
		defer amqpTransport.Close()

		amqpReplyTo, err := bridge.NewListener(amqpRegistry).Start(amqpTransport, cfg.ReplyQueue)
		if err != nil {
			log.Error("Failed to start AMQP reply listener: ", err)
			os.Exit(1)
		}
		amqpDispatcher := bridge.NewDispatcher(amqpTransport, amqpRegistry, amqpReplyTo,
			bridge.WithDefaultTimeout(cfg.Timeout()))

		kafkaRegistry := bridge.NewRegistry()
		kafkaTransport, err := kafkatransport.Dial(cfg.KafkaBrokers, cfg.ReplyGroupID())
		if err != nil {
			log.Error("Kafka connection failed: ", err)
			os.Exit(1)
		}
		defer kafkaTransport.Close()

		kafkaReplyTo, err := bridge.NewListener(kafkaRegistry).Start(kafkaTransport, cfg.ReplyTopic)
		if err != nil {
			log.Error("Failed to start Kafka reply listener: ", err)
			os.Exit(1)
		}
		kafkaDispatcher := bridge.NewDispatcher(kafkaTransport, kafkaRegistry, kafkaReplyTo,
			bridge.WithDefaultTimeout(cfg.Timeout()))

		// Connect to redis for dispatch stats
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		if _, err := redisClient.Ping().Result(); err != nil {
			log.Warn("Redis connection failed, dispatch stats disabled: ", err)
			redisClient = nil
		}
		collector := stats.NewCollector(redisClient)

		dispatchers := map[string]gateway.Dispatcher{
			"amqp":  amqpDispatcher,
			"kafka": kafkaDispatcher,
		}
		route := func(group string) gateway.Route {
			rt, ok := cfg.Routes[group]
			if !ok {
				log.Errorf("No route configured for group %s", group)
				os.Exit(1)
			}
			return gateway.Route{Dispatcher: dispatchers[rt.Transport], Destination: rt.Destination}
		}

		// Create a new HTTP router
		r := mux.NewRouter()

		handler := gateway.NewHandler(route("products"), route("cart"), route("auth"),
			herodot.NewJSONWriter(nil), collector)
		handler.RegisterRoutes(r.PathPrefix("/api/v1").Subrouter())

		// Catch SIGINT
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)

		// Create the http server and start it in the background
		withCORS := middleware.CORSHandler()
		h := &http.Server{Addr: cfg.Listen, Handler: middleware.WithLogging(withCORS(r))}

		go func() {
			log.Infof("Listening on http://0.0.0.0%s\n", cfg.Listen)

			if err := h.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error(err)
				os.Exit(1)
			}
		}()

		log.Info("FitFashion gateway started")
		<-stop

		// App received SIGINT signal. Shutdown now!
		log.Info("Shutting down FitFashion gateway...")
		h.Shutdown(context.Background())
		amqpRegistry.FailAll(transport.ErrNotReady)
		kafkaRegistry.FailAll(transport.ErrNotReady)
		log.Info("FitFashion gateway stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagConfigFile, "config", "c", "", "Path to the yaml configuration file")
	serveCmd.Flags().StringVarP(&flagListen, "listen", "", "", "Override the configured HTTP listen address")
}
