package main

import (
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"github.com/user/lei-da-rua/config"
	"github.com/user/lei-da-rua/internal/broadcast"
	"github.com/user/lei-da-rua/internal/district"
	"github.com/user/lei-da-rua/internal/game"
	"github.com/user/lei-da-rua/internal/pipeline"
	"github.com/user/lei-da-rua/internal/reputation"
	"github.com/user/lei-da-rua/internal/store"
	"github.com/user/lei-da-rua/internal/types"
	"github.com/user/lei-da-rua/internal/whatsapp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "./config/config.json", "Path to configuration file")
	flag.Parse()

	// Set up logger
	logger := setupLogger()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Open the simulation store
	db, err := store.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()

	// Load simulation data
	loader := game.NewDataLoader(cfg.DataDir, logger)

	impacts, err := loader.LoadImpactTable()
	if err != nil {
		logger.Fatal("Failed to load impact table", zap.Error(err))
	}
	logger.Info("Loaded impact table", zap.Int("event_types", len(impacts)))

	thresholds, err := loader.LoadThresholds()
	if err != nil {
		logger.Fatal("Failed to load threshold definitions", zap.Error(err))
	}
	logger.Info("Loaded threshold definitions", zap.Int("count", len(thresholds)))

	graph, err := loader.LoadGraph()
	if err != nil {
		logger.Fatal("Failed to load city data", zap.Error(err))
	}
	districts := graph.DistrictIDs()
	logger.Info("Loaded city data", zap.Int("districts", len(districts)))

	// Simulation services
	engine := district.NewEngine(db, impacts, cfg.Simulation, logger)
	scheduler := district.NewScheduler(db, thresholds, districts, logger)
	sweeper := district.NewSweeper(engine, scheduler, districts,
		time.Duration(cfg.Simulation.RecalcInterval)*time.Minute,
		time.Duration(cfg.Simulation.ThresholdInterval)*time.Minute,
		logger)

	ledger := reputation.NewLedger(db, logger)
	propagator := reputation.NewPropagator(ledger, graph, cfg.Propagation, logger)

	// WhatsApp client manager with the street command handler
	commands := game.NewStreetCommands(engine, ledger, graph, db, logger)
	clientManager := whatsapp.NewClientManager(commands, cfg, logger)
	qrManager := whatsapp.NewQRCodeManager(clientManager, cfg, logger)
	sessionManager := whatsapp.NewSessionManager(cfg.WhatsApp.StoreDir, logger)

	// Broadcast fan-out over websocket sessions plus WhatsApp push
	hub := broadcast.NewHub(logger)
	router := broadcast.NewRouter(hub, clientManager, db, logger)

	// Operation pipeline and intent actions
	ops := pipeline.NewPipeline(db, router, cfg.Simulation, logger)
	actions := game.NewActions(engine, ledger, propagator, graph, logger)

	// Set up HTTP server
	server := setupHTTPServer(cfg, engine, ledger, propagator, ops, actions, hub, db, clientManager, qrManager, sessionManager, logger)

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	// Start the background loops after everything else is initialized
	sweeper.Start()
	defer sweeper.Stop()
	ops.Start()
	defer ops.Stop()

	// Wait for shutdown signal
	waitForShutdown(clientManager, logger)
}

func setupLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func setupHTTPServer(
	cfg config.Config,
	engine *district.Engine,
	ledger *reputation.Ledger,
	propagator *reputation.Propagator,
	ops *pipeline.Pipeline,
	actions *game.Actions,
	hub *broadcast.Hub,
	db *store.SQLStore,
	clientManager *whatsapp.ClientManager,
	qrManager *whatsapp.QRCodeManager,
	sessionManager *whatsapp.SessionManager,
	logger *zap.Logger,
) *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// District endpoints
	router.Post("/districts/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		districtID := chi.URLParam(r, "id")

		var req struct {
			EventType string            `json:"event_type"`
			Severity  int               `json:"severity"`
			ActorID   string            `json:"actor_id"`
			TargetID  string            `json:"target_id"`
			Metadata  map[string]string `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		event, err := engine.LogEvent(r.Context(), districtID, req.EventType, req.Severity, req.ActorID, req.TargetID, req.Metadata)
		if err != nil {
			writeDomainError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(event)
	})

	router.Get("/districts/{id}", func(w http.ResponseWriter, r *http.Request) {
		state, err := engine.State(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(state)
	})

	router.Get("/districts/{id}/modifiers", func(w http.ResponseWriter, r *http.Request) {
		modifiers, err := engine.Modifiers(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(modifiers)
	})

	router.Post("/districts/{id}/tension", func(w http.ResponseWriter, r *http.Request) {
		districtID := chi.URLParam(r, "id")

		var req struct {
			Delta int `json:"delta"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		if err := engine.AdjustTension(r.Context(), districtID, req.Delta); err != nil {
			writeDomainError(w, err, logger)
			return
		}

		state, err := engine.State(r.Context(), districtID)
		if err != nil {
			writeDomainError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(state)
	})

	// Reputation endpoints
	router.Post("/reputation", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ActorID        string                `json:"actor_id"`
			TargetType     string                `json:"target_type"`
			TargetID       string                `json:"target_id"`
			Delta          types.ReputationDelta `json:"delta"`
			Reason         string                `json:"reason"`
			RelatedActorID string                `json:"related_actor_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		record, err := ledger.Modify(r.Context(), req.ActorID, req.TargetType, req.TargetID, req.Delta, req.Reason, req.RelatedActorID)
		if err != nil {
			writeDomainError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(record)
	})

	router.Post("/reputation/propagate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ActorID    string                `json:"actor_id"`
			SourceType string                `json:"source_type"`
			SourceID   string                `json:"source_id"`
			Delta      types.ReputationDelta `json:"delta"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		spillovers, err := propagator.Propagate(r.Context(), req.ActorID, req.SourceType, req.SourceID, req.Delta, nil)
		if err != nil {
			writeDomainError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"spillovers": spillovers,
		})
	})

	router.Get("/reputation/{actorID}/{targetType}/{targetID}", func(w http.ResponseWriter, r *http.Request) {
		record, err := ledger.Get(r.Context(),
			chi.URLParam(r, "actorID"),
			chi.URLParam(r, "targetType"),
			chi.URLParam(r, "targetID"))
		if err != nil {
			writeDomainError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(record)
	})

	// Operation pipeline endpoints
	router.Post("/intents", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OperationID string          `json:"operation_id"`
			ActorID     string          `json:"actor_id"`
			Type        string          `json:"type"`
			Params      json.RawMessage `json:"params"`
			CrewID      string          `json:"crew_id"`
			DistrictID  string          `json:"district_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		intent := types.Intent{
			OperationID: req.OperationID,
			Type:        req.Type,
			Params:      req.Params,
		}

		work, err := actions.Work(req.ActorID, intent)
		if err != nil {
			writeDomainError(w, err, logger)
			return
		}

		result, err := ops.ProcessIntent(r.Context(), req.ActorID, intent, work, types.BroadcastContext{
			CrewID:     req.CrewID,
			DistrictID: req.DistrictID,
		})
		if err != nil {
			writeDomainError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	})

	router.Get("/players/{actorID}/suspicion", func(w http.ResponseWriter, r *http.Request) {
		report, err := ops.CheckSuspiciousActivity(r.Context(), chi.URLParam(r, "actorID"))
		if err != nil {
			writeDomainError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	})

	// Websocket subscription endpoint
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		actorID := r.URL.Query().Get("actor_id")
		if actorID == "" {
			http.Error(w, "actor_id is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("Failed to upgrade websocket", zap.Error(err))
			return
		}

		session := hub.Register(conn, actorID, r.URL.Query().Get("crew_id"), r.URL.Query().Get("district_id"))

		// Read loop only watches for the client going away
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					hub.Unregister(session)
					return
				}
			}
		}()
	})

	// Push target registration
	router.Post("/players/{actorID}/push-target", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PhoneNumber string `json:"phone_number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		if err := db.SetPushTarget(r.Context(), chi.URLParam(r, "actorID"), req.PhoneNumber); err != nil {
			writeDomainError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusOK)
	})

	// QR code generation endpoint
	router.Post("/qr", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PhoneNumber string `json:"phone_number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		sessionID := uuid.New().String()

		qrCode, err := qrManager.GenerateQRCode(sessionID, req.PhoneNumber)
		if err != nil {
			logger.Error("Failed to generate QR code",
				zap.String("phone_number", req.PhoneNumber),
				zap.Error(err))
			http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"qr_code": qrCode,
		})
	})

	// Session management endpoints
	router.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		sessions, err := sessionManager.ListSessions()
		if err != nil {
			logger.Error("Failed to list sessions", zap.Error(err))
			http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sessions)
	})

	router.Delete("/sessions/{phone_number}/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		phoneNumber := chi.URLParam(r, "phone_number")
		sessionID := chi.URLParam(r, "session_id")

		if client, exists := clientManager.GetClient(phoneNumber); exists {
			client.Disconnect()
		}

		if err := sessionManager.DeleteSession(phoneNumber, sessionID); err != nil {
			logger.Error("Failed to delete session",
				zap.String("phone_number", phoneNumber),
				zap.String("session_id", sessionID),
				zap.Error(err))
			http.Error(w, "Failed to delete session", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	})

	return &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
}

// writeDomainError maps domain error kinds onto HTTP status codes
func writeDomainError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *types.ValidationError
	var notFound *types.NotFoundError

	switch {
	case errors.As(err, &validation):
		http.Error(w, validation.Error(), http.StatusBadRequest)
	case errors.As(err, &notFound):
		http.Error(w, notFound.Error(), http.StatusNotFound)
	default:
		logger.Error("Request failed", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func waitForShutdown(clientManager *whatsapp.ClientManager, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	clientManager.DisconnectAll()
	logger.Info("Shutting down")
}
