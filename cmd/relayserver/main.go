package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pairline/relay/internal/config"
	"github.com/pairline/relay/internal/flagged"
	"github.com/pairline/relay/internal/messaging"
	"github.com/pairline/relay/internal/metrics"
	"github.com/pairline/relay/internal/pairing"
	"github.com/pairline/relay/internal/presence"
	"github.com/pairline/relay/internal/protocol"
	"github.com/pairline/relay/internal/ratelimit"
	"github.com/pairline/relay/internal/registry"
	"github.com/pairline/relay/internal/relay"
	"github.com/pairline/relay/internal/report"
	"github.com/pairline/relay/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	serverConfig := ws.ServerConfig{
		ListenAddr:     cfg.ListenAddr,
		WorkerPoolSize: cfg.WorkerPoolSize,
		MaxConnections: cfg.MaxConnections,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}

	serverName := cfg.ServerName
	if serverName == "" {
		serverName, _ = os.Hostname()
	}
	if serverName == "" {
		serverName = "relay-1"
	}

	// --- Redis (presence mirror + rate limiting) ---
	// The relay runs without Redis; presence and rate limits are skipped.
	var presenceStore *presence.Store
	var limiter *ratelimit.Limiter
	var flagStore *flagged.Store
	if cfg.RedisAddr != "" {
		presenceStore, err = presence.NewStore(cfg.RedisAddr, serverName)
		if err != nil {
			log.Printf("redis unavailable, presence and rate limits disabled: %v", err)
			presenceStore = nil
		} else {
			limiter = ratelimit.NewLimiter(presenceStore.Client())
			flagStore = flagged.NewStore(presenceStore.Client())
		}
	}

	// --- NATS (report event publishing) ---
	var natsClient *messaging.Client
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = "pairline-relay"
		natsClient, err = messaging.NewClient(natsConfig)
		if err != nil {
			log.Printf("nats unavailable, report events disabled: %v", err)
			natsClient = nil
		}
	}

	// --- Postgres (report persistence) ---
	// Without a DSN the report sink responds with status "unavailable".
	var reportStore *report.PostgresStore
	if cfg.PostgresDSN != "" {
		reportStore, err = report.OpenPostgres(cfg.PostgresDSN, cfg.MediaDir)
		if err != nil {
			log.Fatalf("failed to open postgres: %v", err)
		}
	} else {
		log.Printf("POSTGRES_DSN not set, reports disabled")
	}

	log.Printf("Pairline relay server starting")
	log.Printf("  listen_addr:     %s", cfg.ListenAddr)
	log.Printf("  metrics_addr:    %s", cfg.MetricsAddr)
	log.Printf("  worker_pool:     %d", cfg.WorkerPoolSize)
	log.Printf("  max_connections: %d", cfg.MaxConnections)
	log.Printf("  redis_addr:      %s", cfg.RedisAddr)
	log.Printf("  nats_url:        %s", cfg.NATSURL)
	log.Printf("  server_name:     %s", serverName)

	// --- Prometheus metrics endpoint ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	idents := registry.New()
	engine := pairing.NewEngine()

	// Declare server early so closures can capture it.
	var server *ws.Server
	dispatcher := ws.NewMessageDispatcher(nil)

	svc := relay.NewService(engine, &deferredSender{srv: &server})
	if presenceStore != nil {
		svc.StatusFunc = func(connID, status string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := presenceStore.SetStatus(ctx, connID, status); err != nil {
				log.Printf("presence status update failed conn=%s: %v", connID, err)
			}
		}
	}

	sink := report.NewSink(storageOrNil(reportStore))
	sink.LookupIdentity = idents.Lookup
	sink.ResolvePeer = func(room, reporterConn string) (string, bool) {
		r, ok := engine.Members(room)
		if !ok || !r.IsMember(reporterConn) {
			return "", false
		}
		peer, _ := r.Partner(reporterConn)
		return idents.Lookup(peer)
	}
	if natsClient != nil {
		sink.OnCreated = func(reportID, room, reporterLabel, reportedLabel string) {
			ev := messaging.ReportCreatedEvent{
				ReportID:      reportID,
				Room:          room,
				ReporterLabel: reporterLabel,
				ReportedLabel: reportedLabel,
				Ts:            time.Now().Unix(),
			}
			if err := natsClient.PublishReportCreated(ev); err != nil {
				log.Printf("failed to publish report event %s: %v", reportID, err)
			}
		}
	}

	// allow checks a rate limit rule for a connection. Missing Redis means
	// no limiting.
	allow := func(conn *ws.Connection, rule ratelimit.Rule) bool {
		if limiter == nil {
			return true
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ok, err := limiter.Allow(ctx, conn.ID, rule)
		if err != nil {
			return true
		}
		if !ok {
			dispatcher.SendError(conn, "rate_limited", "too many requests, slow down")
		}
		return ok
	}

	// -----------------------------------------------------------------------
	// find_partner — enter the waiting pool or get paired immediately
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeFindPartner, func(conn *ws.Connection, msg interface{}) {
		if _, ok := msg.(protocol.FindPartnerMsg); !ok {
			return
		}
		if !allow(conn, ratelimit.RuleSeek) {
			return
		}
		svc.Seek(conn.ID)
		log.Printf("find_partner from conn=%s", conn.ID)
	})

	// -----------------------------------------------------------------------
	// signal — relay an opaque signaling payload to the partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSignal, func(conn *ws.Connection, msg interface{}) {
		sigMsg, ok := msg.(protocol.SignalMsg)
		if !ok {
			return
		}
		svc.Signal(conn.ID, sigMsg.Data)
	})

	// -----------------------------------------------------------------------
	// chat — relay a text message to the partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeChat, func(conn *ws.Connection, msg interface{}) {
		chatMsg, ok := msg.(protocol.ChatMsg)
		if !ok {
			return
		}
		if !allow(conn, ratelimit.RuleChat) {
			return
		}
		svc.Chat(conn.ID, chatMsg.Message)
	})

	// -----------------------------------------------------------------------
	// skip — leave the current room, partner gets partner_left
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSkip, func(conn *ws.Connection, msg interface{}) {
		if _, ok := msg.(protocol.SkipMsg); !ok {
			return
		}
		svc.Skip(conn.ID)
		log.Printf("skip from conn=%s", conn.ID)
	})

	// -----------------------------------------------------------------------
	// report — persist a moderation report with screenshot evidence
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeReport, func(conn *ws.Connection, msg interface{}) {
		reportMsg, ok := msg.(protocol.ReportMsg)
		if !ok {
			return
		}
		if !allow(conn, ratelimit.RuleReport) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result := sink.Submit(ctx, conn.ID, report.Submission{
			Room:        reportMsg.Room,
			Reporter:    reportMsg.Reporter,
			Reported:    reportMsg.Reported,
			Timestamp:   reportMsg.Timestamp,
			LocalImage:  reportMsg.LocalImage,
			RemoteImage: reportMsg.RemoteImage,
		})

		resp, err := protocol.NewServerMessage(protocol.TypeReportResult, protocol.ReportResultMsg{
			Status:   result.Status,
			ReportID: result.ReportID,
			Message:  result.Message,
		})
		if err != nil {
			log.Printf("failed to build report_result for conn=%s: %v", conn.ID, err)
			return
		}
		if err := conn.WriteMessage(resp); err != nil {
			log.Printf("failed to send report_result to conn=%s: %v", conn.ID, err)
		}
		log.Printf("report from conn=%s room=%s status=%s", conn.ID, reportMsg.Room, result.Status)
	})

	server = ws.NewServer(serverConfig, presenceStore, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	server.SetOnConnect(func(connID, identity string) {
		idents.Attach(connID, identity)

		if flagStore != nil && identity != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if isFlagged, reason, err := flagStore.IsFlagged(ctx, identity); err == nil && isFlagged {
				log.Printf("flagged identity connected conn=%s identity=%q reason=%q", connID, identity, reason)
			}
		}
	})

	server.SetOnDisconnect(func(connID string) {
		svc.Disconnect(connID)
		idents.Forget(connID)
	})

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		if natsClient != nil {
			natsClient.Close()
		}
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if reportStore != nil {
			if err := reportStore.Close(); err != nil {
				log.Printf("report store close error: %v", err)
			}
		}
		if presenceStore != nil {
			if err := presenceStore.Close(); err != nil {
				log.Printf("presence store close error: %v", err)
			}
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// deferredSender forwards sends to a *ws.Server that is assigned after the
// relay service is constructed. The service and the server reference each
// other, so one side has to bind late.
type deferredSender struct {
	srv **ws.Server
}

func (d *deferredSender) SendMessage(connID string, data []byte) error {
	return (*d.srv).SendMessage(connID, data)
}

// storageOrNil converts a typed nil *PostgresStore into an untyped nil
// interface so the sink's nil check works.
func storageOrNil(s *report.PostgresStore) report.Storage {
	if s == nil {
		return nil
	}
	return s
}
