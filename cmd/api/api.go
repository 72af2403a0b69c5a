package api

import (
	"log"
	"net/http"
	"os"
	"strconv"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/scheduling"
	"github.com/ridgeline-services/crm-server/service/appointment"
	"github.com/ridgeline-services/crm-server/service/dashboard"
	"github.com/ridgeline-services/crm-server/service/events"
	"github.com/ridgeline-services/crm-server/service/lead"
	"github.com/ridgeline-services/crm-server/service/message"
	notification "github.com/ridgeline-services/crm-server/service/notifications"
	"github.com/ridgeline-services/crm-server/service/post"
	"github.com/ridgeline-services/crm-server/service/project"
	"github.com/ridgeline-services/crm-server/service/proposal"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	hub := events.NewHub()
	go hub.Run()

	notifier := notification.NewNotifier(s.db)

	schedulerCfg := schedulingConfigFromEnv()
	appointmentStore := appointment.NewStore(s.db)
	leadStore := appointment.NewLeadStore(s.db)
	scheduler := scheduling.NewScheduler(schedulerCfg, appointmentStore, leadStore, hub)

	leadHandler := lead.NewLeadHandler(s.db, hub, notifier)
	leadHandler.RegisterRoutes(subrouter)

	appointmentHandler := appointment.NewAppointmentHandler(s.db, scheduler)
	appointmentHandler.RegisterRoutes(subrouter)

	projectHandler := project.NewProjectHandler(s.db, hub)
	projectHandler.RegisterRoutes(subrouter)

	proposalHandler := proposal.NewProposalHandler(s.db, hub)
	proposalHandler.RegisterRoutes(subrouter)

	messageHandler := message.NewMessageHandler(s.db, hub)
	messageHandler.RegisterRoutes(subrouter)

	postHandler := post.NewPostHandler(s.db, hub)
	postHandler.RegisterRoutes(subrouter)

	dashboardHandler := dashboard.NewDashboardHandler(s.db)
	dashboardHandler.RegisterRoutes(subrouter)

	notificationHandler := notification.NewNotificationHandler(s.db, notifier)
	notificationHandler.RegisterRoutes(subrouter)

	eventsHandler := events.NewEventsHandler(hub)
	eventsHandler.RegisterRoutes(router)

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(allowedOrigins()),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Access-Code"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, gorillahandlers.LoggingHandler(os.Stdout, cors(router)))
}

func allowedOrigins() []string {
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		return []string{origins}
	}
	return []string{"*"}
}

func schedulingConfigFromEnv() scheduling.Config {
	cfg := scheduling.DefaultConfig()
	if v := envInt("SCHEDULING_GRID_MINUTES"); v > 0 {
		cfg.GridMinutes = v
	}
	if v := envInt("APPOINTMENT_DURATION_MINUTES"); v > 0 {
		cfg.DurationMinutes = v
	}
	if v := envInt("OFFICE_DAY_START_HOUR"); v > 0 {
		cfg.DayStartHour = v
	}
	if v := envInt("OFFICE_DAY_END_HOUR"); v > 0 {
		cfg.DayEndHour = v
	}
	return cfg
}

func envInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("ignoring invalid %s=%q", key, raw)
		return 0
	}
	return v
}
