package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
	"github.com/ridgeline-services/crm-server/cmd/utils"
)

type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboard/stats", utils.AuthMiddleware(h.GetStats)).Methods("GET")
	router.HandleFunc("/dashboard/upcoming", utils.AuthMiddleware(h.GetUpcomingAppointments)).Methods("GET")
}

type leadStatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// GetStats aggregates the numbers the back-office landing page shows
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	var statusCounts []leadStatusCount
	if err := h.db.Model(&models.Lead{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		http.Error(w, "Error retrieving lead stats", http.StatusInternalServerError)
		return
	}

	var totalLeads int64
	h.db.Model(&models.Lead{}).Count(&totalLeads)

	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	var newLeadsThisWeek int64
	h.db.Model(&models.Lead{}).Where("created_at >= ?", weekAgo).Count(&newLeadsThisWeek)

	var unreadMessages int64
	h.db.Model(&models.Message{}).Where("read = ?", false).Count(&unreadMessages)

	now := time.Now().UTC()
	var upcomingAppointments int64
	h.db.Model(&models.Appointment{}).
		Where("status = ? AND start_time >= ?", models.AppointmentStatusScheduled, now).
		Count(&upcomingAppointments)

	var openProposalValue float64
	h.db.Model(&models.Proposal{}).
		Where("status = ?", models.ProposalStatusSent).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&openProposalValue)

	var activeProjects int64
	h.db.Model(&models.Project{}).
		Where("status = ?", models.ProjectStatusInProgress).
		Count(&activeProjects)

	var wonValue float64
	h.db.Model(&models.Proposal{}).
		Where("status = ?", models.ProposalStatusAccepted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&wonValue)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_leads":           totalLeads,
		"new_leads_this_week":   newLeadsThisWeek,
		"leads_by_status":       statusCounts,
		"unread_messages":       unreadMessages,
		"upcoming_appointments": upcomingAppointments,
		"open_proposal_value":   openProposalValue,
		"accepted_value":        wonValue,
		"active_projects":       activeProjects,
	})
}

// GetUpcomingAppointments lists the next scheduled appointments with their leads
func (h *DashboardHandler) GetUpcomingAppointments(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	var appointments []models.Appointment
	if err := h.db.Preload("Lead").
		Where("status = ? AND start_time >= ?", models.AppointmentStatusScheduled, now).
		Order("start_time ASC").
		Limit(10).
		Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointments": appointments,
	})
}
