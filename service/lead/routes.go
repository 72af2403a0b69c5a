package lead

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
	"github.com/ridgeline-services/crm-server/cmd/utils"
	"github.com/ridgeline-services/crm-server/service/events"
	notification "github.com/ridgeline-services/crm-server/service/notifications"
)

type LeadHandler struct {
	db       *gorm.DB
	hub      *events.Hub
	notifier *notification.Notifier
}

func NewLeadHandler(db *gorm.DB, hub *events.Hub, notifier *notification.Notifier) *LeadHandler {
	return &LeadHandler{db: db, hub: hub, notifier: notifier}
}

func (h *LeadHandler) RegisterRoutes(router *mux.Router) {
	// Public endpoint hit by the marketing site quote form
	router.HandleFunc("/leads/capture", h.CaptureLead).Methods("POST")

	router.HandleFunc("/leads", utils.AuthMiddleware(h.GetLeads)).Methods("GET")
	router.HandleFunc("/leads", utils.AuthMiddleware(h.CreateLead)).Methods("POST")
	router.HandleFunc("/leads/{id:[0-9]+}", utils.AuthMiddleware(h.GetLead)).Methods("GET")
	router.HandleFunc("/leads/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateLead)).Methods("PUT")
	router.HandleFunc("/leads/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteLead)).Methods("DELETE")
	router.HandleFunc("/leads/{id:[0-9]+}/status", utils.AuthMiddleware(h.UpdateLeadStatus)).Methods("PATCH")
}

// CaptureLead takes a quote request from the public site, stores it and
// alerts the office by email and push.
func (h *LeadHandler) CaptureLead(w http.ResponseWriter, r *http.Request) {
	var captureRequest struct {
		FullName    string `json:"full_name"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		Address     string `json:"address"`
		ServiceType string `json:"service_type"`
		Notes       string `json:"notes"`
		Source      string `json:"source"`
	}

	if err := json.NewDecoder(r.Body).Decode(&captureRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if captureRequest.FullName == "" || (captureRequest.Email == "" && captureRequest.Phone == "") {
		http.Error(w, "Name and an email or phone number are required", http.StatusBadRequest)
		return
	}

	source := captureRequest.Source
	if source == "" {
		source = "website"
	}

	lead := models.Lead{
		Reference:   uuid.New().String(),
		FullName:    captureRequest.FullName,
		Email:       captureRequest.Email,
		Phone:       captureRequest.Phone,
		Address:     captureRequest.Address,
		ServiceType: captureRequest.ServiceType,
		Notes:       captureRequest.Notes,
		Source:      source,
		Status:      models.LeadStatusNew,
	}

	if err := h.db.Create(&lead).Error; err != nil {
		http.Error(w, "Error saving lead", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("INSERT", "leads", lead)

	// Alert the office without holding up the response
	go func() {
		if err := sendNewLeadEmail(lead); err != nil {
			log.Printf("Error sending new lead email: %v", err)
		}
	}()
	go h.notifier.NotifyAll(
		"New lead: "+lead.FullName,
		leadPushBody(lead),
		map[string]interface{}{"lead_id": lead.ID},
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "Thanks! We'll be in touch shortly.",
		"reference": lead.Reference,
	})
}

func leadPushBody(lead models.Lead) string {
	if lead.ServiceType != "" {
		return fmt.Sprintf("%s inquiry from %s", lead.ServiceType, lead.Source)
	}
	return "New inquiry from " + lead.Source
}

// sendNewLeadEmail notifies the office inbox about a captured lead
func sendNewLeadEmail(lead models.Lead) error {
	// Load SMTP configuration from environment variables
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPort := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	officeEmail := os.Getenv("OFFICE_EMAIL")
	if officeEmail == "" {
		officeEmail = smtpUser
	}

	m := gomail.NewMessage()
	m.SetHeader("From", smtpUser)
	m.SetHeader("To", officeEmail)
	m.SetHeader("Subject", "New lead: "+lead.FullName)
	m.SetBody("text/plain", fmt.Sprintf(
		"Name: %s\nEmail: %s\nPhone: %s\nAddress: %s\nService: %s\nSource: %s\n\n%s",
		lead.FullName, lead.Email, lead.Phone, lead.Address, lead.ServiceType, lead.Source, lead.Notes,
	))

	port, err := strconv.Atoi(smtpPort)
	if err != nil {
		return fmt.Errorf("invalid SMTP port: %v", err)
	}
	d := gomail.NewDialer(smtpHost, port, smtpUser, smtpPass)

	return d.DialAndSend(m)
}

func (h *LeadHandler) GetLeads(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Lead{})

	// Apply filters
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if source := r.URL.Query().Get("source"); source != "" {
		query = query.Where("source = ?", source)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("full_name ILIKE ? OR email ILIKE ? OR phone ILIKE ?", like, like, like)
	}

	var total int64
	query.Count(&total)

	var leads []models.Lead
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&leads).Error; err != nil {
		http.Error(w, "Error retrieving leads", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"leads":       leads,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetLead retrieves a single lead with its appointments
func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	leadID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid lead ID", http.StatusBadRequest)
		return
	}

	var lead models.Lead
	if err := h.db.Preload("Appointments").First(&lead, leadID).Error; err != nil {
		http.Error(w, "Lead not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lead)
}

// CreateLead adds a lead from the dashboard (phone-in, referral)
func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var lead models.Lead
	if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if lead.FullName == "" {
		http.Error(w, "full_name is required", http.StatusBadRequest)
		return
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	if lead.Reference == "" {
		lead.Reference = uuid.New().String()
	}
	// The projection fields belong to the scheduler
	lead.AppointmentDate = nil
	lead.BookedAt = nil

	if err := h.db.Create(&lead).Error; err != nil {
		http.Error(w, "Error creating lead", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("INSERT", "leads", lead)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(lead)
}

// UpdateLead edits contact and note fields. appointment_date, booked_at
// and the booked/cancelled statuses are owned by the scheduler and are
// not writable here.
func (h *LeadHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	leadID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid lead ID", http.StatusBadRequest)
		return
	}

	var updateRequest struct {
		FullName    *string `json:"full_name"`
		Email       *string `json:"email"`
		Phone       *string `json:"phone"`
		Address     *string `json:"address"`
		ServiceType *string `json:"service_type"`
		Source      *string `json:"source"`
		Notes       *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{}
	if updateRequest.FullName != nil {
		updates["full_name"] = *updateRequest.FullName
	}
	if updateRequest.Email != nil {
		updates["email"] = *updateRequest.Email
	}
	if updateRequest.Phone != nil {
		updates["phone"] = *updateRequest.Phone
	}
	if updateRequest.Address != nil {
		updates["address"] = *updateRequest.Address
	}
	if updateRequest.ServiceType != nil {
		updates["service_type"] = *updateRequest.ServiceType
	}
	if updateRequest.Source != nil {
		updates["source"] = *updateRequest.Source
	}
	if updateRequest.Notes != nil {
		updates["notes"] = *updateRequest.Notes
	}
	if len(updates) == 0 {
		http.Error(w, "No fields to update", http.StatusBadRequest)
		return
	}

	result := h.db.Model(&models.Lead{}).Where("id = ?", leadID).Updates(updates)
	if result.Error != nil {
		http.Error(w, "Error updating lead", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Lead not found", http.StatusNotFound)
		return
	}

	var lead models.Lead
	h.db.First(&lead, leadID)
	h.hub.Publish("UPDATE", "leads", lead)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lead)
}

// UpdateLeadStatus moves a lead through the funnel by hand
func (h *LeadHandler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	leadID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid lead ID", http.StatusBadRequest)
		return
	}

	var statusRequest struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&statusRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !validLeadStatus(statusRequest.Status) {
		http.Error(w, "Unknown lead status", http.StatusBadRequest)
		return
	}

	var lead models.Lead
	if err := h.db.First(&lead, leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Lead not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Error loading lead", http.StatusInternalServerError)
		return
	}

	lead.Status = statusRequest.Status
	if err := h.db.Model(&lead).Update("status", lead.Status).Error; err != nil {
		http.Error(w, "Error updating lead status", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("UPDATE", "leads", lead)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lead)
}

// DeleteLead removes a lead. Its appointments are detached, not
// cancelled: a calendar entry for a deleted lead is still an entry the
// office may want to keep or cancel deliberately.
func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	leadID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid lead ID", http.StatusBadRequest)
		return
	}

	var lead models.Lead
	if err := h.db.First(&lead, leadID).Error; err != nil {
		http.Error(w, "Lead not found", http.StatusNotFound)
		return
	}

	tx := h.db.Begin()

	if err := tx.Model(&models.Appointment{}).Where("lead_id = ?", leadID).
		Update("lead_id", nil).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error detaching appointments", http.StatusInternalServerError)
		return
	}

	if err := tx.Delete(&lead).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting lead", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing deletion", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("DELETE", "leads", map[string]interface{}{"id": lead.ID})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Lead deleted successfully",
	})
}

func validLeadStatus(status string) bool {
	switch status {
	case models.LeadStatusNew, models.LeadStatusContacted, models.LeadStatusNeedsFollowUp,
		models.LeadStatusBooked, models.LeadStatusEstimateSent, models.LeadStatusWon,
		models.LeadStatusLost, models.LeadStatusAppointmentCancelled:
		return true
	}
	return false
}
