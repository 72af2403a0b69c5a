package appointment

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
	"github.com/ridgeline-services/crm-server/cmd/utils"
	"github.com/ridgeline-services/crm-server/scheduling"
)

type AppointmentHandler struct {
	db        *gorm.DB
	scheduler *scheduling.Scheduler
}

func NewAppointmentHandler(db *gorm.DB, scheduler *scheduling.Scheduler) *AppointmentHandler {
	return &AppointmentHandler{db: db, scheduler: scheduler}
}

func (h *AppointmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments/book", utils.AuthMiddleware(h.BookAppointment)).Methods("POST")
	router.HandleFunc("/appointments/slots", utils.AuthMiddleware(h.GetFreeSlots)).Methods("GET")
	router.HandleFunc("/appointments", utils.AuthMiddleware(h.GetAllAppointments)).Methods("GET")
	router.HandleFunc("/appointments/{id:[0-9]+}", utils.AuthMiddleware(h.GetAppointment)).Methods("GET")
	router.HandleFunc("/appointments/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateAppointment)).Methods("PUT")
	router.HandleFunc("/appointments/{id:[0-9]+}/reschedule", utils.AuthMiddleware(h.RescheduleAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/{id:[0-9]+}/cancel", utils.AuthMiddleware(h.CancelAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/{id:[0-9]+}/complete", utils.AuthMiddleware(h.CompleteAppointment)).Methods("PATCH")
	router.HandleFunc("/appointments/lead/{leadId:[0-9]+}", utils.AuthMiddleware(h.GetLeadAppointments)).Methods("GET")
}

// BookAppointment creates an appointment, optionally tied to a lead. When
// the lead already has a scheduled appointment it is moved instead.
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var bookingRequest struct {
		LeadID      *uint  `json:"lead_id"`
		StartTime   string `json:"start_time"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Location    string `json:"location"`
	}

	if err := json.NewDecoder(r.Body).Decode(&bookingRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, bookingRequest.StartTime)
	if err != nil {
		http.Error(w, "Invalid start_time, expected RFC3339", http.StatusBadRequest)
		return
	}

	result, err := h.scheduler.Schedule(r.Context(), scheduling.ScheduleRequest{
		LeadID:      bookingRequest.LeadID,
		Start:       start,
		Title:       bookingRequest.Title,
		Description: bookingRequest.Description,
		Location:    bookingRequest.Location,
	})
	if err != nil {
		h.writeScheduleError(w, result, err)
		return
	}

	status := http.StatusCreated
	if result.Rescheduled {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointment": result.Appointment,
		"lead":        result.Lead,
		"rescheduled": result.Rescheduled,
	})
}

// RescheduleAppointment moves an existing appointment to a new slot
func (h *AppointmentHandler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var rescheduleRequest struct {
		StartTime string `json:"start_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&rescheduleRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, rescheduleRequest.StartTime)
	if err != nil {
		http.Error(w, "Invalid start_time, expected RFC3339", http.StatusBadRequest)
		return
	}

	result, err := h.scheduler.Schedule(r.Context(), scheduling.ScheduleRequest{
		AppointmentID: uint(appointmentID),
		Start:         start,
	})
	if err != nil {
		h.writeScheduleError(w, result, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointment": result.Appointment,
		"lead":        result.Lead,
		"rescheduled": result.Rescheduled,
	})
}

// CancelAppointment handles appointment cancellation
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	appt, err := h.scheduler.Cancel(r.Context(), uint(appointmentID))
	if err != nil {
		var syncErr *scheduling.ProjectionSyncError
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			http.Error(w, "Appointment not found", http.StatusNotFound)
		case errors.Is(err, scheduling.ErrNotReschedulable):
			http.Error(w, "Appointment cannot be cancelled", http.StatusConflict)
		case errors.As(err, &syncErr):
			// Cancellation took; the lead projection lagged behind.
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"appointment": appt,
				"warning":     "appointment cancelled, but lead record may be stale",
			})
		default:
			http.Error(w, "Error cancelling appointment", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointment": appt,
		"message":     "Appointment cancelled successfully",
	})
}

// CompleteAppointment marks a finished visit
func (h *AppointmentHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	appt, err := h.scheduler.Complete(r.Context(), uint(appointmentID))
	if err != nil {
		var syncErr *scheduling.ProjectionSyncError
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			http.Error(w, "Appointment not found", http.StatusNotFound)
		case errors.Is(err, scheduling.ErrNotReschedulable):
			http.Error(w, "Appointment cannot be completed", http.StatusConflict)
		case errors.As(err, &syncErr):
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"appointment": appt,
				"warning":     "appointment completed, but lead record may be stale",
			})
		default:
			http.Error(w, "Error completing appointment", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointment": appt,
		"message":     "Appointment completed",
	})
}

// GetFreeSlots lists the open slots for a day
func (h *AppointmentHandler) GetFreeSlots(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		http.Error(w, "date query parameter is required", http.StatusBadRequest)
		return
	}
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	slots, err := h.scheduler.FreeSlots(r.Context(), day, time.Now().UTC())
	if err != nil {
		http.Error(w, "Error computing free slots", http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []scheduling.Interval{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"date":  dateStr,
		"slots": slots,
	})
}

func (h *AppointmentHandler) GetAllAppointments(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Appointment{}).Preload("Lead")

	// Apply filters
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if from := r.URL.Query().Get("from"); from != "" {
		query = query.Where("start_time >= ?", from)
	}
	if to := r.URL.Query().Get("to"); to != "" {
		query = query.Where("start_time < ?", to)
	}

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("start_time ASC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointments": appointments,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"total_pages":  (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetAppointment retrieves a specific appointment by ID
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var appointment models.Appointment
	if err := h.db.Preload("Lead").First(&appointment, appointmentID).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointment)
}

// UpdateAppointment edits descriptive metadata only. Times and status move
// through the scheduler endpoints.
func (h *AppointmentHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var updateRequest struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Location    *string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{}
	if updateRequest.Title != nil {
		updates["title"] = *updateRequest.Title
	}
	if updateRequest.Description != nil {
		updates["description"] = *updateRequest.Description
	}
	if updateRequest.Location != nil {
		updates["location"] = *updateRequest.Location
	}
	if len(updates) == 0 {
		http.Error(w, "No fields to update", http.StatusBadRequest)
		return
	}

	result := h.db.Model(&models.Appointment{}).Where("id = ?", appointmentID).Updates(updates)
	if result.Error != nil {
		http.Error(w, "Error updating appointment", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	var appointment models.Appointment
	h.db.Preload("Lead").First(&appointment, appointmentID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointment)
}

// GetLeadAppointments retrieves all appointments for a specific lead
func (h *AppointmentHandler) GetLeadAppointments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	leadID, err := strconv.ParseUint(vars["leadId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid lead ID", http.StatusBadRequest)
		return
	}

	var appointments []models.Appointment
	if err := h.db.Where("lead_id = ?", leadID).
		Order("start_time DESC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointments)
}

func (h *AppointmentHandler) writeScheduleError(w http.ResponseWriter, result *scheduling.ScheduleResult, err error) {
	var writeErr *scheduling.StoreWriteError
	var syncErr *scheduling.ProjectionSyncError
	switch {
	case errors.Is(err, scheduling.ErrSlotConflict):
		http.Error(w, "Time slot already booked", http.StatusConflict)
	case errors.Is(err, scheduling.ErrNotReschedulable):
		http.Error(w, "Appointment is not reschedulable", http.StatusConflict)
	case errors.Is(err, gorm.ErrRecordNotFound):
		http.Error(w, "Record not found", http.StatusNotFound)
	case errors.As(err, &syncErr):
		// Degraded success: the appointment is booked, the lead projection
		// is stale. Report success with a warning instead of failing.
		log.Printf("lead projection sync failed: %v", syncErr)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"appointment": result.Appointment,
			"warning":     "appointment booked, but lead record may be stale, refresh",
		})
	case errors.As(err, &writeErr):
		log.Printf("appointment write failed: %v", writeErr)
		http.Error(w, "Error saving appointment", http.StatusInternalServerError)
	default:
		http.Error(w, "Error scheduling appointment", http.StatusInternalServerError)
	}
}
