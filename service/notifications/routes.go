package notification

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
	"github.com/ridgeline-services/crm-server/cmd/utils"
)

// NotificationHandler handles device registration and push history
type NotificationHandler struct {
	db       *gorm.DB
	notifier *Notifier
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(db *gorm.DB, notifier *Notifier) *NotificationHandler {
	return &NotificationHandler{
		db:       db,
		notifier: notifier,
	}
}

// RegisterRoutes registers all notification routes
func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", utils.AuthMiddleware(h.RegisterDevice)).Methods("POST")
	router.HandleFunc("/devices", utils.AuthMiddleware(h.GetDevices)).Methods("GET")
	router.HandleFunc("/devices/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteDevice)).Methods("DELETE")
	router.HandleFunc("/notifications", utils.AuthMiddleware(h.SendNotification)).Methods("POST")
	router.HandleFunc("/notifications/broadcast", utils.AuthMiddleware(h.BroadcastNotification)).Methods("POST")
	router.HandleFunc("/notifications/history", utils.AuthMiddleware(h.GetNotificationHistory)).Methods("GET")
}

// RegisterDevice registers a new device for push notifications
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var device models.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Validate required fields
	if device.OwnerName == "" || device.Token == "" {
		http.Error(w, "ownerName and token are required", http.StatusBadRequest)
		return
	}

	// Validate the Expo push token format
	if _, err := expo.NewExponentPushToken(device.Token); err != nil {
		http.Error(w, "Invalid Expo push token format", http.StatusBadRequest)
		return
	}

	// Check if this device already exists
	var existingDevice models.Device
	result := h.db.Where("token = ? AND owner_name = ?", device.Token, device.OwnerName).First(&existingDevice)

	if result.Error == nil {
		// Device already exists, update it
		existingDevice.UpdatedAt = time.Now()
		existingDevice.DeviceType = device.DeviceType
		existingDevice.DeviceName = device.DeviceName
		if err := h.db.Save(&existingDevice).Error; err != nil {
			http.Error(w, "Error updating device", http.StatusInternalServerError)
			return
		}
		device = existingDevice
	} else {
		// Device doesn't exist, create it
		if err := h.db.Create(&device).Error; err != nil {
			http.Error(w, "Error creating device", http.StatusInternalServerError)
			return
		}
	}

	// Send response
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Device registered successfully",
		"device":  device,
	})
}

// GetDevices lists all registered devices
func (h *NotificationHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	var devices []models.Device
	if err := h.db.Find(&devices).Error; err != nil {
		http.Error(w, "Error retrieving devices", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}

// DeleteDevice removes a registered device
func (h *NotificationHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	deviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid device ID", http.StatusBadRequest)
		return
	}

	result := h.db.Delete(&models.Device{}, deviceID)
	if result.Error != nil {
		http.Error(w, "Error deleting device", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Device deleted successfully",
	})
}

// SendNotification sends a push message to a single device by token
func (h *NotificationHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req models.NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" || req.Title == "" || req.Body == "" {
		http.Error(w, "Token, title and body are required", http.StatusBadRequest)
		return
	}
	if _, err := expo.NewExponentPushToken(req.Token); err != nil {
		http.Error(w, "Invalid Expo push token format", http.StatusBadRequest)
		return
	}

	if err := h.notifier.NotifyDevice(req.Token, req.Title, req.Body, req.Data); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Device not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Error sending notification", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Notification sent successfully",
	})
}

// BroadcastNotification sends a push message to every registered device
func (h *NotificationHandler) BroadcastNotification(w http.ResponseWriter, r *http.Request) {
	var req models.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Body == "" {
		http.Error(w, "Title and body are required", http.StatusBadRequest)
		return
	}

	go h.notifier.NotifyAll(req.Title, req.Body, req.Data)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Broadcast queued",
	})
}

// GetNotificationHistory lists past pushes, newest first
func (h *NotificationHandler) GetNotificationHistory(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.NotificationHistory{})

	var total int64
	query.Count(&total)

	var history []models.NotificationHistory
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("sent_at DESC").Find(&history).Error; err != nil {
		http.Error(w, "Error retrieving notification history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"history":     history,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}
