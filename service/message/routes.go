package message

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	stream_chat "github.com/GetStream/stream-chat-go/v5"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
	"github.com/ridgeline-services/crm-server/cmd/utils"
	"github.com/ridgeline-services/crm-server/service/events"
)

type MessageHandler struct {
	db  *gorm.DB
	hub *events.Hub
}

func NewMessageHandler(db *gorm.DB, hub *events.Hub) *MessageHandler {
	return &MessageHandler{db: db, hub: hub}
}

func (h *MessageHandler) RegisterRoutes(router *mux.Router) {
	// Public endpoint hit by the marketing site contact form
	router.HandleFunc("/messages/contact", h.SubmitMessage).Methods("POST")

	router.HandleFunc("/messages", utils.AuthMiddleware(h.GetMessages)).Methods("GET")
	router.HandleFunc("/messages/{id:[0-9]+}", utils.AuthMiddleware(h.GetMessage)).Methods("GET")
	router.HandleFunc("/messages/{id:[0-9]+}/read", utils.AuthMiddleware(h.MarkRead)).Methods("PATCH")
	router.HandleFunc("/messages/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteMessage)).Methods("DELETE")
	router.HandleFunc("/messages/chat-token", utils.AuthMiddleware(h.GetChatToken)).Methods("POST")
}

// SubmitMessage stores an inbound message from the public contact form
func (h *MessageHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var message models.Message
	if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if message.Name == "" || message.Body == "" {
		http.Error(w, "Name and body are required", http.StatusBadRequest)
		return
	}
	message.Read = false
	message.ReadAt = nil

	if err := h.db.Create(&message).Error; err != nil {
		http.Error(w, "Error saving message", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("INSERT", "messages", message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Message received",
	})
}

func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Message{}).Preload("Lead")

	if unread := r.URL.Query().Get("unread"); unread == "true" {
		query = query.Where("read = ?", false)
	}

	var total int64
	query.Count(&total)

	var messages []models.Message
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&messages).Error; err != nil {
		http.Error(w, "Error retrieving messages", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages":    messages,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetMessage retrieves a specific message by ID
func (h *MessageHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	messageID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	var message models.Message
	if err := h.db.Preload("Lead").First(&message, messageID).Error; err != nil {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(message)
}

// MarkRead flags a message as handled
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	messageID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	result := h.db.Model(&models.Message{}).Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": now,
		})

	if result.Error != nil {
		http.Error(w, "Error updating message", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}

	var message models.Message
	h.db.First(&message, messageID)
	h.hub.Publish("UPDATE", "messages", message)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(message)
}

// DeleteMessage removes a message
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	messageID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	result := h.db.Delete(&models.Message{}, messageID)
	if result.Error != nil {
		http.Error(w, "Error deleting message", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}

	h.hub.Publish("DELETE", "messages", map[string]interface{}{"id": messageID})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Message deleted successfully",
	})
}

// GetChatToken issues a Stream Chat token so the dashboard messages page
// can open its live chat widget.
func (h *MessageHandler) GetChatToken(w http.ResponseWriter, r *http.Request) {
	subject, err := utils.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	apiKey := os.Getenv("STREAM_API_KEY")
	apiSecret := os.Getenv("STREAM_API_SECRET")
	streamClient, err := stream_chat.NewClient(apiKey, apiSecret)
	if err != nil {
		http.Error(w, "Error initializing Stream client", http.StatusInternalServerError)
		return
	}

	streamToken, err := streamClient.CreateToken(subject, time.Now().Add(time.Hour*24*365))
	if err != nil {
		http.Error(w, "Error generating Stream token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"stream_token": streamToken,
		"user_id":      subject,
	})
}
