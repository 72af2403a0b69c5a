package proposal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
	"github.com/ridgeline-services/crm-server/cmd/utils"
	"github.com/ridgeline-services/crm-server/service/events"
)

type ProposalHandler struct {
	db  *gorm.DB
	hub *events.Hub
}

func NewProposalHandler(db *gorm.DB, hub *events.Hub) *ProposalHandler {
	return &ProposalHandler{db: db, hub: hub}
}

func (h *ProposalHandler) RegisterRoutes(router *mux.Router) {
	proposalRouter := router.PathPrefix("/proposals").Subrouter()

	proposalRouter.HandleFunc("", utils.AuthMiddleware(h.CreateProposal)).Methods("POST")
	proposalRouter.HandleFunc("", utils.AuthMiddleware(h.GetProposals)).Methods("GET")
	proposalRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(h.GetProposal)).Methods("GET")
	proposalRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateProposal)).Methods("PUT")
	proposalRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteProposal)).Methods("DELETE")
	proposalRouter.HandleFunc("/{id:[0-9]+}/send", utils.AuthMiddleware(h.SendProposal)).Methods("PATCH")
	proposalRouter.HandleFunc("/{id:[0-9]+}/accept", utils.AuthMiddleware(h.AcceptProposal)).Methods("PATCH")
	proposalRouter.HandleFunc("/{id:[0-9]+}/decline", utils.AuthMiddleware(h.DeclineProposal)).Methods("PATCH")
}

// CreateProposal creates a draft proposal
func (h *ProposalHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	var proposal models.Proposal
	if err := json.NewDecoder(r.Body).Decode(&proposal); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if proposal.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	proposal.Status = models.ProposalStatusDraft
	proposal.SentAt = nil

	if err := h.db.Create(&proposal).Error; err != nil {
		http.Error(w, "Error creating proposal", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("INSERT", "proposals", proposal)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(proposal)
}

func (h *ProposalHandler) GetProposals(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Proposal{}).Preload("Lead").Preload("Project")

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if leadID := r.URL.Query().Get("lead_id"); leadID != "" {
		query = query.Where("lead_id = ?", leadID)
	}

	var total int64
	query.Count(&total)

	var proposals []models.Proposal
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&proposals).Error; err != nil {
		http.Error(w, "Error retrieving proposals", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"proposals":   proposals,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetProposal retrieves a specific proposal by ID
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	proposalID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid proposal ID", http.StatusBadRequest)
		return
	}

	var proposal models.Proposal
	if err := h.db.Preload("Lead").Preload("Project").First(&proposal, proposalID).Error; err != nil {
		http.Error(w, "Proposal not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(proposal)
}

// UpdateProposal edits a draft's content. Sent proposals are immutable
// apart from their status transitions.
func (h *ProposalHandler) UpdateProposal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	proposalID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid proposal ID", http.StatusBadRequest)
		return
	}

	var proposal models.Proposal
	if err := h.db.First(&proposal, proposalID).Error; err != nil {
		http.Error(w, "Proposal not found", http.StatusNotFound)
		return
	}
	if proposal.Status != models.ProposalStatusDraft {
		http.Error(w, "Only draft proposals can be edited", http.StatusConflict)
		return
	}

	var updated models.Proposal
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	proposal.Title = updated.Title
	proposal.Notes = updated.Notes
	proposal.Amount = updated.Amount
	proposal.LeadID = updated.LeadID
	proposal.ProjectID = updated.ProjectID

	if err := h.db.Save(&proposal).Error; err != nil {
		http.Error(w, "Error updating proposal", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("UPDATE", "proposals", proposal)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(proposal)
}

// SendProposal marks a draft as sent and moves the lead to estimate_sent
func (h *ProposalHandler) SendProposal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.ProposalStatusDraft, models.ProposalStatusSent, func(tx *gorm.DB, proposal *models.Proposal) error {
		now := time.Now().UTC()
		proposal.SentAt = &now
		if proposal.LeadID == nil {
			return nil
		}
		return tx.Model(&models.Lead{}).Where("id = ?", *proposal.LeadID).
			Update("status", models.LeadStatusEstimateSent).Error
	})
}

// AcceptProposal records a homeowner's acceptance and marks the lead won
func (h *ProposalHandler) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.ProposalStatusSent, models.ProposalStatusAccepted, func(tx *gorm.DB, proposal *models.Proposal) error {
		if proposal.LeadID == nil {
			return nil
		}
		return tx.Model(&models.Lead{}).Where("id = ?", *proposal.LeadID).
			Update("status", models.LeadStatusWon).Error
	})
}

// DeclineProposal records a rejection
func (h *ProposalHandler) DeclineProposal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.ProposalStatusSent, models.ProposalStatusDeclined, nil)
}

func (h *ProposalHandler) transition(w http.ResponseWriter, r *http.Request, from, to string, extra func(tx *gorm.DB, proposal *models.Proposal) error) {
	vars := mux.Vars(r)
	proposalID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid proposal ID", http.StatusBadRequest)
		return
	}

	var proposal models.Proposal
	if err := h.db.First(&proposal, proposalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Proposal not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Error loading proposal", http.StatusInternalServerError)
		return
	}

	if proposal.Status != from {
		http.Error(w, "Proposal is not in the "+from+" state", http.StatusConflict)
		return
	}

	tx := h.db.Begin()

	proposal.Status = to
	if extra != nil {
		if err := extra(tx, &proposal); err != nil {
			tx.Rollback()
			http.Error(w, "Error updating linked records", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Save(&proposal).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating proposal", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error completing transition", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("UPDATE", "proposals", proposal)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(proposal)
}

// DeleteProposal removes a draft proposal
func (h *ProposalHandler) DeleteProposal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	proposalID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid proposal ID", http.StatusBadRequest)
		return
	}

	var proposal models.Proposal
	if err := h.db.First(&proposal, proposalID).Error; err != nil {
		http.Error(w, "Proposal not found", http.StatusNotFound)
		return
	}
	if proposal.Status != models.ProposalStatusDraft {
		http.Error(w, "Only draft proposals can be deleted", http.StatusConflict)
		return
	}

	if err := h.db.Delete(&proposal).Error; err != nil {
		http.Error(w, "Error deleting proposal", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("DELETE", "proposals", map[string]interface{}{"id": proposalID})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Proposal deleted successfully",
	})
}
