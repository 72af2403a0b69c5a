package project

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
	"github.com/ridgeline-services/crm-server/cmd/utils"
	"github.com/ridgeline-services/crm-server/service/events"
)

type ProjectHandler struct {
	db  *gorm.DB
	hub *events.Hub
}

func NewProjectHandler(db *gorm.DB, hub *events.Hub) *ProjectHandler {
	return &ProjectHandler{db: db, hub: hub}
}

func (h *ProjectHandler) RegisterRoutes(router *mux.Router) {
	projectRouter := router.PathPrefix("/projects").Subrouter()

	projectRouter.HandleFunc("", utils.AuthMiddleware(h.CreateProject)).Methods("POST")
	projectRouter.HandleFunc("", utils.AuthMiddleware(h.GetProjects)).Methods("GET")
	projectRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(h.GetProject)).Methods("GET")
	projectRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateProject)).Methods("PUT")
	projectRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteProject)).Methods("DELETE")
	projectRouter.HandleFunc("/lead/{leadId:[0-9]+}", utils.AuthMiddleware(h.GetLeadProjects)).Methods("GET")
}

// CreateProject creates a new project
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var project models.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if project.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if project.Status == "" {
		project.Status = models.ProjectStatusPlanned
	}

	if err := h.db.Create(&project).Error; err != nil {
		http.Error(w, "Error creating project", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("INSERT", "projects", project)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(project)
}

func (h *ProjectHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Project{}).Preload("Lead")

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var projects []models.Project
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&projects).Error; err != nil {
		http.Error(w, "Error retrieving projects", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"projects":    projects,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetProject retrieves a specific project by ID
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}

	var project models.Project
	if err := h.db.Preload("Lead").First(&project, projectID).Error; err != nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(project)
}

// UpdateProject updates a project's fields
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}

	var project models.Project
	if err := h.db.First(&project, projectID).Error; err != nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}

	var updated models.Project
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	project.Name = updated.Name
	project.Description = updated.Description
	project.Status = updated.Status
	project.Value = updated.Value
	project.StartDate = updated.StartDate
	project.EndDate = updated.EndDate
	project.PhotoURLs = updated.PhotoURLs
	project.LeadID = updated.LeadID

	if err := h.db.Save(&project).Error; err != nil {
		http.Error(w, "Error updating project", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("UPDATE", "projects", project)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(project)
}

// DeleteProject removes a project
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid project ID", http.StatusBadRequest)
		return
	}

	result := h.db.Delete(&models.Project{}, projectID)
	if result.Error != nil {
		http.Error(w, "Error deleting project", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}

	h.hub.Publish("DELETE", "projects", map[string]interface{}{"id": projectID})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Project deleted successfully",
	})
}

// GetLeadProjects retrieves all projects for a specific lead
func (h *ProjectHandler) GetLeadProjects(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	leadID, err := strconv.ParseUint(vars["leadId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid lead ID", http.StatusBadRequest)
		return
	}

	var projects []models.Project
	if err := h.db.Where("lead_id = ?", leadID).
		Order("created_at DESC").Find(&projects).Error; err != nil {
		http.Error(w, "Error retrieving projects", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(projects)
}
