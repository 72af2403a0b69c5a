package post

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
	"github.com/ridgeline-services/crm-server/cmd/utils"
	"github.com/ridgeline-services/crm-server/service/events"
)

type PostHandler struct {
	db  *gorm.DB
	hub *events.Hub
}

func NewPostHandler(db *gorm.DB, hub *events.Hub) *PostHandler {
	return &PostHandler{db: db, hub: hub}
}

func (h *PostHandler) RegisterRoutes(router *mux.Router) {
	// Public blog endpoints for the marketing site
	router.HandleFunc("/posts/published", h.GetPublishedPosts).Methods("GET")
	router.HandleFunc("/posts/slug/{slug}", h.GetPostBySlug).Methods("GET")

	router.HandleFunc("/posts", utils.AuthMiddleware(h.CreatePost)).Methods("POST")
	router.HandleFunc("/posts", utils.AuthMiddleware(h.GetPosts)).Methods("GET")
	router.HandleFunc("/posts/{id:[0-9]+}", utils.AuthMiddleware(h.GetPost)).Methods("GET")
	router.HandleFunc("/posts/{id:[0-9]+}", utils.AuthMiddleware(h.UpdatePost)).Methods("PUT")
	router.HandleFunc("/posts/{id:[0-9]+}", utils.AuthMiddleware(h.DeletePost)).Methods("DELETE")
	router.HandleFunc("/posts/{id:[0-9]+}/publish", utils.AuthMiddleware(h.PublishPost)).Methods("PATCH")
}

var slugSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := slugSanitizer.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// GetPublishedPosts lists live posts for the public blog
func (h *PostHandler) GetPublishedPosts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 20

	query := h.db.Model(&models.Post{}).Where("published = ?", true)

	if tag := r.URL.Query().Get("tag"); tag != "" {
		query = query.Where("? = ANY(tags)", tag)
	}

	var total int64
	query.Count(&total)

	var posts []models.Post
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("published_at DESC").Find(&posts).Error; err != nil {
		http.Error(w, "Error retrieving posts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"posts":       posts,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetPostBySlug serves a single published post to the public site
func (h *PostHandler) GetPostBySlug(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slug := vars["slug"]

	var post models.Post
	if err := h.db.Where("slug = ? AND published = ?", slug, true).First(&post).Error; err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(post)
}

// CreatePost creates a draft blog post
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var post models.Post
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if post.Title == "" || post.Body == "" {
		http.Error(w, "Title and body are required", http.StatusBadRequest)
		return
	}
	if post.Slug == "" {
		post.Slug = slugify(post.Title)
	}
	post.Published = false
	post.PublishedAt = nil

	if err := h.db.Create(&post).Error; err != nil {
		http.Error(w, "Error creating post", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("INSERT", "posts", post)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(post)
}

func (h *PostHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Post{})

	var total int64
	query.Count(&total)

	var posts []models.Post
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at DESC").Find(&posts).Error; err != nil {
		http.Error(w, "Error retrieving posts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"posts":       posts,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetPost retrieves a post by ID, draft or published
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	var post models.Post
	if err := h.db.First(&post, postID).Error; err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(post)
}

// UpdatePost edits a post's content
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	var post models.Post
	if err := h.db.First(&post, postID).Error; err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	var updated models.Post
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	post.Title = updated.Title
	post.Excerpt = updated.Excerpt
	post.Body = updated.Body
	post.CoverImageURL = updated.CoverImageURL
	post.Tags = updated.Tags
	if updated.Slug != "" {
		post.Slug = updated.Slug
	}

	if err := h.db.Save(&post).Error; err != nil {
		http.Error(w, "Error updating post", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("UPDATE", "posts", post)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(post)
}

// PublishPost flips a draft live
func (h *PostHandler) PublishPost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	var post models.Post
	if err := h.db.First(&post, postID).Error; err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	now := time.Now().UTC()
	post.Published = true
	if post.PublishedAt == nil {
		post.PublishedAt = &now
	}

	if err := h.db.Save(&post).Error; err != nil {
		http.Error(w, "Error publishing post", http.StatusInternalServerError)
		return
	}

	h.hub.Publish("UPDATE", "posts", post)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(post)
}

// DeletePost removes a post
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	result := h.db.Delete(&models.Post{}, postID)
	if result.Error != nil {
		http.Error(w, "Error deleting post", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	h.hub.Publish("DELETE", "posts", map[string]interface{}{"id": postID})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Post deleted successfully",
	})
}
