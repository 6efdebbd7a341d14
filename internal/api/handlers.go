package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/reelhaus/listingreel/internal/billing"
	"github.com/reelhaus/listingreel/internal/db"
	"github.com/reelhaus/listingreel/internal/models"
	"github.com/reelhaus/listingreel/internal/queue"
	"github.com/reelhaus/listingreel/internal/services"
	"github.com/reelhaus/listingreel/internal/storage"
)

// maxUploadBytes caps a single photo upload. Listing photos are phone or MLS
// shots; anything beyond this is not an image we want.
const maxUploadBytes = 15 << 20

type Handler struct {
	db      *db.DB
	queue   *queue.Queue
	storage *storage.Storage
	scraper *services.ScraperService // optional: nil disables /listings/scrape
	voices  *services.VoiceTable
	tracks  *services.TrackTable
	billing *billing.Client // optional: nil disables checkout and webhooks
}

func NewHandler(
	database *db.DB,
	q *queue.Queue,
	stor *storage.Storage,
	scraper *services.ScraperService,
	voices *services.VoiceTable,
	tracks *services.TrackTable,
	billingClient *billing.Client,
) *Handler {
	return &Handler{
		db:      database,
		queue:   q,
		storage: stor,
		scraper: scraper,
		voices:  voices,
		tracks:  tracks,
		billing: billingClient,
	}
}

// CreateVideo handles POST /v1/videos
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Defaults
	if req.Flow == "" {
		req.Flow = models.FlowMotion
	}
	if req.Orientation == "" {
		req.Orientation = models.OrientationPortrait
	}

	switch req.Flow {
	case models.FlowMotion, models.FlowAI:
	default:
		respondError(w, http.StatusBadRequest, "Invalid flow. Allowed: motion, ai")
		return
	}
	switch req.Orientation {
	case models.OrientationPortrait, models.OrientationLandscape:
	default:
		respondError(w, http.StatusBadRequest, "Invalid orientation. Allowed: portrait, landscape")
		return
	}

	if err := models.ValidateImageCount(req.Flow, len(req.Images)); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i := range req.Images {
		img := &req.Images[i]
		if img.URL == "" {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Image %d is missing a URL", i))
			return
		}
		if img.CameraAngle == "" {
			img.CameraAngle = models.AngleAuto
		}
		if !models.ValidCameraAngle(img.CameraAngle) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Image %d has an unknown camera angle %q", i, img.CameraAngle))
			return
		}
		if img.DurationSec != 0 && (img.DurationSec < models.MinClipDurationSec || img.DurationSec > models.MaxClipDurationSec) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Image %d duration must be between %.0f and %.0f seconds", i, models.MinClipDurationSec, models.MaxClipDurationSec))
			return
		}
	}

	if req.Property.Address == "" {
		respondError(w, http.StatusBadRequest, "Property address is required")
		return
	}
	if req.Property.Agent.Name == "" {
		respondError(w, http.StatusBadRequest, "Agent name is required")
		return
	}
	if req.Property.Agent.Phone == "" {
		respondError(w, http.StatusBadRequest, "Agent phone is required")
		return
	}

	job := &models.VideoJob{
		ID:        uuid.New(),
		ListingID: req.ListingID,
		Flow:      req.Flow,
		Status:    models.VideoJobStatusProcessing,
		Progress:  0,
		Version:   1,
	}

	if err := h.db.CreateVideoJob(r.Context(), job); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create video job")
		return
	}

	if err := h.queue.EnqueueGenerateVideo(r.Context(), job.ID, req.Flow, req.Orientation, req.Images, req.Property); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateVideoResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// ListVideos handles GET /v1/videos
// Query params:
//   - status: filter by job status (processing, stitching, completed, failed)
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" {
		switch models.VideoJobStatus(statusFilter) {
		case models.VideoJobStatusProcessing, models.VideoJobStatusStitching,
			models.VideoJobStatusCompleted, models.VideoJobStatusFailed:
			// valid
		default:
			respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: processing, stitching, completed, failed")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.db.CountVideoJobs(r.Context(), statusFilter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count video jobs")
		return
	}

	jobs, err := h.db.ListVideoJobs(r.Context(), statusFilter, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list video jobs")
		return
	}
	if jobs == nil {
		jobs = []models.VideoJob{}
	}

	respondJSON(w, http.StatusOK, models.ListVideosResponse{
		Jobs:   jobs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetVideo handles GET /v1/videos/{id}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid video job ID")
		return
	}

	job, err := h.db.GetVideoJob(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Video job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// UploadImage handles POST /v1/uploads — multipart photo upload that returns
// the public URL to reference in a subsequent video request.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form or file too large (max 15 MB)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		respondError(w, http.StatusBadRequest, "Unsupported file type. Allowed: image/jpeg, image/png, image/webp")
		return
	}

	name := filepath.Base(header.Filename)
	if name == "." || name == "/" {
		name = "photo.jpg"
	}
	path := storage.GenerateObjectPath("uploads", name)

	if err := h.storage.Upload(r.Context(), path, data, contentType); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	respondJSON(w, http.StatusCreated, models.UploadResponse{
		URL:  h.storage.GetPublicURL(path),
		Path: path,
	})
}

// ScrapeListing handles POST /v1/listings/scrape — pulls property details and
// photos off a listing page and persists the result for later reuse.
func (h *Handler) ScrapeListing(w http.ResponseWriter, r *http.Request) {
	if h.scraper == nil {
		respondError(w, http.StatusServiceUnavailable, "Listing scraping is not configured")
		return
	}

	var req models.ScrapeListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "URL is required")
		return
	}

	result, err := h.scraper.ScrapeListing(r.Context(), req.URL)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Failed to scrape listing page")
		return
	}

	property, err := toJSONB(result.Property)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode property")
		return
	}

	listing := &models.Listing{
		ID:        uuid.New(),
		SourceURL: &req.URL,
		Property:  property,
	}
	if err := h.db.CreateListing(r.Context(), listing); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save listing")
		return
	}

	respondJSON(w, http.StatusOK, models.ScrapeListingResponse{
		ListingID: listing.ID,
		Property:  result.Property,
		Photos:    result.Photos,
	})
}

// GetListing handles GET /v1/listings/{id} — returns a previously scraped or
// submitted property payload for reuse across video requests.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid listing ID")
		return
	}

	listing, err := h.db.GetListing(r.Context(), listingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Listing not found")
		return
	}

	respondJSON(w, http.StatusOK, listing)
}

// ListVoices handles GET /v1/voices — the friendly voice names a client can
// put on a video request. Vendor voice ids never leave the server.
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"voices": h.voices.Voices(),
	})
}

// ListTracks handles GET /v1/tracks — the available background music tracks.
func (h *Handler) ListTracks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tracks": h.tracks.Tracks(),
	})
}

// CreateCheckout handles POST /v1/billing/checkout
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		respondError(w, http.StatusServiceUnavailable, "Billing is not configured")
		return
	}

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PlanID == "" || req.SuccessURL == "" || req.CancelURL == "" {
		respondError(w, http.StatusBadRequest, "plan_id, success_url, and cancel_url are required")
		return
	}

	session, err := h.billing.CreateCheckoutSession(r.Context(), req.PlanID, req.SuccessURL, req.CancelURL)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Failed to create checkout session")
		return
	}

	respondJSON(w, http.StatusOK, models.CheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	})
}

// PaymentWebhook handles POST /webhooks/payments. The route sits outside the
// API-key group: authenticity comes from the signed payload, not from our key.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		respondError(w, http.StatusServiceUnavailable, "Billing is not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read payload")
		return
	}

	event, err := h.billing.ParseWebhookEvent(payload, r.Header.Get("Stripe-Signature"), time.Now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid webhook signature")
		return
	}

	// Verified events are acknowledged and logged. There is no account
	// ledger to credit, so checkout completion carries no further state
	// change server-side.
	log.Printf("[Billing] Verified webhook event %s (%s)", event.ID, event.Type)

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func toJSONB(v interface{}) (models.JSONB, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out models.JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
