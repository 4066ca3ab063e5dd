package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reloop-eco/reloop/internal/app/engine"
	"github.com/reloop-eco/reloop/internal/domain"
)

// ─── Event Intake ───────────────────────────────────────────────────────────

type registerRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := s.db.RegisterUser(r.Context(), req.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id": req.UserID,
		"version": 0,
	})
}

type submissionRequest struct {
	UserID       string   `json:"user_id"`
	SubmissionID string   `json:"submission_id"`
	CategoryName string   `json:"category_name"`
	WeightKg     float64  `json:"weight_kg"`
	Quantity     int      `json:"quantity"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.NewString()
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	res, err := s.engine.Process(r.Context(), engine.RawEvent{
		Kind:         string(domain.EventWasteSubmission),
		UserID:       req.UserID,
		SubmissionID: req.SubmissionID,
		CategoryName: req.CategoryName,
		WeightKg:     req.WeightKg,
		Quantity:     req.Quantity,
		Confidence:   req.Confidence,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeApplyResult(w, req.SubmissionID, res)
}

type socialActionRequest struct {
	UserID       string `json:"user_id"`
	SubmissionID string `json:"submission_id"`
	Action       string `json:"action"`
}

func (s *Server) handleSocialAction(w http.ResponseWriter, r *http.Request) {
	var req socialActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.NewString()
	}

	res, err := s.engine.Process(r.Context(), engine.RawEvent{
		Kind:         string(domain.EventSocialAction),
		UserID:       req.UserID,
		SubmissionID: req.SubmissionID,
		Action:       req.Action,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeApplyResult(w, req.SubmissionID, res)
}

type joinMissionRequest struct {
	UserID       string `json:"user_id"`
	SubmissionID string `json:"submission_id"`
}

func (s *Server) handleJoinMission(w http.ResponseWriter, r *http.Request) {
	missionID := chi.URLParam(r, "id")

	var req joinMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.NewString()
	}

	res, err := s.engine.Process(r.Context(), engine.RawEvent{
		Kind:         string(domain.EventMissionJoin),
		UserID:       req.UserID,
		SubmissionID: req.SubmissionID,
		MissionID:    missionID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeApplyResult(w, req.SubmissionID, res)
}

// writeApplyResult renders an engine result. Replays answer 200 with the
// originally stored outcome; first applications answer 201.
func writeApplyResult(w http.ResponseWriter, submissionID string, res domain.ApplyResult) {
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{
		"submission_id":      submissionID,
		"replayed":           res.Replayed,
		"points_awarded":     res.PointsAwarded,
		"co2_saved_kg":       res.CO2SavedKg,
		"completed_missions": res.CompletedMissions,
		"new_badges":         res.NewBadges,
		"snapshot":           res.Snapshot,
	})
}

// ─── Classification ─────────────────────────────────────────────────────────

type classifyRequest struct {
	ImageRef string `json:"image_ref"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if s.classifier == nil {
		writeError(w, http.StatusNotImplemented, "classification backend not configured")
		return
	}
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ImageRef == "" {
		writeError(w, http.StatusBadRequest, "image_ref is required")
		return
	}
	c, err := s.classifier.Classify(r.Context(), req.ImageRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ─── Missions ───────────────────────────────────────────────────────────────

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListMissions(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"missions": list})
}

func (s *Server) handleGetMission(w http.ResponseWriter, r *http.Request) {
	m, err := s.db.GetMission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ─── User Progress ──────────────────────────────────────────────────────────

func (s *Server) handleUserSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := s.db.GetSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleUserBadges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	awarded, err := s.db.ListBadges(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Decorate with catalog names so clients need no second lookup.
	defs := map[string]domain.BadgeDefinition{}
	for _, def := range s.catalog.Badges() {
		defs[def.ID] = def
	}
	type badgeView struct {
		BadgeID   string    `json:"badge_id"`
		Name      string    `json:"name"`
		Icon      string    `json:"icon"`
		AwardedAt time.Time `json:"awarded_at"`
	}
	out := make([]badgeView, 0, len(awarded))
	for _, b := range awarded {
		v := badgeView{BadgeID: b.BadgeID, AwardedAt: b.AwardedAt}
		if def, ok := defs[b.BadgeID]; ok {
			v.Name = def.Name
			v.Icon = def.Icon
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"badges": out})
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	hist, err := s.db.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": hist})
}

func (s *Server) handleUserNotifications(w http.ResponseWriter, r *http.Request) {
	if s.notifications == nil {
		writeError(w, http.StatusNotImplemented, "notifications not configured")
		return
	}
	limit := queryInt(r, "limit", 20)
	pending, err := s.notifications.Pending(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": pending})
}

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	if s.notifications == nil {
		writeError(w, http.StatusNotImplemented, "notifications not configured")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := s.notifications.MarkShown(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"shown": true})
}

// ─── Catalog ────────────────────────────────────────────────────────────────

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": s.catalog.Rules(),
	})
}

func (s *Server) handleBadgeCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"badges": s.catalog.Badges(),
	})
}

// ─── Community Aggregates ───────────────────────────────────────────────────

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	board, err := s.db.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": board})
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Impact(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	statuses := s.checker.Statuses()
	healthy := true
	for _, st := range statuses {
		if !st.Healthy {
			healthy = false
		}
	}
	code := http.StatusOK
	status := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": statuses,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
