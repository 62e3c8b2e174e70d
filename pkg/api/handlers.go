package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lumenhq/entitlements/pkg/grants"
	"github.com/lumenhq/entitlements/pkg/httputil"
	"github.com/lumenhq/entitlements/pkg/subscription"
)

// getAccess returns the resolved AccessStatus for the user, starting a
// session resolver if none is live. Consumers always get a complete
// snapshot; resolution failures never surface here.
func (s *Server) getAccess(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	res := s.manager.Resolver(r.Context(), userID)
	httputil.WriteSuccess(w, res.Status())
}

// endSession tears down the user's resolver, releasing its ticker and
// listeners.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	s.manager.EndSession(userID)
	httputil.WriteNoContent(w)
}

// issueWelcomeGrant performs the one-time grant issuance. Issuing against a
// user who already holds the grant is a success, not a conflict. A missing
// profile is the caller's error; a failed write is surfaced because
// issuance must never fail silently.
func (s *Server) issueWelcomeGrant(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	if err := s.grants.IssueGrant(r.Context(), userID); err != nil {
		if grants.IsProfileMissing(err) {
			if s.metrics != nil {
				s.metrics.GrantIssuesTotal.WithLabelValues("profile_missing").Inc()
			}
			httputil.WriteNotFoundError(w, "user profile does not exist")
			return
		}
		s.logger.WithError(err).WithField("user_id", userID).Error("welcome grant issuance failed")
		if s.metrics != nil {
			s.metrics.GrantIssuesTotal.WithLabelValues("error").Inc()
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.GrantIssuesTotal.WithLabelValues("issued").Inc()
	}

	// Stores without change notification need the live session nudged.
	if res, ok := s.manager.Peek(userID); ok {
		res.RefreshGrant(r.Context())
	}

	grant, err := s.grants.GetGrant(r.Context(), userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("grant read-back failed")
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"granted": true})
		return
	}

	httputil.WriteSuccess(w, grant)
}

// getWelcomeGrant returns the raw grant record; absent grants read as the
// zero record.
func (s *Server) getWelcomeGrant(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	grant, err := s.grants.GetGrant(r.Context(), userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("grant read failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, grant)
}

// billingWebhookPayload is the provider's push delivery shape.
type billingWebhookPayload struct {
	EventType string                    `json:"event_type"`
	Customer  subscription.CustomerInfo `json:"customer"`
}

// handleBillingWebhook fans a provider push out to the affected user's
// session listeners. Unknown users are acknowledged and dropped.
func (s *Server) handleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	var payload billingWebhookPayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}

	if payload.Customer.UserID == "" {
		httputil.WriteValidationError(w, "missing customer.user_id")
		return
	}

	if s.metrics != nil {
		s.metrics.WebhookEventsTotal.WithLabelValues(payload.EventType).Inc()
	}

	s.hub.Dispatch(payload.Customer.UserID, &payload.Customer)
	httputil.WriteNoContent(w)
}

// setOverrideRequest is the QA override toggle body.
type setOverrideRequest struct {
	Enabled bool `json:"enabled"`
}

// setOverride records the QA premium override. The flag is read at session
// start, so an existing session must be ended for the toggle to apply.
func (s *Server) setOverride(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req setOverrideRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.overrides.SetEnabled(r.Context(), userID, req.Enabled); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("override write failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]bool{"enabled": req.Enabled})
}

// getOverride reports the persisted override flag.
func (s *Server) getOverride(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	enabled, err := s.overrides.Enabled(r.Context(), userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("override read failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]bool{"enabled": enabled})
}
