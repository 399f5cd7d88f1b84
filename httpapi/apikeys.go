package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MrEthical07/authcore"
)

func (a *api) createKey(w http.ResponseWriter, r *http.Request) {
	var req authcore.CreateAPIKeyRequest
	if err := decode(r, &req); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	id := authcore.IdentityFromContext(r.Context())
	created, err := a.engine.CreateAPIKey(r.Context(), id.ID, req)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusCreated, "API key created successfully. Store it safely - you won't see it again", created)
}

func (a *api) listKeys(w http.ResponseWriter, r *http.Request) {
	id := authcore.IdentityFromContext(r.Context())
	keys, err := a.engine.ListAPIKeys(r.Context(), id.ID)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", map[string]any{"apiKeys": keys, "count": len(keys)})
}

func (a *api) keyStats(w http.ResponseWriter, r *http.Request) {
	id := authcore.IdentityFromContext(r.Context())
	stats, err := a.engine.APIKeyStats(r.Context(), id.ID)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", map[string]any{"stats": stats})
}

func (a *api) getKey(w http.ResponseWriter, r *http.Request) {
	id := authcore.IdentityFromContext(r.Context())
	key, err := a.engine.GetAPIKey(r.Context(), id.ID, mux.Vars(r)["id"])
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", map[string]any{"apiKey": key})
}

func (a *api) updateKey(w http.ResponseWriter, r *http.Request) {
	var req authcore.UpdateAPIKeyRequest
	if err := decode(r, &req); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	id := authcore.IdentityFromContext(r.Context())
	key, err := a.engine.UpdateAPIKey(r.Context(), id.ID, mux.Vars(r)["id"], req)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "API key updated successfully", map[string]any{"apiKey": key})
}

func (a *api) revokeKey(w http.ResponseWriter, r *http.Request) {
	id := authcore.IdentityFromContext(r.Context())
	key, err := a.engine.RevokeAPIKey(r.Context(), id.ID, mux.Vars(r)["id"])
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "API key revoked successfully", map[string]any{"apiKey": key})
}

func (a *api) deleteKey(w http.ResponseWriter, r *http.Request) {
	id := authcore.IdentityFromContext(r.Context())
	if err := a.engine.DeleteAPIKey(r.Context(), id.ID, mux.Vars(r)["id"]); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "API key deleted successfully", nil)
}
