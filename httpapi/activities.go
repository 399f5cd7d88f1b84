package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
)

func (a *api) myActivities(w http.ResponseWriter, r *http.Request) {
	qr := newQueryReader(r)
	limit := qr.intParam("limit")
	if err := qr.err(); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	events, err := a.engine.RecentActivities(r.Context(), actorID(r), limit)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", map[string]any{"activities": events, "count": len(events)})
}

func (a *api) listActivities(w http.ResponseWriter, r *http.Request) {
	q, err := activityQuery(r)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	page, err := a.engine.Activities(r.Context(), q)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", page)
}

func (a *api) activityStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.engine.ActivityStats(r.Context())
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", stats)
}

func (a *api) cleanupActivities(w http.ResponseWriter, r *http.Request) {
	qr := newQueryReader(r)
	days := qr.intParam("days")
	if err := qr.err(); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	n, err := a.engine.CleanupActivities(r.Context(), days)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Old activities removed", map[string]any{"deletedCount": n})
}

func (a *api) demoKeyOnly(w http.ResponseWriter, r *http.Request) {
	key := authcore.APIKeyInfoFromContext(r.Context())
	a.ok(w, http.StatusOK, "API key authenticated successfully", map[string]any{
		"user":   authcore.IdentityFromContext(r.Context()),
		"apiKey": map[string]any{"name": key.Name, "permissions": key.Permissions},
	})
}

func (a *api) demoRead(w http.ResponseWriter, r *http.Request) {
	a.ok(w, http.StatusOK, "Read permission verified", map[string]any{
		"sampleData": []string{"item1", "item2", "item3"},
	})
}

func (a *api) demoWrite(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decode(r, &body); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "Write permission verified", map[string]any{
		"created":   body,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *api) demoFlexible(w http.ResponseWriter, r *http.Request) {
	method := "JWT Token"
	if authcore.APIKeyInfoFromContext(r.Context()) != nil {
		method = "API Key"
	}
	a.ok(w, http.StatusOK, "Authenticated via "+method, map[string]any{
		"user":       authcore.IdentityFromContext(r.Context()),
		"authMethod": method,
	})
}

func (a *api) demoVerified(w http.ResponseWriter, r *http.Request) {
	a.ok(w, http.StatusOK, "You have a verified email! Access granted.", map[string]any{
		"user": authcore.IdentityFromContext(r.Context()),
	})
}
