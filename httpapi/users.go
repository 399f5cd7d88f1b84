package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MrEthical07/authcore"
)

type banBody struct {
	Reason string `json:"reason"`
}

type roleBody struct {
	Role authcore.Role `json:"role"`
}

func actorID(r *http.Request) string {
	if id := authcore.IdentityFromContext(r.Context()); id != nil {
		return id.ID
	}
	return ""
}

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	q, err := accountQuery(r)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	page, err := a.engine.ListAccounts(r.Context(), q)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", page)
}

func (a *api) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.engine.AccountStats(r.Context())
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", stats)
}

func (a *api) getUser(w http.ResponseWriter, r *http.Request) {
	acc, err := a.engine.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "", map[string]any{"user": acc})
}

func (a *api) updateUser(w http.ResponseWriter, r *http.Request) {
	var req authcore.UpdateAccountRequest
	if err := decode(r, &req); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	acc, err := a.engine.UpdateAccount(r.Context(), actorID(r), mux.Vars(r)["id"], req)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "User updated successfully", map[string]any{"user": acc})
}

func (a *api) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.DeleteAccount(r.Context(), actorID(r), mux.Vars(r)["id"]); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "User deleted successfully", nil)
}

func (a *api) banUser(w http.ResponseWriter, r *http.Request) {
	var body banBody
	if err := decode(r, &body); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	acc, err := a.engine.BanAccount(r.Context(), actorID(r), mux.Vars(r)["id"], body.Reason)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "User banned successfully", map[string]any{"user": acc})
}

func (a *api) unbanUser(w http.ResponseWriter, r *http.Request) {
	acc, err := a.engine.UnbanAccount(r.Context(), actorID(r), mux.Vars(r)["id"])
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "User unbanned successfully", map[string]any{"user": acc})
}

func (a *api) changeRole(w http.ResponseWriter, r *http.Request) {
	var body roleBody
	if err := decode(r, &body); err != nil {
		a.rs.Error(w, r, err)
		return
	}
	acc, err := a.engine.ChangeRole(r.Context(), actorID(r), mux.Vars(r)["id"], body.Role)
	if err != nil {
		a.rs.Error(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, "User role updated successfully", map[string]any{"user": acc})
}
