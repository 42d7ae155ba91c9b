package api

import (
	"net/http"

	"partyhub/identity"
	"partyhub/models"
	"partyhub/party"
)

// PartyHandler exposes the party state engine over REST.
type PartyHandler struct {
	Parties *party.Store
	Users   *identity.Resolver
}

// POST /createParty
func (h *PartyHandler) CreateParty(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePartyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	hostID, err := h.Users.Resolve(req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.Parties.Create(req.Name, hostID, req.Requirements, req.Location, req.StartTime, req.EndTime, req.Budget)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GET /active-parties
func (h *PartyHandler) ListActiveParties(w http.ResponseWriter, r *http.Request) {
	parties, err := h.Parties.Active()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parties)
}

// GET /user-parties/{username}
func (h *PartyHandler) ListUserParties(w http.ResponseWriter, r *http.Request) {
	userID, err := h.Users.Resolve(r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	parties, err := h.Parties.ForParticipant(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parties)
}

// GET /hosted-parties/{username}
func (h *PartyHandler) ListHostedParties(w http.ResponseWriter, r *http.Request) {
	userID, err := h.Users.Resolve(r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	parties, err := h.Parties.HostedBy(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parties)
}

// GET /party/{partyID}
func (h *PartyHandler) GetParty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Parties.Get(r.PathValue("partyID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /party/{partyID}/join
func (h *PartyHandler) JoinParty(w http.ResponseWriter, r *http.Request) {
	var req models.JoinPartyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, err := h.Users.Resolve(req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.Parties.Join(r.PathValue("partyID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /party/{partyID}/leave
func (h *PartyHandler) LeaveParty(w http.ResponseWriter, r *http.Request) {
	var req models.JoinPartyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, err := h.Users.Resolve(req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.Parties.Leave(r.PathValue("partyID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /party/{partyID}/requirement
func (h *PartyHandler) AddRequirement(w http.ResponseWriter, r *http.Request) {
	var req models.AddRequirementRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.Parties.AddRequirement(r.PathValue("partyID"), req.Item, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /party/{partyID}/requirement/{requirementID}/fulfill
func (h *PartyHandler) FulfillRequirement(w http.ResponseWriter, r *http.Request) {
	var req models.FulfillRequirementRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.Parties.Fulfill(r.PathValue("partyID"), r.PathValue("requirementID"), req.UserID, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /party/{partyID}/cancel
func (h *PartyHandler) CancelParty(w http.ResponseWriter, r *http.Request) {
	var req models.CancelPartyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.Parties.Cancel(r.PathValue("partyID"), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PUT /party/{partyID}
func (h *PartyHandler) EditParty(w http.ResponseWriter, r *http.Request) {
	var req models.EditPartyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.Parties.Edit(r.PathValue("partyID"), req.Username, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /party/{partyID}/invite
func (h *PartyHandler) InviteFriends(w http.ResponseWriter, r *http.Request) {
	var req models.InviteFriendsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.Parties.Invite(r.PathValue("partyID"), req.Username, req.Friends)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
