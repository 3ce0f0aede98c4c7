package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"vault-indexer/internal/storage"
)

func (s *Server) handleListVaults(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := storage.VaultFilter{Owner: q.Get("owner"), Beneficiary: q.Get("beneficiary")}

	vaults, total, err := s.stores.Vaults.List(r.Context(), filter, page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondList(w, vaults, total)
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	vault, err := s.stores.Vaults.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondItem(w, vault)
}

func (s *Server) handleListDeposits(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	deposits, total, err := s.stores.Deposits.ListByVault(r.Context(), mux.Vars(r)["id"], page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondList(w, deposits, total)
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	withdrawals, total, err := s.stores.Withdrawals.ListByVault(r.Context(), mux.Vars(r)["id"], page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondList(w, withdrawals, total)
}

func (s *Server) handleListVaultRequests(w http.ResponseWriter, r *http.Request) {
	s.listRequests(w, r, storage.WithdrawalRequestFilter{
		VaultID:   mux.Vars(r)["id"],
		Requester: r.URL.Query().Get("requester"),
	})
}

func (s *Server) handleListRequesterRequests(w http.ResponseWriter, r *http.Request) {
	s.listRequests(w, r, storage.WithdrawalRequestFilter{
		Requester: mux.Vars(r)["requester"],
	})
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request, filter storage.WithdrawalRequestFilter) {
	page, err := parsePage(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if filter.Status, err = parseStatus(r); err != nil {
		s.respondError(w, r, err)
		return
	}
	requests, total, err := s.stores.WithdrawalRequests.List(r.Context(), filter, page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondList(w, requests, total)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.stores.WithdrawalRequests.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondItem(w, req)
}

func (s *Server) handleListCursors(w http.ResponseWriter, r *http.Request) {
	cursors, err := s.stores.Cursors.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondList(w, cursors, len(cursors))
}

func (s *Server) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resolved, err := parseResolved(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	filter := storage.DeadLetterFilter{EventType: r.URL.Query().Get("event_type"), Resolved: resolved}

	letters, total, err := s.stores.DeadLetters.List(r.Context(), filter, page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondList(w, letters, total)
}
