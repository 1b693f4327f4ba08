package server

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// CreditsResponse is the credit gauge
type CreditsResponse struct {
	Credits  int     `json:"credits"`
	Max      int     `json:"max"`
	Fraction float64 `json:"fraction"`
}

func (s *Server) creditsResponse() CreditsResponse {
	account := s.ledger.Account()
	return CreditsResponse{
		Credits:  account.Balance(),
		Max:      account.Max(),
		Fraction: account.Fraction(),
	}
}

func (s *Server) handleGetCredits(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.creditsResponse())
}

// handleRecharge adds credits; the balance is not capped at the display max
func (s *Server) handleRecharge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int `json:"amount"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if verr := validateRecharge(req.Amount, s.config.Credits.RechargeMax); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	balance := s.ledger.Credit(req.Amount)
	s.logger.WithFields(logrus.Fields{
		"amount":  req.Amount,
		"balance": balance,
	}).Info("Credits recharged")

	s.respondJSON(w, http.StatusOK, s.creditsResponse())
}
