package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

// StartSessionRequest is posted by a guest device after scanning a table QR.
type StartSessionRequest struct {
	QRToken      string `json:"qr_token"      validate:"required,hexadecimal,max=64"`
	PIN          string `json:"pin"           validate:"omitempty,numeric,min=4,max=8"`
	GuestCount   int    `json:"guest_count"   validate:"omitempty,min=1,max=50"`
	CustomerName string `json:"customer_name" validate:"omitempty,max=100"`
}

type VerifySessionRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// StartSessionResponse.Status is "created" or "resumed".
type StartSessionResponse struct {
	SessionID   string `json:"session_id"`
	AccessToken string `json:"access_token"`
	TableID     string `json:"table_id"`
	TableNumber string `json:"table_number"`
	Status      string `json:"status"`
}

type VerifySessionResponse struct {
	Status    string `json:"status"`
	TableID   string `json:"table_id"`
	SessionID string `json:"session_id"`
}

type CloseSessionResponse struct {
	Status string `json:"status"`
}
