package service

import (
	"context"
	"time"

	"restopos/internal/apierror"
	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SessionService manages the QR-scan lifecycle of a table.
type SessionService interface {
	Start(ctx context.Context, tenantID uuid.UUID, req dto.StartSessionRequest) (*dto.StartSessionResponse, error)
	Verify(ctx context.Context, tenantID uuid.UUID, accessToken string) (*dto.VerifySessionResponse, error)
	// Resolve returns the active session behind a guest access token.
	Resolve(ctx context.Context, tenantID uuid.UUID, accessToken string) (*model.TableSession, error)
	Close(ctx context.Context, tenantID, sessionID uuid.UUID) (*dto.CloseSessionResponse, error)
	// CloseTx closes the session inside the caller's transaction.
	CloseTx(tx *gorm.DB, tenantID, sessionID uuid.UUID, at time.Time) error
}

type sessionService struct {
	tx     repository.Transactor
	tables repository.TableRepository
}

func NewSessionService(tx repository.Transactor, tables repository.TableRepository) SessionService {
	return &sessionService{tx: tx, tables: tables}
}

// ── Start ─────────────────────────────────────────────────────────────────────
// The table row lock serializes concurrent scans of the same QR code, so the
// second scan always observes the first one's session and resumes it.

func (s *sessionService) Start(ctx context.Context, tenantID uuid.UUID, req dto.StartSessionRequest) (*dto.StartSessionResponse, error) {
	if req.QRToken == "" {
		return nil, apierror.Invalid("qr_token is required")
	}
	// Hash outside the transaction.
	var pinHash string
	if req.PIN != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		pinHash = string(h)
	}

	var resp *dto.StartSessionResponse
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		table, err := s.tables.LockByQRTokenTx(tx, tenantID, req.QRToken)
		if err != nil {
			return apierror.FromDB(err, "table not found")
		}

		active, err := s.tables.FindActiveSessionTx(tx, tenantID, table.ID)
		if err != nil {
			return err
		}
		if active != nil {
			if active.PINHash != "" &&
				bcrypt.CompareHashAndPassword([]byte(active.PINHash), []byte(req.PIN)) != nil {
				return apierror.Unauthorized("invalid session pin")
			}
			resp = sessionResponse(active, table, "resumed")
			return nil
		}

		token, err := model.RandomToken()
		if err != nil {
			return err
		}
		guests := req.GuestCount
		if guests < 1 {
			guests = 1
		}
		sess := &model.TableSession{
			TenantID:     tenantID,
			TableID:      table.ID,
			StartTime:    time.Now().UTC(),
			IsActive:     true,
			AccessToken:  token,
			PINHash:      pinHash,
			GuestCount:   guests,
			CustomerName: req.CustomerName,
		}
		if err := s.tables.CreateSessionTx(tx, sess); err != nil {
			if apierror.IsUniqueViolation(err) {
				return apierror.Retryable(err)
			}
			return err
		}
		if err := s.tables.UpdateStatusTx(tx, tenantID, table.ID, model.TableOccupied); err != nil {
			return err
		}
		resp = sessionResponse(sess, table, "created")
		return nil
	})
	if err != nil {
		return nil, apierror.FromDB(err, "table not found")
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("table_id", resp.TableID).
		Str("session_id", resp.SessionID).
		Str("status", resp.Status).
		Msg("table session started")
	return resp, nil
}

func sessionResponse(sess *model.TableSession, table *model.Table, status string) *dto.StartSessionResponse {
	return &dto.StartSessionResponse{
		SessionID:   sess.ID.String(),
		AccessToken: sess.AccessToken,
		TableID:     table.ID.String(),
		TableNumber: table.Number,
		Status:      status,
	}
}

// ── Verify / Resolve ──────────────────────────────────────────────────────────

func (s *sessionService) Verify(ctx context.Context, tenantID uuid.UUID, accessToken string) (*dto.VerifySessionResponse, error) {
	sess, err := s.Resolve(ctx, tenantID, accessToken)
	if err != nil {
		return nil, err
	}
	return &dto.VerifySessionResponse{
		Status:    "valid",
		TableID:   sess.TableID.String(),
		SessionID: sess.ID.String(),
	}, nil
}

func (s *sessionService) Resolve(ctx context.Context, tenantID uuid.UUID, accessToken string) (*model.TableSession, error) {
	if accessToken == "" {
		return nil, apierror.Unauthorized("invalid or expired session")
	}
	sess, err := s.tables.FindSessionByToken(ctx, tenantID, accessToken)
	if err != nil {
		err = apierror.FromDB(err, "session not found")
		if apierror.Is(err, apierror.KindNotFound) {
			return nil, apierror.Unauthorized("invalid or expired session")
		}
		return nil, err
	}
	if !sess.IsActive {
		return nil, apierror.Unauthorized("invalid or expired session")
	}
	return sess, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────

func (s *sessionService) Close(ctx context.Context, tenantID, sessionID uuid.UUID) (*dto.CloseSessionResponse, error) {
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		return s.CloseTx(tx, tenantID, sessionID, time.Now().UTC())
	})
	if err != nil {
		return nil, apierror.FromDB(err, "session not found")
	}
	return &dto.CloseSessionResponse{Status: "closed"}, nil
}

// CloseTx locks the table before the session, the order Pay and Start use.
func (s *sessionService) CloseTx(tx *gorm.DB, tenantID, sessionID uuid.UUID, at time.Time) error {
	peek, err := s.tables.FindSessionTx(tx, tenantID, sessionID)
	if err != nil {
		return apierror.FromDB(err, "session not found")
	}
	if _, err := s.tables.LockByIDTx(tx, tenantID, peek.TableID); err != nil {
		return apierror.FromDB(err, "table not found")
	}
	sess, err := s.tables.LockSessionTx(tx, tenantID, sessionID)
	if err != nil {
		return apierror.FromDB(err, "session not found")
	}
	if !sess.IsActive {
		return nil
	}
	if err := s.tables.CloseSessionTx(tx, tenantID, sessionID, at); err != nil {
		return err
	}
	return s.tables.UpdateStatusTx(tx, tenantID, sess.TableID, model.TableAvailable)
}
