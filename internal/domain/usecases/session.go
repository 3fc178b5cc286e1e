package usecases

import (
	"context"

	"go.uber.org/zap"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/session"
)

// SessionUseCase resets and reports on sessions.
type SessionUseCase struct {
	store *session.Store
	common
}

// NewSessionUseCase creates a SessionUseCase.
func NewSessionUseCase(store *session.Store, opts ...Option) *SessionUseCase {
	return &SessionUseCase{store: store, common: newCommon(opts)}
}

// Reset removes the session and all its documents.
func (uc *SessionUseCase) Reset(ctx context.Context, sessionID string) entities.ResetResult {
	uc.store.SweepExpired(ctx)
	cleared := uc.store.Reset(ctx, sessionID)
	if cleared {
		uc.logger.Info("session reset", zap.String("session_id", sessionID))
	}
	return entities.ResetResult{SessionID: sessionID, Cleared: cleared}
}

// Status describes the session without refreshing its expiry.
func (uc *SessionUseCase) Status(ctx context.Context, sessionID string) entities.Status {
	uc.store.SweepExpired(ctx)
	return uc.store.Status(sessionID)
}
