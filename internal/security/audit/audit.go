package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, caller *uuid.UUID, action, resource, resourceID, status, details string) {
	callerID := "anonymous"
	if caller != nil {
		callerID = caller.String()
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("caller_id", callerID),
		slog.String("status", status),
		slog.String("details", details),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogLogin(ctx context.Context, userID uuid.UUID, status string) {
	al.LogAction(ctx, &userID, "login", "session", "", status, "")
}

func (al *Logger) LogRegistration(ctx context.Context, userID uuid.UUID, status string) {
	al.LogAction(ctx, &userID, "register", "user", userID.String(), status, "")
}

func (al *Logger) LogDenied(ctx context.Context, caller *uuid.UUID, resource, reason string) {
	al.LogAction(ctx, caller, "access_denied", resource, "", "denied", reason)
}
