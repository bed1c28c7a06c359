package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keynest/gateway/internal/models"
)

// Logger records tamper-evident audit entries for authentication and
// user-management actions. Entries are HMAC-signed and emitted through
// structured logging; the identity provider remains the system of record
// for the users themselves.
type Logger struct {
	secretKey []byte
	slog      *slog.Logger

	mu   sync.Mutex
	logs []*models.AuditLog
}

func NewLogger(secretKey string, logger *slog.Logger) *Logger {
	return &Logger{
		secretKey: []byte(secretKey),
		slog:      logger.With(slog.String("component", "audit")),
		logs:      make([]*models.AuditLog, 0),
	}
}

func (l *Logger) Log(actorType, actorID, actorName, action, resource, resourceID, ipAddress, userAgent, result, reason string, metadata map[string]interface{}) *models.AuditLog {
	entry := &models.AuditLog{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		ActorType:  actorType,
		ActorID:    actorID,
		ActorName:  actorName,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Result:     result,
		Reason:     reason,
		Metadata:   metadata,
	}

	entry.Signature = l.sign(entry)

	l.mu.Lock()
	l.logs = append(l.logs, entry)
	l.mu.Unlock()

	l.slog.Info("audit",
		slog.String("audit_id", entry.ID),
		slog.String("actor", entry.ActorName),
		slog.String("action", entry.Action),
		slog.String("resource", entry.Resource),
		slog.String("resource_id", entry.ResourceID),
		slog.String("result", entry.Result),
		slog.String("reason", entry.Reason),
	)

	return entry
}

func (l *Logger) sign(entry *models.AuditLog) string {
	data := []byte(entry.ID + entry.Timestamp.Format(time.RFC3339Nano) + entry.ActorID + entry.Action + entry.Resource + entry.Result)
	h := hmac.New(sha256.New, l.secretKey)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks an entry's signature against the logger's key.
func (l *Logger) Verify(entry *models.AuditLog) bool {
	expected := l.sign(entry)
	return hmac.Equal([]byte(expected), []byte(entry.Signature))
}

// GetLogs returns the entries recorded so far.
func (l *Logger) GetLogs() []*models.AuditLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.AuditLog, len(l.logs))
	copy(out, l.logs)
	return out
}
