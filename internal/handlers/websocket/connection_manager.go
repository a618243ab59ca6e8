package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/pkg/Logger"
)

// ConnectionManager tracks open sessions by session id. A device may hold
// several connections at once.
type ConnectionManager struct {
	logger         *Logger.Logger
	sessions       map[uuid.UUID]*Session
	mutex          sync.RWMutex
	cleanupTicker  *time.Ticker
	stopCleanup    chan struct{}
	closeOnce      sync.Once
	sessionTimeout time.Duration
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger *Logger.Logger) *ConnectionManager {
	cm := &ConnectionManager{
		logger:         logger,
		sessions:       make(map[uuid.UUID]*Session),
		stopCleanup:    make(chan struct{}),
		sessionTimeout: 30 * time.Minute, // 30 minutes default timeout
	}

	// Start cleanup goroutine
	cm.startCleanupRoutine()

	return cm
}

// RegisterConnection registers a new session
func (cm *ConnectionManager) RegisterConnection(session *Session) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.sessions[session.SessionID] = session
	cm.logger.Infof("Registered session %s for device %s",
		session.SessionID, session.OwnerID)
}

// UnregisterConnection removes a session
func (cm *ConnectionManager) UnregisterConnection(sessionID uuid.UUID) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if session, exists := cm.sessions[sessionID]; exists {
		cm.logger.Infof("Unregistering session %s (connected %v)",
			sessionID, time.Since(session.ConnectedAt).Round(time.Second))

		if err := session.Close(); err != nil {
			cm.logger.Errorf("Error closing session %s: %v", sessionID, err)
		}

		delete(cm.sessions, sessionID)
	}
}

// GetSessionCount returns the number of active sessions
func (cm *ConnectionManager) GetSessionCount() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return len(cm.sessions)
}

// startCleanupRoutine starts a goroutine to clean up expired sessions
func (cm *ConnectionManager) startCleanupRoutine() {
	cm.cleanupTicker = time.NewTicker(5 * time.Minute) // Check every 5 minutes

	go func() {
		for {
			select {
			case <-cm.cleanupTicker.C:
				cm.cleanupExpiredSessions()
			case <-cm.stopCleanup:
				cm.cleanupTicker.Stop()
				return
			}
		}
	}()
}

// cleanupExpiredSessions removes expired sessions
func (cm *ConnectionManager) cleanupExpiredSessions() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	expired := 0
	for id, session := range cm.sessions {
		if !session.IsExpired(cm.sessionTimeout) {
			continue
		}
		// closing the connection ends its read loop, which releases the controller
		cm.logger.Infof("Closing idle session %s", id)
		session.Close()
		delete(cm.sessions, id)
		expired++
	}

	if expired > 0 {
		cm.logger.Infof("Cleaned up %d expired sessions", expired)
	}
}

// Close shuts down the connection manager
func (cm *ConnectionManager) Close() error {
	// Stop cleanup routine
	cm.closeOnce.Do(func() { close(cm.stopCleanup) })

	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	// Close all sessions
	for id, session := range cm.sessions {
		cm.logger.Infof("Closing session %s", id)
		if err := session.Close(); err != nil {
			cm.logger.Errorf("Error closing session %s: %v", id, err)
		}
	}

	// Clear sessions map
	cm.sessions = make(map[uuid.UUID]*Session)

	cm.logger.Infof("Connection manager closed")
	return nil
}

// GetStats returns connection manager statistics
func (cm *ConnectionManager) GetStats() map[string]interface{} {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	stats := map[string]interface{}{
		"active_sessions": len(cm.sessions),
		"session_timeout": cm.sessionTimeout.String(),
	}

	// Add per-session stats
	sessionStats := make([]map[string]interface{}, 0, len(cm.sessions))
	for _, session := range cm.sessions {
		caps := session.Caps()
		sessionStats = append(sessionStats, map[string]interface{}{
			"device_id":    session.OwnerID.String(),
			"device_name":  session.DeviceName,
			"session_id":   session.SessionID.String(),
			"transport":    session.Transport(),
			"connected_at": session.ConnectedAt,
			"last_active":  session.LastActive(),
			"is_active":    session.IsAlive(),
			"audio_sink":   caps.AudioSink,
			"audio_source": caps.AudioSource,
			"recognizer":   caps.Recognizer,
		})
	}
	stats["sessions"] = sessionStats

	return stats
}
