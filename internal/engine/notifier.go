package engine

import (
	"log"
)

// Notifier fans session lifecycle events out to interested listeners. The
// current implementation logs; a production deployment would push these to an
// analytics pipeline or the app's event bus.
type Notifier struct {
	// In a real implementation, this would hold analytics/event-bus clients
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// SessionCreated announces a new map session.
func (n *Notifier) SessionCreated(sessionID, clientID string) {
	log.Printf("[EVENT] Session %s created for client %s", sessionID, clientID)
}

// SessionClosed announces session teardown.
func (n *Notifier) SessionClosed(sessionID string) {
	log.Printf("[EVENT] Session %s closed", sessionID)
}

// ResultsDelivered announces a catalog replacement.
func (n *Notifier) ResultsDelivered(sessionID string, count int, continuation, animateReveal bool) {
	log.Printf("[EVENT] Session %s: %d results delivered (continuation=%t, animateReveal=%t)",
		sessionID, count, continuation, animateReveal)
}

// MarkerPressed announces a marker press from the map UI.
func (n *Notifier) MarkerPressed(sessionID, key string) {
	log.Printf("[EVENT] Session %s: marker %s pressed", sessionID, key)
}

// RendererAttached announces a renderer connection and its capabilities.
func (n *Notifier) RendererAttached(sessionID string, pointToCoordinate, featureState bool) {
	log.Printf("[EVENT] Session %s: renderer attached (pointToCoordinate=%t, featureState=%t)",
		sessionID, pointToCoordinate, featureState)
}

// RendererDetached announces a renderer disconnect.
func (n *Notifier) RendererDetached(sessionID string) {
	log.Printf("[EVENT] Session %s: renderer detached", sessionID)
}
