// Package handlers implements the central HTTP API
package handlers

import (
	"encoding/json"
	"log"

	"github.com/srihari1306/SafeVisionAI/internal/models"
)

// EventBus publishes incident events for the live feeds
type EventBus interface {
	Publish(subject string, data []byte) error
}

var eventBus EventBus

// SetEventBus wires the bus into the handlers. Handlers stay functional
// without one; events are simply not broadcast.
func SetEventBus(bus EventBus) {
	eventBus = bus
}

// incidentEvent is the envelope pushed to dashboards
type incidentEvent struct {
	Type     string            `json:"type"`
	Incident *models.Incident  `json:"incident"`
	Action   *models.ActionLog `json:"action,omitempty"`
}

// publishNewIncident announces a freshly created incident
func publishNewIncident(incident *models.Incident) {
	publishIncidentEvent("incidents.new", incidentEvent{
		Type:     "new_incident",
		Incident: incident,
	})
}

// publishIncidentUpdate announces a state transition
func publishIncidentUpdate(incident *models.Incident, action *models.ActionLog) {
	publishIncidentEvent("incidents.update", incidentEvent{
		Type:     "incident_update",
		Incident: incident,
		Action:   action,
	})
}

func publishIncidentEvent(subject string, event incidentEvent) {
	if eventBus == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("⚠️ [NOTIFY] Failed to encode incident event: %v", err)
		return
	}
	if err := eventBus.Publish(subject, data); err != nil {
		log.Printf("⚠️ [NOTIFY] Failed to publish %s: %v", subject, err)
	}
}
