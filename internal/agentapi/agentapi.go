// Package agentapi describes the host monitoring agent as seen by a plugin:
// push source registration, pushed data and control/config messages.
package agentapi

import "fmt"

// DefaultCapacity is the ingestion buffer size hint, in bytes, advertised for
// a push source.
const DefaultCapacity = 10240

// ProfilingProperty is the agent property holding the initial profiling
// state ("on" enables it).
const ProfilingProperty = "com.ibm.diagnostics.healthcenter.data.profiling"

// PushSource describes one data source registered with the agent.
type PushSource struct {
	Name        string
	Description string
	SourceID    uint32
	// Capacity is a sizing hint for the agent's per-source buffer.
	Capacity uint32
	// Next links further sources registered by the same plugin.
	Next *PushSource
}

// NewPushSource returns a source with the default capacity.
func NewPushSource(sourceID uint32, name string) *PushSource {
	return &PushSource{
		Name:        name,
		Description: fmt.Sprintf("Description for %s", name),
		SourceID:    sourceID,
		Capacity:    DefaultCapacity,
	}
}

// MonitorData is one blob pushed to the agent.
type MonitorData struct {
	ProvID     uint32
	SourceID   uint32
	Persistent bool
	Data       []byte
}

// API is the set of agent functions a plugin may call.
//
// Implementations must be safe for concurrent use. PushData and SendMessage
// are fire-and-forget and must not block the caller on transport.
type API interface {
	PushData(data MonitorData)
	SendMessage(topic string, body []byte)
	GetProperty(key string) string
}

// MessageHandler receives inbound control messages addressed to a source.
type MessageHandler func(id string, data []byte)

// Properties is a static property set backing API.GetProperty.
type Properties map[string]string

// Get returns the property value, or "" when it is absent.
func (p Properties) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}
