package models

// Notification types shown as toasts/badges by clients.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// Notification is stored at users/<uid>/notifications/<id>.
type Notification struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
	Read      bool   `json:"read"`
	Sender    string `json:"sender,omitempty"`
}

func (n *Notification) Fields() Fields {
	m := Fields{
		"message":   n.Message,
		"type":      n.Type,
		"createdAt": n.CreatedAt,
		"read":      n.Read,
	}
	if n.Sender != "" {
		m["sender"] = n.Sender
	}
	return m
}

func NotificationFromFields(id string, m Fields) *Notification {
	return &Notification{
		ID:        id,
		Message:   getString(m, "message"),
		Type:      getString(m, "type"),
		CreatedAt: getString(m, "createdAt"),
		Read:      getBool(m, "read"),
		Sender:    getString(m, "sender"),
	}
}
