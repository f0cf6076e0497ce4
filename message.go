package agent

// Message is an inbound publish handed from the MQTT library to the subscriber loop.
type Message struct {
	ID        int
	Topic     string
	Payload   []byte
	QoS       QOSLevel
	Duplicate bool
	Retained  bool
}

// PayloadString returns the payload as text.
func (m *Message) PayloadString() string {
	return string(m.Payload)
}
