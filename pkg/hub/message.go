// Package hub fans progress events out to websocket subscribers over
// channels, one writer goroutine per connection.
package hub

import "encoding/json"

// MessageType indicates the websocket frame type.
type MessageType int

const (
	// JSONMessage is a JSON-encoded text frame.
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data, such as a preview image.
	BinaryMessage
)

// Message is one broadcast frame. Topic scopes it to subscribers of a
// run or session; an empty Topic reaches everyone.
type Message struct {
	Type  MessageType
	Topic string
	Data  []byte
}

// NewJSONMessage encodes v as a JSON message on topic.
func NewJSONMessage(topic string, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: JSONMessage, Topic: topic, Data: data}, nil
}

// NewBinaryMessage wraps raw bytes on topic.
func NewBinaryMessage(topic string, data []byte) Message {
	return Message{Type: BinaryMessage, Topic: topic, Data: data}
}
