package amqp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MirrorOp is the kind of remote write a MirrorMessage carries.
type MirrorOp string

const (
	OpUpsert MirrorOp = "upsert"
	OpDelete MirrorOp = "delete"
)

// MirrorMessage is one queued write to the remote mirror. Upserts carry the
// full flat document so the worker never reads the local store.
type MirrorMessage struct {
	Op         MirrorOp       `json:"op"`
	Collection string         `json:"collection"`
	UID        string         `json:"uid"`
	ID         string         `json:"id"`
	Document   map[string]any `json:"document,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewMirrorUpsert(uid, collection, id string, doc map[string]any) *MirrorMessage {
	return &MirrorMessage{
		Op:         OpUpsert,
		Collection: collection,
		UID:        uid,
		ID:         id,
		Document:   doc,
		Timestamp:  time.Now(),
	}
}

func NewMirrorDelete(uid, collection, id string) *MirrorMessage {
	return &MirrorMessage{
		Op:         OpDelete,
		Collection: collection,
		UID:        uid,
		ID:         id,
		Timestamp:  time.Now(),
	}
}

func (m *MirrorMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MirrorMessageFromJSON decodes and checks a message. Numbers in the
// document are kept as json.Number.
func MirrorMessageFromJSON(data []byte) (*MirrorMessage, error) {
	var msg MirrorMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return nil, err
	}
	switch {
	case msg.Op != OpUpsert && msg.Op != OpDelete:
		return nil, fmt.Errorf("unknown mirror op %q", msg.Op)
	case msg.UID == "" || msg.ID == "" || msg.Collection == "":
		return nil, fmt.Errorf("mirror message missing uid, collection or id")
	case msg.Op == OpUpsert && msg.Document == nil:
		return nil, fmt.Errorf("mirror upsert without document")
	}
	return &msg, nil
}

// NotificationMessage is a rendered reminder handed to a delivery service.
type NotificationMessage struct {
	Kind           string    `json:"kind"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	DeepLink       string    `json:"deepLink,omitempty"`
	Count          int       `json:"count,omitempty"`
	Total          float64   `json:"total,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
