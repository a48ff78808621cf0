package chathub

import (
	"civicdesk/backend/internal/config"
	"civicdesk/backend/internal/models"
	"strconv"
	"strings"
)

// Identity is the authenticated user behind a connection.
type Identity struct {
	UserID uint
	Name   string
	Role   models.Role
}

// Client is the interface for any type of connection (e.g., WebSocket).
// It abstracts the underlying communication mechanism, allowing the hub to manage
// different client types uniformly.
type Client interface {
	// Identity returns the user the connection was authenticated as.
	Identity() Identity

	// GetSendChannel returns the channel to which the ManagerService (hub) sends
	// frames intended for this specific client. Only the hub writes to it.
	GetSendChannel() chan<- Frame

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's outgoing channel. The hub calls it exactly once.
	Close()
}

// Frame types sent by clients.
const (
	FrameJoinChat    = "join_chat"
	FrameSendMessage = "send_message"
)

// Frame types sent by the server.
const (
	FrameReceiveMessage = "receive_message"
	FrameChatHistory    = "chat_history"
	FrameError          = "error"
)

// InboundFrame is a client command.
type InboundFrame struct {
	Type    string `json:"type" validate:"required,oneof=join_chat send_message"`
	Room    string `json:"room" validate:"required,startswith=citizen_,max=64"`
	Message string `json:"message" validate:"required_if=Type send_message"`
}

// Frame is a server event.
type Frame struct {
	Type     string               `json:"type"`
	Room     string               `json:"room,omitempty"`
	Payload  *models.ChatMessage  `json:"payload,omitempty"`
	Messages []models.ChatMessage `json:"messages,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// RoomFor returns the support room of a citizen.
func RoomFor(citizenID uint) string {
	return config.ChatRoomPrefix + strconv.FormatUint(uint64(citizenID), 10)
}

// CanJoin reports whether id may read and write room: a citizen only their own
// room, an admin any citizen room.
func CanJoin(id Identity, room string) bool {
	if !strings.HasPrefix(room, config.ChatRoomPrefix) {
		return false
	}
	switch id.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCitizen:
		return room == RoomFor(id.UserID)
	default:
		return false
	}
}
