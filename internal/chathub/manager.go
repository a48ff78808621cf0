package chathub

import (
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/config"
	"civicdesk/backend/internal/metrics"
	"civicdesk/backend/internal/models"
	"civicdesk/backend/internal/ratelimit"
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ChatStore is the durable message log.
type ChatStore interface {
	SaveChatMessage(ctx context.Context, msg *models.ChatMessage) error
	ChatHistory(ctx context.Context, room string) ([]models.ChatMessage, error)
	ActiveRooms(ctx context.Context) ([]models.ActiveRoom, error)
}

// Broker fans persisted messages out to every API instance.
type Broker interface {
	PublishChat(ctx context.Context, msg *models.ChatMessage) error
	SubscribeChat(ctx context.Context, log *zap.Logger) (<-chan models.ChatMessage, error)
}

type joinRequest struct {
	client  Client
	room    string
	hydrate bool
	done    chan struct{}
}

// historyReady carries the history loaded for a pending subscription.
type historyReady struct {
	client   Client
	room     string
	messages []models.ChatMessage
	loaded   bool
}

// subscription is one client's membership in a room. While pending, live
// messages wait in backlog until the history frame has been queued; seen holds
// the IDs that history already delivered.
type subscription struct {
	pending bool
	backlog []models.ChatMessage
	seen    map[uint]struct{}
}

type directFrame struct {
	client Client
	frame  Frame
}

// ManagerService is the chat hub. Only the Run goroutine touches the room
// tables; everything else talks to it through channels.
type ManagerService struct {
	clients map[Client]struct{}
	rooms   map[string]map[Client]*subscription

	RegisterCh   chan Client
	UnregisterCh chan Client
	joinCh       chan joinRequest
	historyCh    chan historyReady
	broadcastCh  chan models.ChatMessage
	directCh     chan directFrame
	stopped      chan struct{}

	store    ChatStore
	broker   Broker
	limiter  ratelimit.Limiter
	validate *validator.Validate
	log      *zap.Logger
}

// NewManagerService creates a hub. broker may be nil for a single instance.
func NewManagerService(store ChatStore, broker Broker, limiter ratelimit.Limiter, log *zap.Logger) *ManagerService {
	if limiter == nil {
		limiter = ratelimit.Unlimited
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ManagerService{
		clients:      make(map[Client]struct{}),
		rooms:        make(map[string]map[Client]*subscription),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		joinCh:       make(chan joinRequest),
		historyCh:    make(chan historyReady),
		broadcastCh:  make(chan models.ChatMessage, 256),
		directCh:     make(chan directFrame, 256),
		stopped:      make(chan struct{}),
		store:        store,
		broker:       broker,
		limiter:      limiter,
		validate:     validator.New(),
		log:          log,
	}
}

// Run processes hub events until ctx is done.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.stopped)
	defer m.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.RegisterCh:
			m.register(client)

		case client := <-m.UnregisterCh:
			m.unregister(client)

		case req := <-m.joinCh:
			m.register(req.client)
			subs, ok := m.rooms[req.room]
			if !ok {
				subs = make(map[Client]*subscription)
				m.rooms[req.room] = subs
			}
			subs[req.client] = &subscription{pending: req.hydrate}
			close(req.done)

		case h := <-m.historyCh:
			m.hydrate(h)

		case msg := <-m.broadcastCh:
			m.deliver(msg)

		case d := <-m.directCh:
			if _, ok := m.clients[d.client]; ok {
				m.send(d.client, d.frame)
			}
		}
	}
}

func (m *ManagerService) register(client Client) {
	if _, ok := m.clients[client]; ok {
		return
	}
	m.clients[client] = struct{}{}
	metrics.ChatConnections.Inc()
}

func (m *ManagerService) unregister(client Client) {
	if _, ok := m.clients[client]; !ok {
		return
	}
	delete(m.clients, client)
	for room, subs := range m.rooms {
		delete(subs, client)
		if len(subs) == 0 {
			delete(m.rooms, room)
		}
	}
	client.Close()
	metrics.ChatConnections.Dec()
}

func (m *ManagerService) closeAll() {
	for client := range m.clients {
		m.unregister(client)
	}
}

// send drops a client whose buffer is full.
func (m *ManagerService) send(client Client, frame Frame) {
	select {
	case client.GetSendChannel() <- frame:
	default:
		m.log.Warn("chat client too slow, disconnecting", zap.Uint("user_id", client.Identity().UserID))
		m.unregister(client)
	}
}

func (m *ManagerService) deliver(msg models.ChatMessage) {
	for client, sub := range m.rooms[msg.RoomName] {
		m.deliverTo(client, sub, msg)
	}
}

func (m *ManagerService) deliverTo(client Client, sub *subscription, msg models.ChatMessage) {
	if sub.pending {
		if len(sub.backlog) >= cap(client.GetSendChannel()) {
			m.log.Warn("chat client backlog full, disconnecting", zap.Uint("user_id", client.Identity().UserID))
			m.unregister(client)
			return
		}
		sub.backlog = append(sub.backlog, msg)
		return
	}
	if _, dup := sub.seen[msg.ID]; dup {
		delete(sub.seen, msg.ID)
		return
	}
	m.send(client, Frame{Type: FrameReceiveMessage, Room: msg.RoomName, Payload: &msg})
}

// hydrate queues the history frame of a pending subscription, then releases
// the live messages that arrived meanwhile, skipping those already in history.
func (m *ManagerService) hydrate(h historyReady) {
	sub, ok := m.rooms[h.room][h.client]
	if !ok || !sub.pending {
		return
	}
	if h.loaded {
		sub.seen = make(map[uint]struct{}, len(h.messages))
		for _, msg := range h.messages {
			if msg.ID != 0 {
				sub.seen[msg.ID] = struct{}{}
			}
		}
		m.send(h.client, Frame{Type: FrameChatHistory, Room: h.room, Messages: h.messages})
		if _, alive := m.clients[h.client]; !alive {
			return
		}
	}

	backlog := sub.backlog
	sub.pending, sub.backlog = false, nil
	for _, msg := range backlog {
		m.deliverTo(h.client, sub, msg)
		if _, alive := m.clients[h.client]; !alive {
			return
		}
	}
}

// JoinRoom subscribes client to room. Rooms are created lazily.
func (m *ManagerService) JoinRoom(client Client, room string) error {
	return m.join(client, room, false)
}

// JoinWithHistory subscribes client to room and queues a chat_history frame
// ahead of any live message. A message that is both in the history and
// broadcast during the join reaches the client once.
func (m *ManagerService) JoinWithHistory(ctx context.Context, client Client, room string) error {
	if err := m.join(client, room, true); err != nil {
		return err
	}
	history, err := m.store.ChatHistory(ctx, room)
	if err != nil {
		m.log.Error("failed to load chat history", zap.String("room", room), zap.Error(err))
	}
	select {
	case m.historyCh <- historyReady{client: client, room: room, messages: history, loaded: err == nil}:
	case <-m.stopped:
	}
	return nil
}

func (m *ManagerService) join(client Client, room string, hydrate bool) error {
	if !strings.HasPrefix(room, config.ChatRoomPrefix) {
		return apperr.Validation("invalid_room", "room must start with "+config.ChatRoomPrefix)
	}
	if !CanJoin(client.Identity(), room) {
		return apperr.Forbidden("room_forbidden", "not allowed to join this room")
	}

	req := joinRequest{client: client, room: room, hydrate: hydrate, done: make(chan struct{})}
	select {
	case m.joinCh <- req:
	case <-m.stopped:
		return apperr.Storage("join room", errHubStopped)
	}
	select {
	case <-req.done:
	case <-m.stopped:
	}
	return nil
}

// SendMessage persists a message and broadcasts it to the room. Messages over
// the sender's quota and messages that fail to persist are dropped without an
// error; only malformed or unauthorized sends are reported.
func (m *ManagerService) SendMessage(ctx context.Context, room string, sender Identity, text string) error {
	if !strings.HasPrefix(room, config.ChatRoomPrefix) {
		return apperr.Validation("invalid_room", "room must start with "+config.ChatRoomPrefix)
	}
	if strings.TrimSpace(text) == "" || len(text) > config.ChatMaxMessageBytes {
		return apperr.Validation("invalid_message", "message must be 1-"+strconv.Itoa(config.ChatMaxMessageBytes)+" bytes")
	}
	if !CanJoin(sender, room) {
		return apperr.Forbidden("room_forbidden", "not allowed to post in this room")
	}

	res, err := m.limiter.Allow(ctx, ratelimit.ChatKey(strconv.FormatUint(uint64(sender.UserID), 10), room))
	if err != nil {
		m.log.Warn("chat limiter unavailable, admitting message", zap.Error(err))
	} else if !res.Allowed {
		metrics.ChatMessages.WithLabelValues("dropped").Inc()
		return nil
	}

	msg := &models.ChatMessage{
		RoomName:   room,
		SenderID:   sender.UserID,
		SenderName: sender.Name,
		SenderRole: sender.Role,
		Message:    text,
	}
	if err := m.store.SaveChatMessage(ctx, msg); err != nil {
		metrics.ChatMessages.WithLabelValues("failed").Inc()
		m.log.Error("failed to persist chat message", zap.String("room", room), zap.Error(err))
		return nil
	}
	metrics.ChatMessages.WithLabelValues("delivered").Inc()

	if m.broker != nil {
		err := m.broker.PublishChat(ctx, msg)
		if err == nil {
			return nil
		}
		m.log.Warn("failed to publish chat message, delivering locally", zap.String("room", room), zap.Error(err))
	}
	m.Broadcast(*msg)
	return nil
}

// Register adds client to the hub so it can receive direct frames before joining a room.
func (m *ManagerService) Register(client Client) {
	select {
	case m.RegisterCh <- client:
	case <-m.stopped:
	}
}

// Unregister removes client from every room and closes it.
func (m *ManagerService) Unregister(client Client) {
	select {
	case m.UnregisterCh <- client:
	case <-m.stopped:
	}
}

// Broadcast delivers an already persisted message to local subscribers.
func (m *ManagerService) Broadcast(msg models.ChatMessage) {
	select {
	case m.broadcastCh <- msg:
	case <-m.stopped:
	}
}

// SendTo queues a frame for one client.
func (m *ManagerService) SendTo(client Client, frame Frame) {
	select {
	case m.directCh <- directFrame{client: client, frame: frame}:
	case <-m.stopped:
	}
}

// History returns the room's messages in persisted order.
func (m *ManagerService) History(ctx context.Context, room string) ([]models.ChatMessage, error) {
	return m.store.ChatHistory(ctx, room)
}

// ActiveRooms returns rooms with messages, most recent activity first.
func (m *ManagerService) ActiveRooms(ctx context.Context) ([]models.ActiveRoom, error) {
	return m.store.ActiveRooms(ctx)
}

// ValidateFrame checks a decoded client frame.
func (m *ManagerService) ValidateFrame(f *InboundFrame) error {
	if err := m.validate.Struct(f); err != nil {
		return apperr.Validation("invalid_frame", err.Error())
	}
	return nil
}
