package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

const (
	messageIDPrefix  = "msg_"
	messageEventSent = "message.sent"

	maxMessageLength = 4000
)

// MessageEventPublisher notifies downstream consumers about new messages.
type MessageEventPublisher interface {
	PublishMessageEvent(ctx context.Context, event MessageEvent) error
}

// MessageEvent describes a delivered message without its content.
type MessageEvent struct {
	Type       string
	MessageID  string
	SenderID   string
	ReceiverID string
	OccurredAt time.Time
}

// MessageServiceDeps bundles collaborators required to construct a MessageService.
type MessageServiceDeps struct {
	Messages    repositories.MessageRepository
	Clock       func() time.Time
	IDGenerator func() string
	Sanitizer   func(string) string
	Events      MessageEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type messageService struct {
	messages repositories.MessageRepository
	clock    func() time.Time
	newID    func() string
	sanitize func(string) string
	events   MessageEventPublisher
	logger   serviceLogger
}

// NewMessageService wires dependencies into a concrete MessageService implementation.
func NewMessageService(deps MessageServiceDeps) (MessageService, error) {
	if deps.Messages == nil {
		return nil, errors.New("message service: message repository is required")
	}
	sanitize := deps.Sanitizer
	if sanitize == nil {
		sanitize = newReviewSanitizer()
	}
	return &messageService{
		messages: deps.Messages,
		clock:    defaultClock(deps.Clock),
		newID:    defaultIDGenerator(deps.IDGenerator),
		sanitize: sanitize,
		events:   deps.Events,
		logger:   defaultLogger(deps.Logger),
	}, nil
}

func (s *messageService) SendMessage(ctx context.Context, cmd SendMessageCommand) (Message, error) {
	senderID, err := requireUser(cmd.Actor)
	if err != nil {
		return Message{}, err
	}
	receiverID, err := requireID(cmd.ReceiverID, "receiver id")
	if err != nil {
		return Message{}, err
	}
	if receiverID == senderID {
		return Message{}, ErrSelfMessage
	}
	content := s.sanitize(cmd.Content)
	if content == "" || utf8.RuneCountInString(content) > maxMessageLength {
		return Message{}, fmt.Errorf("%w: content is required and must be at most %d characters", ErrValidation, maxMessageLength)
	}

	msg := Message{
		ID:         messageIDPrefix + s.newID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		SentAt:     s.clock(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return Message{}, mapRepositoryError(err, ErrNotFound)
	}

	if s.events != nil {
		event := MessageEvent{
			Type:       messageEventSent,
			MessageID:  msg.ID,
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			OccurredAt: msg.SentAt,
		}
		if err := s.events.PublishMessageEvent(ctx, event); err != nil {
			s.logger(ctx, "message.event.publish.failed", map[string]any{
				"message": msg.ID,
				"error":   err.Error(),
			})
		}
	}
	return msg, nil
}

func (s *messageService) GetMessage(ctx context.Context, actor Actor, messageID string) (Message, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return Message{}, err
	}
	return s.participantMessage(ctx, userID, messageID)
}

func (s *messageService) ListMessages(ctx context.Context, actor Actor, filter MessageListFilter) (domain.CursorPage[Message], error) {
	userID, err := requireUser(actor)
	if err != nil {
		return domain.CursorPage[Message]{}, err
	}
	page, err := s.messages.List(ctx, repositories.MessageListFilter{
		ParticipantID: userID,
		SenderID:      strings.TrimSpace(filter.SenderID),
		ReceiverID:    strings.TrimSpace(filter.ReceiverID),
		IsRead:        filter.IsRead,
		Pagination:    filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Message]{}, mapRepositoryError(err, ErrNotFound)
	}
	return page, nil
}

// MarkRead lets the receiver flag a message as read. Already read messages are returned as is.
func (s *messageService) MarkRead(ctx context.Context, actor Actor, messageID string) (Message, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return Message{}, err
	}
	msg, err := s.participantMessage(ctx, userID, messageID)
	if err != nil {
		return Message{}, err
	}
	if msg.ReceiverID != userID {
		return Message{}, ErrNotReceiver
	}
	if msg.IsRead {
		return msg, nil
	}
	msg, err = s.messages.MarkRead(ctx, msg.ID)
	if err != nil {
		return Message{}, mapRepositoryError(err, fmt.Errorf("%w: message %s", ErrNotFound, messageID))
	}
	return msg, nil
}

func (s *messageService) DeleteMessage(ctx context.Context, actor Actor, messageID string) error {
	userID, err := requireUser(actor)
	if err != nil {
		return err
	}
	msg, err := s.participantMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if err := s.messages.Delete(ctx, msg.ID); err != nil {
		return mapRepositoryError(err, fmt.Errorf("%w: message %s", ErrNotFound, msg.ID))
	}
	return nil
}

// participantMessage loads a message the user sent or received. Other messages are reported
// as missing so their existence does not leak.
func (s *messageService) participantMessage(ctx context.Context, userID, messageID string) (Message, error) {
	messageID, err := requireID(messageID, "message id")
	if err != nil {
		return Message{}, err
	}
	notFound := fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return Message{}, mapRepositoryError(err, notFound)
	}
	if msg.SenderID != userID && msg.ReceiverID != userID {
		return Message{}, notFound
	}
	return msg, nil
}
