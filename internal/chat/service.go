// Package chat implements messaging on top of the document store and the
// event router: direct and group messages, edits and deletes, read receipts,
// groups, chat requests and expiring status posts. Push delivery is always
// best effort; the store is the source of truth.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/widechat/widechat/internal/events"
	"github.com/widechat/widechat/internal/protocol"
	"github.com/widechat/widechat/internal/store"
)

const statusTTL = 24 * time.Hour

var (
	ErrNotSender      = errors.New("only the sender may modify a message")
	ErrNotAdmin       = errors.New("only the group admin may do that")
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrBadAction      = errors.New("unknown action")
	ErrMessageDeleted = errors.New("message was deleted")
	ErrNoRecipients   = errors.New("recipient list is empty")
)

type Service struct {
	store  store.Store
	router *events.Router
	log    zerolog.Logger
}

func NewService(st store.Store, router *events.Router, log zerolog.Logger) *Service {
	return &Service{store: st, router: router, log: log}
}

// DirectChatID derives the canonical chat id for a pair of users. Both
// parties compute the same id regardless of who messages first.
func DirectChatID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

type SendInput struct {
	ReceiverID  string `json:"receiver_id,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
	Text        string `json:"text"`
	MessageType string `json:"message_type,omitempty"`
	FileURL     string `json:"file_url,omitempty"`
}

// Send persists a direct or group message and pushes new_message to every
// recipient with a live session. Exactly one of ReceiverID and GroupID must
// be set.
func (s *Service) Send(ctx context.Context, senderID string, in SendInput) (store.Message, error) {
	if strings.TrimSpace(in.Text) == "" && in.FileURL == "" {
		return store.Message{}, ErrEmptyMessage
	}
	if (in.ReceiverID == "") == (in.GroupID == "") {
		return store.Message{}, errors.New("exactly one of receiver_id and group_id is required")
	}
	if in.MessageType == "" {
		in.MessageType = "text"
	}

	msg := store.Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		Text:        in.Text,
		MessageType: in.MessageType,
		FileURL:     in.FileURL,
		ReadBy:      []string{senderID},
		Timestamp:   time.Now().UTC(),
	}

	var recipients []string
	if in.GroupID != "" {
		group, err := s.store.GroupByID(ctx, in.GroupID)
		if err != nil {
			return store.Message{}, err
		}
		msg.GroupID = group.ID
		msg.ChatID = "group_" + group.ID
		if err := s.store.EnsureChat(ctx, store.Chat{
			ID:           msg.ChatID,
			Participants: group.Members,
			CreatedAt:    msg.Timestamp,
		}); err != nil {
			return store.Message{}, fmt.Errorf("ensure chat: %w", err)
		}
		for _, member := range group.Members {
			if member != senderID {
				recipients = append(recipients, member)
			}
		}
	} else {
		msg.ReceiverID = in.ReceiverID
		msg.ChatID = DirectChatID(senderID, in.ReceiverID)
		if err := s.store.EnsureChat(ctx, store.Chat{
			ID:           msg.ChatID,
			Participants: []string{senderID, in.ReceiverID},
			CreatedAt:    msg.Timestamp,
		}); err != nil {
			return store.Message{}, fmt.Errorf("ensure chat: %w", err)
		}
		recipients = []string{in.ReceiverID}
	}

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return store.Message{}, fmt.Errorf("persist message: %w", err)
	}
	preview := msg.Text
	if preview == "" {
		preview = msg.MessageType
	}
	if err := s.store.TouchChat(ctx, msg.ChatID, preview, msg.Timestamp); err != nil {
		s.log.Warn().Err(err).Str("chat_id", msg.ChatID).Msg("chat preview update failed")
	}

	event := protocol.NewMessage{
		Type:        protocol.TypeNewMessage,
		MessageID:   msg.ID,
		ChatID:      msg.ChatID,
		GroupID:     msg.GroupID,
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		Text:        msg.Text,
		MessageType: msg.MessageType,
		FileURL:     msg.FileURL,
		Timestamp:   msg.Timestamp,
	}
	for _, userID := range recipients {
		s.router.Emit(userID, event)
	}
	return msg, nil
}

type ForwardInput struct {
	ReceiverID string `json:"receiver_id,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
}

// Forward re-sends an existing message to a new receiver or group. The copy
// is a fresh message attributed to the forwarding user; the original is left
// untouched. Tombstoned messages cannot be forwarded.
func (s *Service) Forward(ctx context.Context, userID, messageID string, in ForwardInput) (store.Message, error) {
	original, err := s.store.MessageByID(ctx, messageID)
	if err != nil {
		return store.Message{}, err
	}
	if original.IsDeleted {
		return store.Message{}, ErrMessageDeleted
	}
	return s.Send(ctx, userID, SendInput{
		ReceiverID:  in.ReceiverID,
		GroupID:     in.GroupID,
		Text:        original.Text,
		MessageType: original.MessageType,
		FileURL:     original.FileURL,
	})
}

type BroadcastInput struct {
	ReceiverIDs []string `json:"receiver_ids"`
	Text        string   `json:"text"`
	MessageType string   `json:"message_type,omitempty"`
	FileURL     string   `json:"file_url,omitempty"`
}

// Broadcast sends the same body to every listed receiver as an independent
// direct message: one chat doc and one new_message per recipient. A failure
// on one recipient does not roll back the others; the error reports the
// first failure alongside the messages already sent.
func (s *Service) Broadcast(ctx context.Context, senderID string, in BroadcastInput) ([]store.Message, error) {
	if len(in.ReceiverIDs) == 0 {
		return nil, ErrNoRecipients
	}
	sent := make([]store.Message, 0, len(in.ReceiverIDs))
	seen := make(map[string]bool, len(in.ReceiverIDs))
	for _, receiverID := range in.ReceiverIDs {
		if receiverID == "" || receiverID == senderID || seen[receiverID] {
			continue
		}
		seen[receiverID] = true
		msg, err := s.Send(ctx, senderID, SendInput{
			ReceiverID:  receiverID,
			Text:        in.Text,
			MessageType: in.MessageType,
			FileURL:     in.FileURL,
		})
		if err != nil {
			return sent, fmt.Errorf("broadcast to %s: %w", receiverID, err)
		}
		sent = append(sent, msg)
	}
	if len(sent) == 0 {
		return nil, ErrNoRecipients
	}
	return sent, nil
}

// Edit replaces the message text. Only the original sender may edit.
func (s *Service) Edit(ctx context.Context, userID, messageID, newText string) (store.Message, error) {
	if strings.TrimSpace(newText) == "" {
		return store.Message{}, ErrEmptyMessage
	}
	msg, err := s.store.MessageByID(ctx, messageID)
	if err != nil {
		return store.Message{}, err
	}
	if msg.SenderID != userID {
		return store.Message{}, ErrNotSender
	}
	now := time.Now().UTC()
	if err := s.store.EditMessage(ctx, messageID, newText, now); err != nil {
		return store.Message{}, fmt.Errorf("edit message: %w", err)
	}
	msg.Text = newText
	msg.IsEdited = true
	msg.EditedAt = now
	return msg, nil
}

// Delete removes a message either for everyone (tombstone, sender only) or
// just for the calling user (hidden, any participant).
func (s *Service) Delete(ctx context.Context, userID, messageID string, forEveryone bool) error {
	msg, err := s.store.MessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if forEveryone {
		if msg.SenderID != userID {
			return ErrNotSender
		}
		return s.store.DeleteMessageForEveryone(ctx, messageID)
	}
	return s.store.HideMessageFor(ctx, messageID, userID)
}

// MarkRead records a read receipt. Re-reading is a no-op.
func (s *Service) MarkRead(ctx context.Context, userID, messageID string) error {
	return s.store.MarkMessageRead(ctx, messageID, userID)
}

type GroupInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	GroupIcon   string   `json:"group_icon,omitempty"`
	Members     []string `json:"members"`
}

// CreateGroup makes the creator admin, adds them to the member list and
// announces group_created to every other member.
func (s *Service) CreateGroup(ctx context.Context, creatorID string, in GroupInput) (store.Group, error) {
	if strings.TrimSpace(in.Name) == "" {
		return store.Group{}, errors.New("group name is required")
	}
	members := []string{creatorID}
	for _, m := range in.Members {
		if m != creatorID {
			members = append(members, m)
		}
	}
	group := store.Group{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		GroupIcon:   in.GroupIcon,
		AdminID:     creatorID,
		Members:     members,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return store.Group{}, fmt.Errorf("persist group: %w", err)
	}
	event := protocol.GroupCreated{
		Type:      protocol.TypeGroupCreated,
		GroupID:   group.ID,
		Name:      group.Name,
		CreatorID: creatorID,
	}
	for _, member := range group.Members {
		if member != creatorID {
			s.router.Emit(member, event)
		}
	}
	return group, nil
}

// AddMember adds a user to a group. Admin only.
func (s *Service) AddMember(ctx context.Context, callerID, groupID, userID string) error {
	group, err := s.store.GroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group.AdminID != callerID {
		return ErrNotAdmin
	}
	return s.store.AddGroupMember(ctx, groupID, userID)
}

// RequestChat files a pending chat request and pings the receiver.
func (s *Service) RequestChat(ctx context.Context, senderID, receiverID, message string) (store.ChatRequest, error) {
	req := store.ChatRequest{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    message,
		Status:     "pending",
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateChatRequest(ctx, req); err != nil {
		return store.ChatRequest{}, fmt.Errorf("persist chat request: %w", err)
	}
	senderName := senderID
	if sender, err := s.store.UserByID(ctx, senderID); err == nil {
		senderName = sender.Username
	}
	s.router.Emit(receiverID, protocol.ChatRequest{
		Type:       protocol.TypeChatRequest,
		RequestID:  req.ID,
		SenderID:   senderID,
		SenderName: senderName,
		Message:    message,
	})
	return req, nil
}

// RespondChatRequest accepts or rejects a pending request. Accepting creates
// the direct chat so either side can message immediately.
func (s *Service) RespondChatRequest(ctx context.Context, userID, requestID, action string) error {
	if action != "accepted" && action != "rejected" {
		return ErrBadAction
	}
	req, err := s.store.ChatRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ReceiverID != userID {
		return errors.New("only the receiver may respond to a chat request")
	}
	if err := s.store.UpdateChatRequestStatus(ctx, requestID, action); err != nil {
		return fmt.Errorf("update chat request: %w", err)
	}
	if action == "accepted" {
		if err := s.store.EnsureChat(ctx, store.Chat{
			ID:           DirectChatID(req.SenderID, req.ReceiverID),
			Participants: []string{req.SenderID, req.ReceiverID},
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			s.log.Warn().Err(err).Str("request_id", requestID).Msg("chat creation after accept failed")
		}
	}
	s.router.Emit(req.SenderID, protocol.ChatRequestResponse{
		Type:      protocol.TypeChatRequestResponse,
		RequestID: requestID,
		Action:    action,
	})
	return nil
}

type StatusInput struct {
	Content   string `json:"content"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// PostStatus publishes a status post that expires after 24 hours.
func (s *Service) PostStatus(ctx context.Context, userID string, in StatusInput) (store.StatusPost, error) {
	if strings.TrimSpace(in.Content) == "" && in.MediaURL == "" {
		return store.StatusPost{}, errors.New("status content is empty")
	}
	if in.MediaType == "" {
		in.MediaType = "text"
	}
	now := time.Now().UTC()
	post := store.StatusPost{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   in.Content,
		MediaURL:  in.MediaURL,
		MediaType: in.MediaType,
		Timestamp: now,
		ExpiresAt: now.Add(statusTTL),
	}
	if err := s.store.SaveStatusPost(ctx, post); err != nil {
		return store.StatusPost{}, fmt.Errorf("persist status: %w", err)
	}
	return post, nil
}

// StatusesOf returns a user's unexpired status posts.
func (s *Service) StatusesOf(ctx context.Context, userID string) ([]store.StatusPost, error) {
	return s.store.ActiveStatusPosts(ctx, userID, time.Now().UTC())
}
