// Package calls owns the call lifecycle: a lightweight record for history plus
// the incoming_call / call_response dispatches. Signaling bodies never pass
// through here.
package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/widechat/widechat/internal/events"
	"github.com/widechat/widechat/internal/protocol"
	"github.com/widechat/widechat/internal/store"
)

var (
	ErrUnknownCallType = errors.New("unknown call type")
	ErrUnknownAction   = errors.New("unknown call action")
	ErrNotParticipant  = errors.New("user is not a participant of this call")
)

type Service struct {
	store  store.Store
	router *events.Router
	log    zerolog.Logger
}

func NewService(st store.Store, router *events.Router, log zerolog.Logger) *Service {
	return &Service{store: st, router: router, log: log}
}

// Initiate creates a ringing call record and pushes incoming_call to the
// callee. The returned bool reports whether the callee had a live session;
// an offline callee still gets the record for call history.
func (s *Service) Initiate(ctx context.Context, callerID, receiverID, callType string) (store.CallRecord, bool, error) {
	if callType != "voice" && callType != "video" {
		return store.CallRecord{}, false, ErrUnknownCallType
	}

	record := store.CallRecord{
		ID:         uuid.NewString(),
		CallerID:   callerID,
		ReceiverID: receiverID,
		CallType:   callType,
		Status:     store.CallRinging,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateCall(ctx, record); err != nil {
		return store.CallRecord{}, false, fmt.Errorf("persist call: %w", err)
	}

	callerName := callerID
	if caller, err := s.store.UserByID(ctx, callerID); err == nil {
		callerName = caller.Username
	}

	delivered := s.router.Emit(receiverID, protocol.IncomingCall{
		Type:       protocol.TypeIncomingCall,
		CallID:     record.ID,
		CallerID:   callerID,
		CallerName: callerName,
		ReceiverID: receiverID,
		CallType:   callType,
		Status:     string(store.CallRinging),
		Timestamp:  record.StartedAt,
	})
	if !delivered {
		s.log.Debug().Str("call_id", record.ID).Str("receiver_id", receiverID).Msg("callee offline, invite not delivered")
	}
	return record, delivered, nil
}

// Respond applies accept/reject/end to the call record and notifies the other
// party. Either participant may respond; ending is symmetric.
func (s *Service) Respond(ctx context.Context, userID, callID, action string) (store.CallRecord, error) {
	record, err := s.store.CallByID(ctx, callID)
	if err != nil {
		return store.CallRecord{}, err
	}
	if userID != record.CallerID && userID != record.ReceiverID {
		return store.CallRecord{}, ErrNotParticipant
	}

	var status store.CallStatus
	var endedAt time.Time
	switch action {
	case "accept":
		status = store.CallAccepted
	case "reject":
		status = store.CallRejected
		endedAt = time.Now().UTC()
	case "end":
		status = store.CallEnded
		endedAt = time.Now().UTC()
	default:
		return store.CallRecord{}, ErrUnknownAction
	}

	if err := s.store.UpdateCallStatus(ctx, callID, status, endedAt); err != nil {
		return store.CallRecord{}, fmt.Errorf("update call: %w", err)
	}
	record.Status = status
	record.EndedAt = endedAt

	other := record.CallerID
	if userID == record.CallerID {
		other = record.ReceiverID
	}
	s.router.Emit(other, protocol.CallResponse{
		Type:   protocol.TypeCallResponse,
		CallID: callID,
		Action: action,
	})
	return record, nil
}
