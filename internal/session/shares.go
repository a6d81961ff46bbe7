package session

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/taskhub/internal/platform/errors"
	"github.com/louisbranch/taskhub/internal/storage"
	"github.com/louisbranch/taskhub/internal/task/share"
)

// ShareTaskInput describes a share offer for one of the user's tasks.
type ShareTaskInput struct {
	TaskID      string
	TargetEmail string
	Permission  share.Permission
	Message     string
}

// CreateShareRequest offers one of the session user's tasks to another
// account by email. The target must already have an account.
func (s *Session) CreateShareRequest(ctx context.Context, input ShareTaskInput) (share.Request, error) {
	if err := s.guard(); err != nil {
		return share.Request{}, err
	}
	user := s.User()

	current, err := s.lookupTask(ctx, input.TaskID)
	if err != nil {
		return share.Request{}, err
	}

	request, err := share.Create(share.CreateInput{
		Task:        current,
		OwnerID:     user.ID,
		TargetEmail: input.TargetEmail,
		Permission:  input.Permission,
		Message:     input.Message,
	}, s.now, s.newID)
	if err != nil {
		return share.Request{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, request.TargetEmail); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return share.Request{}, apperrors.WithMetadata(
				apperrors.CodeShareTargetUnknown,
				"no account for share target",
				map[string]string{"Email": request.TargetEmail},
			)
		}
		return share.Request{}, s.storeErr("resolve share target", err)
	}

	if err := s.store.CreateShareRequest(ctx, request); err != nil {
		return share.Request{}, s.storeErr("create share request", err)
	}
	return request, nil
}

// RespondToShareRequest applies the session user's decision to a pending
// request addressed to them. Acceptance grants access atomically; the shared
// task then arrives through the live feed as a single transition.
func (s *Session) RespondToShareRequest(ctx context.Context, requestID string, decision share.Decision) (share.Request, error) {
	if err := s.guard(); err != nil {
		return share.Request{}, err
	}
	user := s.User()

	request, err := s.store.GetShareRequest(ctx, requestID)
	if err != nil {
		return share.Request{}, s.storeErr("get share request", err)
	}
	if !strings.EqualFold(request.TargetEmail, user.Email) {
		return share.Request{}, apperrors.New(
			apperrors.CodeShareNotTarget,
			"share request addressed to another account",
		)
	}

	responded, err := share.Respond(request, decision, user.ID, s.now)
	if err != nil {
		return share.Request{}, err
	}
	if err := s.store.ApplyShareResponse(ctx, storage.ShareResponse{
		RequestID:   responded.ID,
		Status:      responded.Status,
		TargetID:    responded.TargetID,
		RespondedAt: *responded.RespondedAt,
	}); err != nil {
		return share.Request{}, s.storeErr("apply share response", err)
	}

	if err := s.reloadPending(ctx); err != nil {
		return share.Request{}, err
	}
	return responded, nil
}

// PendingRequests returns the pending share requests addressed to the user.
func (s *Session) PendingRequests() []share.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]share.Request(nil), s.pending...)
}

// RefreshPendingRequests reloads the pending share request list from storage.
func (s *Session) RefreshPendingRequests(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.reloadPending(ctx)
}

func (s *Session) reloadPending(ctx context.Context) error {
	pending, err := s.store.ListPendingRequests(ctx, s.User().Email)
	if err != nil {
		return s.storeErr("list pending share requests", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = pending
	s.publishLocked()
	return nil
}
