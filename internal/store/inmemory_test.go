package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryUserLifecycle(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	u := User{ID: "u1", Username: "alice", Email: "alice@example.com", CreatedAt: time.Now()}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := s.CreateUser(ctx, User{ID: "u2", Email: "alice@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email error = %v, want ErrDuplicate", err)
	}

	got, err := s.UserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("UserByEmail() error = %v", err)
	}
	if got.ID != "u1" {
		t.Fatalf("UserByEmail() id = %q, want u1", got.ID)
	}

	newAbout := "hello"
	if err := s.UpdateProfile(ctx, "u1", ProfileUpdate{About: &newAbout}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	got, _ = s.UserByID(ctx, "u1")
	if got.About != "hello" {
		t.Fatalf("About = %q, want hello", got.About)
	}
	if got.Username != "alice" {
		t.Fatalf("partial update must not clear username, got %q", got.Username)
	}
}

func TestInMemorySearchUsersExcludesCaller(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.CreateUser(ctx, User{ID: "u1", Username: "alice", Email: "a@x"})
	_ = s.CreateUser(ctx, User{ID: "u2", Username: "alan", Email: "b@x"})
	_ = s.CreateUser(ctx, User{ID: "u3", Username: "bob", Email: "c@x"})

	got, err := s.SearchUsers(ctx, "al", "u1", 10)
	if err != nil {
		t.Fatalf("SearchUsers() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "u2" {
		t.Fatalf("SearchUsers() = %+v, want only u2", got)
	}
}

func TestInMemoryMessageReadAndHide(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	m := Message{ID: "m1", ChatID: "a_b", SenderID: "a", ReceiverID: "b", Text: "hi", ReadBy: []string{"a"}, Timestamp: time.Now()}
	if err := s.SaveMessage(ctx, m); err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}

	if err := s.MarkMessageRead(ctx, "m1", "b"); err != nil {
		t.Fatalf("MarkMessageRead() error = %v", err)
	}
	if err := s.MarkMessageRead(ctx, "m1", "b"); err != nil {
		t.Fatalf("MarkMessageRead() repeat error = %v", err)
	}

	got, _ := s.MessageByID(ctx, "m1")
	if len(got.ReadBy) != 2 {
		t.Fatalf("ReadBy = %v, want [a b]", got.ReadBy)
	}

	if err := s.HideMessageFor(ctx, "m1", "a"); err != nil {
		t.Fatalf("HideMessageFor() error = %v", err)
	}
	got, _ = s.MessageByID(ctx, "m1")
	if len(got.HiddenFor) != 1 || got.HiddenFor[0] != "a" {
		t.Fatalf("HiddenFor = %v, want [a]", got.HiddenFor)
	}
}

func TestInMemoryDeleteForEveryoneTombstones(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.SaveMessage(ctx, Message{ID: "m1", Text: "secret"})

	if err := s.DeleteMessageForEveryone(ctx, "m1"); err != nil {
		t.Fatalf("DeleteMessageForEveryone() error = %v", err)
	}
	got, _ := s.MessageByID(ctx, "m1")
	if !got.IsDeleted || got.Text != MessageDeletedText {
		t.Fatalf("message should be tombstoned, got %+v", got)
	}
}

func TestInMemoryCallStatusTransitions(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	c := CallRecord{ID: "c1", CallerID: "a", ReceiverID: "b", CallType: "video", Status: CallRinging, StartedAt: time.Now()}
	if err := s.CreateCall(ctx, c); err != nil {
		t.Fatalf("CreateCall() error = %v", err)
	}

	if err := s.UpdateCallStatus(ctx, "c1", CallAccepted, time.Time{}); err != nil {
		t.Fatalf("UpdateCallStatus() error = %v", err)
	}
	got, _ := s.CallByID(ctx, "c1")
	if got.Status != CallAccepted {
		t.Fatalf("Status = %q, want accepted", got.Status)
	}
	if !got.EndedAt.IsZero() {
		t.Fatalf("EndedAt should stay zero until the call ends")
	}

	end := time.Now()
	if err := s.UpdateCallStatus(ctx, "c1", CallEnded, end); err != nil {
		t.Fatalf("UpdateCallStatus() error = %v", err)
	}
	got, _ = s.CallByID(ctx, "c1")
	if got.Status != CallEnded || got.EndedAt.IsZero() {
		t.Fatalf("call should be ended with a timestamp, got %+v", got)
	}
}

func TestInMemoryActiveStatusPostsFilterExpired(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_ = s.SaveStatusPost(ctx, StatusPost{ID: "s1", UserID: "u1", Timestamp: now.Add(-25 * time.Hour), ExpiresAt: now.Add(-time.Hour)})
	_ = s.SaveStatusPost(ctx, StatusPost{ID: "s2", UserID: "u1", Timestamp: now, ExpiresAt: now.Add(23 * time.Hour)})

	got, err := s.ActiveStatusPosts(ctx, "u1", now)
	if err != nil {
		t.Fatalf("ActiveStatusPosts() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "s2" {
		t.Fatalf("ActiveStatusPosts() = %+v, want only s2", got)
	}
}

func TestInMemoryGroupMembership(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	g := Group{ID: "g1", Name: "team", AdminID: "a", Members: []string{"a", "b"}}
	if err := s.CreateGroup(ctx, g); err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if err := s.AddGroupMember(ctx, "g1", "c"); err != nil {
		t.Fatalf("AddGroupMember() error = %v", err)
	}
	if err := s.AddGroupMember(ctx, "g1", "c"); err != nil {
		t.Fatalf("AddGroupMember() repeat error = %v", err)
	}
	got, _ := s.GroupByID(ctx, "g1")
	if len(got.Members) != 3 {
		t.Fatalf("Members = %v, want 3 entries", got.Members)
	}
	if err := s.AddGroupMember(ctx, "missing", "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AddGroupMember() on missing group error = %v, want ErrNotFound", err)
	}
}
