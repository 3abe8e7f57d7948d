package db

import (
	"errors"
	"testing"

	"ai-copilot-go/internal/models"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestCreateConversation(t *testing.T) {
	database := testDB(t)

	conv, err := database.CreateConversation("first chat")
	if err != nil {
		t.Fatal(err)
	}
	if conv.ID <= 0 {
		t.Errorf("expected positive id, got %d", conv.ID)
	}
	if conv.CreatedAt.IsZero() {
		t.Error("expected created_at to be assigned")
	}

	got, err := database.GetConversation(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "first chat" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if !got.CreatedAt.Equal(conv.CreatedAt) {
		t.Errorf("created_at mismatch: %v vs %v", got.CreatedAt, conv.CreatedAt)
	}
}

func TestCreateConversation_UntitledStoresEmpty(t *testing.T) {
	database := testDB(t)

	conv, err := database.CreateConversation("")
	if err != nil {
		t.Fatal(err)
	}
	got, err := database.GetConversation(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "" {
		t.Errorf("expected empty title, got %q", got.Title)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	database := testDB(t)

	if _, err := database.GetConversation(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListConversations_DescendingOrder(t *testing.T) {
	database := testDB(t)

	var ids []int64
	for _, title := range []string{"a", "b", "c"} {
		conv, err := database.CreateConversation(title)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, conv.ID)
	}

	conversations, err := database.ListConversations()
	if err != nil {
		t.Fatal(err)
	}
	if len(conversations) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(conversations))
	}
	// Same-second timestamps fall back to id order, newest first.
	for i, want := range []int64{ids[2], ids[1], ids[0]} {
		if conversations[i].ID != want {
			t.Errorf("position %d: expected id %d, got %d", i, want, conversations[i].ID)
		}
	}
}

func TestAppendMessage_RoundTrip(t *testing.T) {
	database := testDB(t)

	conv, err := database.CreateConversation("chat")
	if err != nil {
		t.Fatal(err)
	}

	userMsg, err := database.AppendMessage(conv.ID, models.RoleUser, "Hello there")
	if err != nil {
		t.Fatal(err)
	}
	asstMsg, err := database.AppendMessage(conv.ID, models.RoleAssistant, "Hi!")
	if err != nil {
		t.Fatal(err)
	}

	messages, err := database.GetMessages(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}

	for i, want := range []*models.Message{userMsg, asstMsg} {
		got := messages[i]
		if got.ID != want.ID || got.ConvID != want.ConvID || got.Role != want.Role || got.Content != want.Content {
			t.Errorf("message %d mismatch: got %+v, want %+v", i, got, *want)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("message %d created_at mismatch: %v vs %v", i, got.CreatedAt, want.CreatedAt)
		}
	}
}

func TestAppendMessage_OrderedAscending(t *testing.T) {
	database := testDB(t)

	conv, err := database.CreateConversation("chat")
	if err != nil {
		t.Fatal(err)
	}

	contents := []string{"one", "two", "three", "four"}
	for i, content := range contents {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		if _, err := database.AppendMessage(conv.ID, role, content); err != nil {
			t.Fatal(err)
		}
	}

	messages, err := database.GetMessages(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(messages))
	}
	for i, content := range contents {
		if messages[i].Content != content {
			t.Errorf("position %d: expected %q, got %q", i, content, messages[i].Content)
		}
	}
}

func TestAppendMessage_UnknownConversation(t *testing.T) {
	database := testDB(t)

	if _, err := database.AppendMessage(9000, models.RoleUser, "hello"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendMessage_InvalidRole(t *testing.T) {
	database := testDB(t)

	conv, err := database.CreateConversation("chat")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := database.AppendMessage(conv.ID, models.Role("system"), "nope"); err == nil {
		t.Fatal("expected error for role outside the closed set")
	}
}

func TestDeleteConversation_CascadesToMessages(t *testing.T) {
	database := testDB(t)

	conv, err := database.CreateConversation("doomed")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := database.AppendMessage(conv.ID, models.RoleUser, "hello"); err != nil {
		t.Fatal(err)
	}

	if err := database.DeleteConversation(conv.ID); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := database.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conv.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected messages to be deleted with the conversation, found %d", count)
	}
}

func TestDeleteConversation_SecondDeleteNotFound(t *testing.T) {
	database := testDB(t)

	conv, err := database.CreateConversation("once")
	if err != nil {
		t.Fatal(err)
	}
	if err := database.DeleteConversation(conv.ID); err != nil {
		t.Fatal(err)
	}
	if err := database.DeleteConversation(conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUpdateConversationTitle(t *testing.T) {
	database := testDB(t)

	conv, err := database.CreateConversation("")
	if err != nil {
		t.Fatal(err)
	}
	if err := database.UpdateConversationTitle(conv.ID, "new title"); err != nil {
		t.Fatal(err)
	}
	got, err := database.GetConversation(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "new title" {
		t.Errorf("expected updated title, got %q", got.Title)
	}

	if err := database.UpdateConversationTitle(9000, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
