package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

func newTestSession(t *testing.T, db *DB, highlightID *int64, docHash, selection string) *models.Session {
	t.Helper()
	s, err := db.CreateSession(context.Background(), NewSession{
		HighlightID:   highlightID,
		DocumentHash:  docHash,
		SelectionText: selection,
		Question:      "explain this",
	})
	require.NoError(t, err)
	return s
}

func TestCreateSession_ReadAfterWrite(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()

	hid, err := db.FindOrCreateHighlight(ctx, "doc", "x", "v", pos(1, 1), pos(2, 2))
	require.NoError(t, err)

	s, err := db.CreateSession(ctx, NewSession{
		HighlightID:    &hid,
		DocumentHash:   "doc",
		SelectionText:  "Lemma 2",
		Question:       "why?",
		ContextSnippet: "... Lemma 2 ...",
		Metadata:       map[string]string{"title": "Paper", "file_name": "paper.pdf"},
	})
	require.NoError(t, err)
	assert.NotZero(t, s.ID)
	require.NotNil(t, s.HighlightID)
	assert.Equal(t, hid, *s.HighlightID)
	assert.Empty(t, s.AnswerPreview)
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)
	assert.Equal(t, "Paper", s.Metadata["title"])
	assert.Equal(t, "Paper", s.Title())

	_, err = time.Parse(TimeLayout, s.CreatedAt)
	assert.NoError(t, err)
	assert.Equal(t, "why?", s.Question)
}

func TestCreateSession_EmptySnippetStoredAsNull(t *testing.T) {
	db := setupTestStore(t)
	s := newTestSession(t, db, nil, "doc", "text")

	var isNull bool
	require.NoError(t, db.shared.QueryRow(
		`SELECT context_snippet IS NULL FROM ai_sessions WHERE id = ?`, s.ID).Scan(&isNull))
	assert.True(t, isNull)
	assert.Nil(t, s.HighlightID)
	assert.NotNil(t, s.Metadata)
}

func TestGetSession_NotFound(t *testing.T) {
	db := setupTestStore(t)
	_, err := db.GetSession(context.Background(), 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestListSessions_MostRecentFirst(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()

	s1 := newTestSession(t, db, nil, "doc", "one")
	s2 := newTestSession(t, db, nil, "doc", "two")
	s3 := newTestSession(t, db, nil, "doc", "three")
	newTestSession(t, db, nil, "other", "elsewhere")

	list, err := db.ListSessions(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{s3.ID, s2.ID, s1.ID}, []int64{list[0].ID, list[1].ID, list[2].ID})

	require.NoError(t, db.UpdatePreview(ctx, s1.ID, "fresh"))
	list, err = db.ListSessions(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, s1.ID, list[0].ID)
	assert.Equal(t, "fresh", list[0].AnswerPreview)
}

func TestMessages_InsertionOrder(t *testing.T) {
	// A frozen clock gives every message the same timestamp.
	frozen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	db := setupTestStore(t, WithClock(func() time.Time { return frozen }))
	ctx := context.Background()
	s := newTestSession(t, db, nil, "doc", "text")

	_, err := db.AppendMessage(ctx, s.ID, models.RoleAssistant, "first")
	require.NoError(t, err)
	_, err = db.AppendMessage(ctx, s.ID, models.RoleUser, "second")
	require.NoError(t, err)
	_, err = db.AppendMessage(ctx, s.ID, models.RoleAssistant, "third")
	require.NoError(t, err)

	msgs, err := db.Messages(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
	assert.Equal(t, models.RoleUser, msgs[1].Role)
}

func TestAppendMessage_InvalidRole(t *testing.T) {
	db := setupTestStore(t)
	s := newTestSession(t, db, nil, "doc", "text")
	_, err := db.AppendMessage(context.Background(), s.ID, "robot", "hi")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestAppendMessage_LeavesSessionUntouched(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()
	s := newTestSession(t, db, nil, "doc", "text")

	_, err := db.AppendMessage(ctx, s.ID, models.RoleAssistant, "answer")
	require.NoError(t, err)

	after, err := db.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.UpdatedAt, after.UpdatedAt)
	assert.Empty(t, after.AnswerPreview)

	require.NoError(t, db.UpdatePreview(ctx, s.ID, "answer"))
	after, err = db.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Greater(t, after.UpdatedAt, s.UpdatedAt)
	assert.Equal(t, s.CreatedAt, after.CreatedAt)
}

func TestSessionByHighlight(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()

	hid, err := db.FindOrCreateHighlight(ctx, "doc", "x", "v", pos(1, 1), pos(2, 2))
	require.NoError(t, err)

	none, err := db.SessionByHighlight(ctx, hid)
	require.NoError(t, err)
	assert.Nil(t, none)

	older := newTestSession(t, db, &hid, "doc", "a")
	newer := newTestSession(t, db, &hid, "doc", "b")

	got, err := db.SessionByHighlight(ctx, hid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)

	require.NoError(t, db.UpdatePreview(ctx, older.ID, "bumped"))
	got, err = db.SessionByHighlight(ctx, hid)
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)
}

func TestDeleteHighlight_Cascades(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()

	hid, err := db.FindOrCreateHighlight(ctx, "doc", "x", "v", pos(1, 1), pos(2, 2))
	require.NoError(t, err)
	s := newTestSession(t, db, &hid, "doc", "text")
	_, err = db.AppendMessage(ctx, s.ID, models.RoleUser, "q")
	require.NoError(t, err)
	_, err = db.AppendMessage(ctx, s.ID, models.RoleAssistant, "a")
	require.NoError(t, err)

	require.NoError(t, db.DeleteHighlight(ctx, hid))

	_, err = db.GetSession(ctx, s.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	var n int
	require.NoError(t, db.shared.QueryRow(`SELECT COUNT(*) FROM ai_messages WHERE session_id = ?`, s.ID).Scan(&n))
	assert.Zero(t, n)
}

func TestDeleteSession_Cascades(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()

	s := newTestSession(t, db, nil, "doc", "text")
	_, err := db.AppendMessage(ctx, s.ID, models.RoleUser, "q")
	require.NoError(t, err)

	require.NoError(t, db.DeleteSession(ctx, s.ID))
	msgs, err := db.Messages(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestEndToEnd_AskAndList(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()

	hid, err := db.FindOrCreateHighlight(ctx, "abc123", "Theorem 3.1 states...", models.HighlightTypeAI, pos(100, 200), pos(180, 215))
	require.NoError(t, err)
	assert.Equal(t, int64(1), hid)

	s, err := db.CreateSession(ctx, NewSession{
		HighlightID:   &hid,
		DocumentHash:  "abc123",
		SelectionText: "Theorem 3.1 states...",
		Question:      "explain this",
		Metadata:      map[string]string{},
	})
	require.NoError(t, err)
	assert.Empty(t, s.AnswerPreview)

	_, err = db.AppendMessage(ctx, s.ID, models.RoleAssistant, "This theorem says...")
	require.NoError(t, err)
	require.NoError(t, db.UpdatePreview(ctx, s.ID, "This theorem says..."))

	list, err := db.ListSessions(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "This theorem says...", list[0].AnswerPreview)
}
