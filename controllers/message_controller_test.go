package controllers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buconnects/server/models"
)

func TestMessageHistoryBothDirections(t *testing.T) {
	app := newTestApp(t)
	base := time.Now().Add(-time.Hour)
	rows := []models.Message{
		{Sender: "1", Receiver: "2", Message: "hi", CreatedAt: base},
		{Sender: "2", Receiver: "1", Message: "hey", CreatedAt: base.Add(time.Minute)},
		{Sender: "1", Receiver: "3", Message: "other", CreatedAt: base.Add(2 * time.Minute)},
		{Sender: "1", Receiver: "2", Message: "bye", CreatedAt: base.Add(3 * time.Minute)},
	}
	require.NoError(t, app.db.Create(&rows).Error)

	for _, path := range []string{"/api/messages/1/2", "/api/messages/2/1"} {
		msgs := decodeList(t, app.do(http.MethodGet, path, nil))
		require.Len(t, msgs, 3, path)
		assert.Equal(t, "hi", msgs[0]["message"])
		assert.Equal(t, "hey", msgs[1]["message"])
		assert.Equal(t, "bye", msgs[2]["message"])
	}

	w := app.do(http.MethodGet, "/api/messages/4/5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestUnknownAPIRoute(t *testing.T) {
	app := newTestApp(t)
	w := app.do(http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/health", nil).Code)
}
