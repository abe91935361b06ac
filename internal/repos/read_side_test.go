package repos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/handlers"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/logger"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/models"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.ErrorLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestUserProfile_KarmaSkipsHiddenPosts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	svc := newEngine(db, 3)

	author := seedUser(t, db)
	visible := seedPost(t, db, author.ID)
	hidden := seedPost(t, db, author.ID)
	for i := 0; i < 2; i++ {
		v := seedUser(t, db)
		_, err := svc.CastVote(ctx, v.ID, visible, votes.Positive)
		require.NoError(t, err)
		_, err = svc.CastVote(ctx, v.ID, hidden, votes.Positive)
		require.NoError(t, err)
	}
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", hidden.ID).Update("is_active", false).Error)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/users/:id", handlers.NewUserHandler(db, nil).GetUserProfile)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/"+strconv.Itoa(author.ID), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Karma int           `json:"karma"`
		Posts []models.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Karma)
	require.Len(t, body.Posts, 1)
	assert.Equal(t, visible.ID, body.Posts[0].ID)
}

func TestPostHandler_CommentCountFailureIsLogged(t *testing.T) {
	db := testDB(t)
	author := seedUser(t, db)
	ref := seedPost(t, db, author.ID)
	seedComment(t, db, author.ID, ref.ID)

	lg, logs := observedLogger()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/posts/:id", handlers.NewPostHandler(db, lg).GetPost)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts/"+strconv.Itoa(ref.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"comments":1`)
	assert.Zero(t, logs.Len())

	// the post itself loads without the request context; the count query
	// uses it and fails once the request is gone
	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts/"+strconv.Itoa(ref.ID), nil).WithContext(reqCtx))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"comments":0`)
	assert.Equal(t, 1, logs.FilterMessage("comment count failed").Len())
}
