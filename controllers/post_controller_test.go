package controllers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/buconnects/server/models"
	"github.com/buconnects/server/utils"
)

func createPost(t *testing.T, app *testApp, fields map[string]string, file *upload) map[string]interface{} {
	t.Helper()
	w := app.doMultipart(http.MethodPost, "/api/posts", fields, file)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeObject(t, w)
	require.Equal(t, "Post created", body["message"])
	return body
}

func TestCreatePostMediaTypes(t *testing.T) {
	app := newTestApp(t)
	fields := map[string]string{"author": "A", "content": "hello", "campus": "C1"}

	body := createPost(t, app, fields, nil)
	assert.Equal(t, "none", body["media_type"])
	assert.Nil(t, body["media_url"])

	body = createPost(t, app, fields, &upload{field: "media", filename: "clip.mp4", contentType: "video/mp4", content: []byte("v")})
	assert.Equal(t, "video", body["media_type"])
	url := body["media_url"].(string)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, "-clip.mp4"))

	body = createPost(t, app, fields, &upload{field: "media", filename: "pic.jpg", contentType: "image/jpeg", content: []byte("i")})
	assert.Equal(t, "image", body["media_type"])

	body = createPost(t, app, fields, &upload{field: "media", filename: "notes.bin", contentType: "application/octet-stream", content: []byte("b")})
	assert.Equal(t, "image", body["media_type"])

	// The stored file is served back under its URL.
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	got, _ := io.ReadAll(w.Body)
	assert.Equal(t, "v", string(got))
}

func TestListPostsByCampus(t *testing.T) {
	app := newTestApp(t)
	createPost(t, app, map[string]string{"author": "A", "content": "one", "campus": "C1"}, nil)
	createPost(t, app, map[string]string{"author": "B", "content": "two", "campus": "C2"}, nil)
	createPost(t, app, map[string]string{"author": "C", "content": "three", "campus": "C1"}, nil)

	all := decodeList(t, app.do(http.MethodGet, "/api/posts", nil))
	require.Len(t, all, 3)
	assert.Equal(t, "three", all[0]["content"])
	assert.Equal(t, "one", all[2]["content"])

	c1 := decodeList(t, app.do(http.MethodGet, "/api/posts?campus=C1", nil))
	require.Len(t, c1, 2)
	for _, p := range c1 {
		assert.Equal(t, "C1", p["campus"])
	}

	assert.Len(t, decodeList(t, app.do(http.MethodGet, "/api/posts?campus=undefined", nil)), 3)
	assert.Len(t, decodeList(t, app.do(http.MethodGet, "/api/posts?campus=none", nil)), 0)
}

func TestListPostsCacheInvalidatedOnCreate(t *testing.T) {
	app := newTestApp(t)
	mr := useMiniredis(t)

	createPost(t, app, map[string]string{"author": "A", "content": "one", "campus": "C1"}, nil)
	assert.Len(t, decodeList(t, app.do(http.MethodGet, "/api/posts?campus=C1", nil)), 1)
	assert.True(t, mr.Exists(utils.CachePostsListPrefix+"campus=C1"))

	createPost(t, app, map[string]string{"author": "A", "content": "two", "campus": "C1"}, nil)
	assert.False(t, mr.Exists(utils.CachePostsListPrefix+"campus=C1"))
	assert.Len(t, decodeList(t, app.do(http.MethodGet, "/api/posts?campus=C1", nil)), 2)
}

func TestListPostsDoesNotCacheSnapshotOverlappingAWrite(t *testing.T) {
	app := newTestApp(t)
	mr := useMiniredis(t)
	createPost(t, app, map[string]string{"author": "A", "content": "one", "campus": "C1"}, nil)

	// A post lands after the list query ran but before its result is cached.
	var once sync.Once
	require.NoError(t, app.db.Callback().Query().After("gorm:query").Register("test:interleaved_post", func(tx *gorm.DB) {
		if tx.Statement.Table != "posts" {
			return
		}
		once.Do(func() {
			createPost(t, app, map[string]string{"author": "B", "content": "two", "campus": "C1"}, nil)
		})
	}))

	assert.Len(t, decodeList(t, app.do(http.MethodGet, "/api/posts?campus=C1", nil)), 1)
	assert.False(t, mr.Exists(utils.CachePostsListPrefix+"campus=C1"))

	assert.Len(t, decodeList(t, app.do(http.MethodGet, "/api/posts?campus=C1", nil)), 2)
	assert.True(t, mr.Exists(utils.CachePostsListPrefix+"campus=C1"))
	assert.Len(t, decodeList(t, app.do(http.MethodGet, "/api/posts?campus=C1", nil)), 2)
}

func TestToggleLikeScenario(t *testing.T) {
	app := newTestApp(t)
	like := map[string]interface{}{"postId": 5, "userId": 1}

	expected := []bool{true, false, true}
	for _, want := range expected {
		w := app.do(http.MethodPost, "/api/posts/like", like)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, decodeObject(t, w)["liked"])
	}

	var count int64
	require.NoError(t, app.db.Model(&models.PostLike{}).Where("post_id = ? AND user_id = ?", 5, 1).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestToggleLikeConcurrent(t *testing.T) {
	app := newTestApp(t)
	like := map[string]interface{}{"postId": 7, "userId": 3}

	const n = 10
	results := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := app.do(http.MethodPost, "/api/posts/like", like)
			var body struct {
				Liked bool `json:"liked"`
			}
			if w.Code == http.StatusOK && json.Unmarshal(w.Body.Bytes(), &body) == nil {
				results[i] = body.Liked
			}
		}(i)
	}
	wg.Wait()

	liked := 0
	for _, r := range results {
		if r {
			liked++
		}
	}
	assert.Equal(t, n/2, liked)

	var count int64
	require.NoError(t, app.db.Model(&models.PostLike{}).Where("post_id = ? AND user_id = ?", 7, 3).Count(&count).Error)
	assert.EqualValues(t, n%2, count)
}

func TestCommentsNewestFirst(t *testing.T) {
	app := newTestApp(t)
	post := createPost(t, app, map[string]string{"author": "A", "content": "x", "campus": "C1"}, nil)
	postID := post["id"]

	for _, text := range []string{"first", "second"} {
		w := app.do(http.MethodPost, "/api/posts/comment", map[string]interface{}{"postId": postID, "userName": "B", "text": text})
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeObject(t, w)
		assert.Equal(t, "Comment added", body["message"])
		assert.NotZero(t, body["id"])
	}

	comments := decodeList(t, app.do(http.MethodGet, "/api/posts/1/comments", nil))
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[0]["comment_text"])
	assert.Equal(t, "B", comments[0]["user_name"])

	assert.Len(t, decodeList(t, app.do(http.MethodGet, "/api/posts/2/comments", nil)), 0)
}

func TestDeletePostCascades(t *testing.T) {
	app := newTestApp(t)
	post := createPost(t, app, map[string]string{"author": "A", "content": "x", "campus": "C1"},
		&upload{field: "media", filename: "pic.png", contentType: "image/png", content: []byte("i")})
	url := post["media_url"].(string)

	require.Equal(t, http.StatusOK, app.do(http.MethodPost, "/api/posts/comment", map[string]interface{}{"postId": post["id"], "userName": "B", "text": "hi"}).Code)
	require.Equal(t, http.StatusOK, app.do(http.MethodPost, "/api/posts/like", map[string]interface{}{"postId": post["id"], "userId": 2}).Code)

	w := app.do(http.MethodDelete, "/api/posts/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Post deleted successfully", decodeObject(t, w)["message"])

	var posts, comments, likes int64
	app.db.Model(&models.Post{}).Count(&posts)
	app.db.Model(&models.PostComment{}).Count(&comments)
	app.db.Model(&models.PostLike{}).Count(&likes)
	assert.Zero(t, posts)
	assert.Zero(t, comments)
	assert.Zero(t, likes)

	var media models.MediaFile
	require.NoError(t, app.db.Where("url = ?", url).First(&media).Error)
	assert.NotNil(t, media.ReclaimAt)

	// Unknown ids are not an error.
	assert.Equal(t, http.StatusOK, app.do(http.MethodDelete, "/api/posts/42", nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodDelete, "/api/posts/abc", nil).Code)
}
