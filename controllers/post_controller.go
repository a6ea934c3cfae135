package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/buconnects/server/config"
	"github.com/buconnects/server/models"
	"github.com/buconnects/server/utils"
)

// PostController manages the feed: posts, likes and comments.
type PostController struct {
	db    *gorm.DB
	locks *utils.KeyedMutex
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db, locks: utils.NewKeyedMutex()}
}

// ListPosts returns every post, newest first, optionally limited to one campus.
func (p *PostController) ListPosts(ctx *gin.Context) {
	campus := strings.TrimSpace(ctx.Query("campus"))
	if campus == "undefined" {
		campus = ""
	}

	cacheKey := utils.CachePostsListPrefix + "campus=" + campus
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}
	gen := utils.CacheGeneration(utils.CachePostsListPrefix)

	query := p.db.WithContext(ctx.Request.Context()).Order("id DESC")
	if campus != "" {
		query = query.Where("campus = ?", campus)
	}
	var posts []models.Post
	if err := query.Find(&posts).Error; err != nil {
		utils.StoreError(ctx, 50020, err)
		return
	}
	posts = orEmpty(posts)

	utils.CacheSetJSONAt(cacheKey, utils.CachePostsListPrefix, gen, posts, time.Hour)
	utils.Success(ctx, posts)
}

// CreatePost stores a post with an optional image or video under the "media" field.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Author  string `json:"author" form:"author"`
		Content string `json:"content" form:"content"`
		Campus  string `json:"campus" form:"campus"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	post := models.Post{
		Author:    req.Author,
		Content:   utils.Sanitize(req.Content),
		Campus:    req.Campus,
		MediaType: models.MediaTypeNone,
	}
	if header := optionalFile(ctx, "media"); header != nil {
		stored := storeUpload(ctx, p.db, header)
		if stored == nil {
			return
		}
		post.MediaURL = &stored.URL
		post.MediaType = stored.MediaType()
	}

	db := p.db.WithContext(ctx.Request.Context())
	if err := db.Create(&post).Error; err != nil {
		if post.MediaURL != nil {
			_ = utils.ScheduleMediaReclaim(db, *post.MediaURL, time.Now())
		}
		utils.StoreError(ctx, 50021, err)
		return
	}

	utils.InvalidateByPrefix(utils.CachePostsListPrefix)
	utils.Success(ctx, gin.H{
		"message":    "Post created",
		"id":         post.ID,
		"media_url":  post.MediaURL,
		"media_type": post.MediaType,
	})
}

// DeletePost removes a post together with its comments and likes. No ownership check
// is made. The post's media file is scheduled for reclaim.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid post id")
		return
	}

	reclaimAt := time.Now().Add(time.Duration(config.Get().MediaReclaimMinutes) * time.Minute)
	err := p.db.WithContext(ctx.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		found := tx.Select("id", "media_url").Limit(1).Find(&post, postID)
		if found.Error != nil {
			return found.Error
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Post{}, postID).Error; err != nil {
			return err
		}
		if found.RowsAffected > 0 && post.MediaURL != nil {
			return utils.ScheduleMediaReclaim(tx, *post.MediaURL, reclaimAt)
		}
		return nil
	})
	if err != nil {
		utils.StoreError(ctx, 50022, err)
		return
	}

	utils.InvalidateByPrefix(utils.CachePostsListPrefix)
	utils.Success(ctx, gin.H{"message": "Post deleted successfully"})
}

// ToggleLike likes the post when the user has not liked it yet and unlikes it otherwise.
func (p *PostController) ToggleLike(ctx *gin.Context) {
	var req struct {
		PostID uint `json:"postId" form:"postId"`
		UserID uint `json:"userId" form:"userId"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}

	unlock := p.locks.Lock(fmt.Sprintf("like:%d:%d", req.PostID, req.UserID))
	defer unlock()

	db := p.db.WithContext(ctx.Request.Context())
	res := db.Where("post_id = ? AND user_id = ?", req.PostID, req.UserID).Delete(&models.PostLike{})
	if res.Error != nil {
		utils.StoreError(ctx, 50023, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		utils.Success(ctx, gin.H{"liked": false})
		return
	}

	// The unique (post_id, user_id) index makes a concurrent insert from another process a no-op.
	like := models.PostLike{PostID: req.PostID, UserID: req.UserID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
		utils.StoreError(ctx, 50024, err)
		return
	}
	utils.Success(ctx, gin.H{"liked": true})
}

// ListComments returns the comments of a post, newest first.
func (p *PostController) ListComments(ctx *gin.Context) {
	postID, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid post id")
		return
	}
	var comments []models.PostComment
	if err := p.db.WithContext(ctx.Request.Context()).
		Where("post_id = ?", postID).
		Order("created_at DESC").Order("id DESC").
		Find(&comments).Error; err != nil {
		utils.StoreError(ctx, 50025, err)
		return
	}
	utils.Success(ctx, orEmpty(comments))
}

// CreateComment adds a comment. The commenter's name is stored as given.
func (p *PostController) CreateComment(ctx *gin.Context) {
	var req struct {
		PostID   uint   `json:"postId" form:"postId"`
		UserName string `json:"userName" form:"userName"`
		Text     string `json:"text" form:"text"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	comment := models.PostComment{
		PostID:      req.PostID,
		UserName:    utils.Sanitize(req.UserName),
		CommentText: utils.Sanitize(req.Text),
	}
	if err := p.db.WithContext(ctx.Request.Context()).Create(&comment).Error; err != nil {
		utils.StoreError(ctx, 50026, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "Comment added", "id": comment.ID})
}
