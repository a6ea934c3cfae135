package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/buconnects/server/models"
	"github.com/buconnects/server/utils"
)

// notificationLimit caps how many notifications one listing returns.
const notificationLimit = 20

// NotificationController serves a user's notification inbox.
type NotificationController struct {
	db *gorm.DB
}

// NewNotificationController creates a NotificationController.
func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{db: db}
}

// ListNotifications returns the user's most recent notifications joined with the actor's name and picture.
func (n *NotificationController) ListNotifications(ctx *gin.Context) {
	userID, ok := parseID(ctx.Param("userId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid user id")
		return
	}
	var items []models.NotificationView
	if err := n.db.WithContext(ctx.Request.Context()).
		Table("notifications AS n").
		Select("n.*, u.name AS actorName, u.profile_pic AS actorPic").
		Joins("JOIN users u ON n.actor_id = u.id").
		Where("n.user_id = ?", userID).
		Order("n.created_at DESC").Order("n.id DESC").
		Limit(notificationLimit).
		Scan(&items).Error; err != nil {
		utils.StoreError(ctx, 50040, err)
		return
	}
	utils.Success(ctx, orEmpty(items))
}

// MarkAllRead flags every unread notification of the user as read.
func (n *NotificationController) MarkAllRead(ctx *gin.Context) {
	userID, ok := parseID(ctx.Param("userId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40041, "invalid user id")
		return
	}
	if err := n.db.WithContext(ctx.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error; err != nil {
		utils.StoreError(ctx, 50041, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "Marked all as read"})
}
