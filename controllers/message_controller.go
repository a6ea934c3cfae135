package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/buconnects/server/models"
	"github.com/buconnects/server/utils"
)

// MessageController serves chat history. New messages arrive over the realtime channel.
type MessageController struct {
	db *gorm.DB
}

// NewMessageController creates a MessageController.
func NewMessageController(db *gorm.DB) *MessageController {
	return &MessageController{db: db}
}

// History returns the messages exchanged between two participants in either direction, oldest first.
func (m *MessageController) History(ctx *gin.Context) {
	user1, user2 := ctx.Param("user1"), ctx.Param("user2")
	var messages []models.Message
	if err := m.db.WithContext(ctx.Request.Context()).
		Where("(sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)", user1, user2, user2, user1).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error; err != nil {
		utils.StoreError(ctx, 50070, err)
		return
	}
	utils.Success(ctx, orEmpty(messages))
}
