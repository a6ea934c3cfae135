package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/buconnects/server/models"
	"github.com/buconnects/server/utils"
)

// MarketController serves marketplace listings.
type MarketController struct {
	db *gorm.DB
}

// NewMarketController creates a MarketController.
func NewMarketController(db *gorm.DB) *MarketController {
	return &MarketController{db: db}
}

// ListItems returns all listings, newest first.
func (m *MarketController) ListItems(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(utils.CacheMarketList); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}
	gen := utils.CacheGeneration(utils.CacheMarketList)
	var items []models.MarketItem
	if err := m.db.WithContext(ctx.Request.Context()).
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error; err != nil {
		utils.StoreError(ctx, 50050, err)
		return
	}
	items = orEmpty(items)
	utils.CacheSetJSONAt(utils.CacheMarketList, utils.CacheMarketList, gen, items, time.Hour)
	utils.Success(ctx, items)
}

// CreateItem lists an item with an optional picture under the "image" field.
func (m *MarketController) CreateItem(ctx *gin.Context) {
	var req struct {
		Name        string  `json:"name" form:"name"`
		Price       float64 `json:"price" form:"price"`
		Description string  `json:"description" form:"description"`
		Seller      string  `json:"seller" form:"seller"`
		Campus      string  `json:"campus" form:"campus"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}

	item := models.MarketItem{
		Name:        utils.Sanitize(req.Name),
		Price:       req.Price,
		Description: utils.Sanitize(req.Description),
		Seller:      req.Seller,
		Campus:      req.Campus,
	}
	if header := optionalFile(ctx, "image"); header != nil {
		stored := storeUpload(ctx, m.db, header)
		if stored == nil {
			return
		}
		item.ImageURL = &stored.URL
	}

	db := m.db.WithContext(ctx.Request.Context())
	if err := db.Create(&item).Error; err != nil {
		if item.ImageURL != nil {
			_ = utils.ScheduleMediaReclaim(db, *item.ImageURL, time.Now())
		}
		utils.StoreError(ctx, 50051, err)
		return
	}
	utils.InvalidateByPrefix(utils.CacheMarketList)
	utils.Success(ctx, gin.H{"message": "Item listed successfully!", "id": item.ID})
}
