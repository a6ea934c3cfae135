package controllers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/buconnects/server/config"
	"github.com/buconnects/server/models"
	"github.com/buconnects/server/utils"
)

// AuthController handles registration, login and the account endpoints.
type AuthController struct {
	db    *gorm.DB
	locks *utils.KeyedMutex
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db, locks: utils.NewKeyedMutex()}
}

// Register creates an account. A second registration with the same email is a conflict.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Name     string `json:"name" form:"name"`
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
		Campus   string `json:"campus" form:"campus"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	email := strings.TrimSpace(req.Email)

	// Serialize the check-then-insert per email; the unique index covers other processes.
	unlock := a.locks.Lock("register:" + email)
	defer unlock()

	db := a.db.WithContext(ctx.Request.Context())
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		utils.StoreError(ctx, 50001, err)
		return
	}
	if count > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "Email registered!")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.StoreError(ctx, 50002, err)
		return
	}

	user := models.User{
		Name:     utils.Sanitize(req.Name),
		Email:    email,
		Password: hash,
		Campus:   req.Campus,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusConflict, 40901, "Email registered!")
			return
		}
		utils.StoreError(ctx, 50003, err)
		return
	}

	utils.Success(ctx, gin.H{
		"message": "Registration successful!",
		"id":      user.ID,
		"name":    user.Name,
		"email":   user.Email,
		"campus":  user.Campus,
	})
}

// Login verifies credentials and returns the password-free user projection.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid request payload")
		return
	}

	db := a.db.WithContext(ctx.Request.Context())
	var user models.User
	if err := db.Where("email = ?", strings.TrimSpace(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.CheckPassword("", req.Password)
			utils.Error(ctx, http.StatusUnauthorized, 40101, "Invalid email or password!")
			return
		}
		utils.StoreError(ctx, 50004, err)
		return
	}

	if !a.verifyPassword(db, &user, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "Invalid email or password!")
		return
	}

	utils.Success(ctx, gin.H{"success": true, "user": user.Profile()})
}

// verifyPassword checks password against the stored hash. Rows written before
// hashing was introduced hold plaintext; a successful match rehashes them in place.
func (a *AuthController) verifyPassword(db *gorm.DB, user *models.User, password string) bool {
	if isBcryptHash(user.Password) {
		return utils.CheckPassword(user.Password, password)
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return false
	}
	if hash, err := utils.HashPassword(password); err == nil {
		if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("password", hash).Error; err != nil {
			utils.Sugar.Warnw("password rehash failed", "user_id", user.ID, "err", err)
		}
	}
	return true
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

// GetUser returns the public projection of one user.
func (a *AuthController) GetUser(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
		return
	}
	var user models.User
	if err := a.db.WithContext(ctx.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
			return
		}
		utils.StoreError(ctx, 50005, err)
		return
	}
	utils.Success(ctx, user.Profile())
}

// UpdateSettings changes the motto and, only when a non-empty password is sent, the password.
func (a *AuthController) UpdateSettings(ctx *gin.Context) {
	var req struct {
		UserID   uint   `json:"userId" form:"userId"`
		Motto    string `json:"motto" form:"motto"`
		Password string `json:"password" form:"password"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	updates := map[string]interface{}{"motto": utils.Sanitize(req.Motto)}
	if req.Password != "" {
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			utils.StoreError(ctx, 50006, err)
			return
		}
		updates["password"] = hash
	}
	if err := a.db.WithContext(ctx.Request.Context()).Model(&models.User{}).
		Where("id = ?", req.UserID).Updates(updates).Error; err != nil {
		utils.StoreError(ctx, 50007, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "Settings updated!"})
}

// UpdateProfilePic stores the uploaded image and points the user's profile_pic at it.
// The user must exist before anything is written to the media area.
func (a *AuthController) UpdateProfilePic(ctx *gin.Context) {
	header := optionalFile(ctx, "image")
	if header == nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "No image uploaded")
		return
	}
	userID, ok := parseID(ctx.PostForm("userId"))
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
		return
	}

	db := a.db.WithContext(ctx.Request.Context())
	var previous models.User
	if err := db.Select("id", "profile_pic").First(&previous, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
			return
		}
		utils.StoreError(ctx, 50009, err)
		return
	}

	stored := storeUpload(ctx, a.db, header)
	if stored == nil {
		return
	}

	if err := db.Model(&models.User{}).Where("id = ?", userID).Update("profile_pic", stored.FileName).Error; err != nil {
		_ = utils.ScheduleMediaReclaim(db, stored.URL, time.Now())
		utils.StoreError(ctx, 50008, err)
		return
	}
	if previous.ProfilePic != nil && *previous.ProfilePic != stored.FileName {
		at := time.Now().Add(time.Duration(config.Get().MediaReclaimMinutes) * time.Minute)
		if err := utils.ScheduleMediaReclaim(db, utils.UploadURLPrefix+"/"+*previous.ProfilePic, at); err != nil {
			utils.Sugar.Warnw("schedule profile pic reclaim failed", "user_id", userID, "err", err)
		}
	}

	utils.Success(ctx, gin.H{"message": "Profile picture updated!", "profile_pic": stored.FileName})
}
