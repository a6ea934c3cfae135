package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/buconnects/server/models"
	"github.com/buconnects/server/utils"
)

// EventController serves campus events.
type EventController struct {
	db *gorm.DB
}

// NewEventController creates an EventController.
func NewEventController(db *gorm.DB) *EventController {
	return &EventController{db: db}
}

// ListEvents returns a campus's events in date order with month/day labels.
// The campus query parameter is required.
func (e *EventController) ListEvents(ctx *gin.Context) {
	campus := strings.TrimSpace(ctx.Query("campus"))
	if campus == "" {
		utils.Error(ctx, http.StatusBadRequest, 40060, "campus is required")
		return
	}
	var events []models.CampusEvent
	if err := e.db.WithContext(ctx.Request.Context()).
		Where("campus = ?", campus).
		Order("event_date ASC").Order("id ASC").
		Find(&events).Error; err != nil {
		utils.StoreError(ctx, 50060, err)
		return
	}
	out := make([]models.CampusEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.WithLabels())
	}
	utils.Success(ctx, out)
}

// CreateEvent adds an event. event_date is a calendar date such as 2025-03-14.
func (e *EventController) CreateEvent(ctx *gin.Context) {
	var req struct {
		Title       string `json:"title" form:"title"`
		Location    string `json:"location" form:"location"`
		EventDate   string `json:"event_date" form:"event_date"`
		EventTime   string `json:"event_time" form:"event_time"`
		Description string `json:"description" form:"description"`
		Campus      string `json:"campus" form:"campus"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40061, "invalid request payload")
		return
	}
	date, err := parseEventDate(req.EventDate)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40062, "invalid event_date")
		return
	}

	event := models.CampusEvent{
		Title:       utils.Sanitize(req.Title),
		Location:    utils.Sanitize(req.Location),
		EventDate:   date,
		EventTime:   req.EventTime,
		Description: utils.Sanitize(req.Description),
		Campus:      req.Campus,
	}
	if err := e.db.WithContext(ctx.Request.Context()).Create(&event).Error; err != nil {
		utils.StoreError(ctx, 50061, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "Event added!", "id": event.ID})
}

// parseEventDate accepts a bare date or a full timestamp and keeps the date part.
func parseEventDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(time.DateOnly) {
		raw = raw[:len(time.DateOnly)]
	}
	return time.Parse(time.DateOnly, raw)
}
