package api

import (
	"net/http" // HTTP status codes

	"instapay/internal/domain" // Importing domain models
	"instapay/internal/utils"  // Pagination

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// ListNotificationsHandler lists the caller's notifications, newest first. unread=true filters.
func ListNotificationsHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		page := utils.ParsePage(c)
		q := env.DB.WithContext(c.Request.Context()).Model(&domain.Notification{}).Where("user_id = ?", userID)
		if c.Query("unread") == "true" {
			q = q.Where("is_read = ?", false)
		}
		var total int64
		if err := q.Count(&total).Error; err != nil {
			respondInternal(c, err, "Failed to fetch notifications", logrus.Fields{"user_id": userID})
			return
		}
		var list []domain.Notification
		if err := q.Order("created_at desc, id desc").Offset(page.Offset()).Limit(page.PageSize).Find(&list).Error; err != nil {
			respondInternal(c, err, "Failed to fetch notifications", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"notifications": list,
			"page":          page.Page,
			"page_size":     page.PageSize,
			"total":         total,
			"total_pages":   page.TotalPages(total),
		})
	}
}

// UnreadCountHandler returns the number of unread notifications
func UnreadCountHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var count int64
		if err := env.DB.WithContext(c.Request.Context()).Model(&domain.Notification{}).
			Where("user_id = ? AND is_read = ?", userID, false).Count(&count).Error; err != nil {
			respondInternal(c, err, "Failed to count notifications", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread": count})
	}
}

// MarkNotificationReadHandler marks one notification as read
func MarkNotificationReadHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		res := env.DB.WithContext(c.Request.Context()).Model(&domain.Notification{}).
			Where("id = ? AND user_id = ?", id, userID).Update("is_read", true)
		if res.Error != nil {
			respondInternal(c, res.Error, "Failed to update notification", logrus.Fields{"notification_id": id})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
	}
}

// MarkAllNotificationsReadHandler marks every unread notification of the caller as read
func MarkAllNotificationsReadHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		res := env.DB.WithContext(c.Request.Context()).Model(&domain.Notification{}).
			Where("user_id = ? AND is_read = ?", userID, false).Update("is_read", true)
		if res.Error != nil {
			respondInternal(c, res.Error, "Failed to update notifications", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": res.RowsAffected})
	}
}
