package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	router.GET("/healthz", handleHealth(db))
	router.GET("/api/stats", handleStats(db))
	router.GET("/api/marriages", handleMarriages(db))
	router.GET("/api/proposals", handleProposals(db))
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := Overview(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func handleMarriages(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := ListMarriages(db, chatIDParam(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"marriages": rows})
	}
}

func handleProposals(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := ListProposals(db, chatIDParam(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"proposals": rows})
	}
}

// chatIDParam reads the optional chat_id query filter; zero means all chats.
func chatIDParam(c *gin.Context) int64 {
	id, _ := strconv.ParseInt(c.Query("chat_id"), 10, 64)
	return id
}
