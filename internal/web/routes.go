package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zulandar/switchboard/internal/fairness"
	"github.com/zulandar/switchboard/internal/jobs"
	"github.com/zulandar/switchboard/internal/operator"
)

// registerRoutes sets up all status routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/health", handleHealth())
	router.GET("/stats", handleStats(opts.Operator))
	router.GET("/final-outcomes", handleFinalOutcomes(opts.Operator))
	if opts.Fairness != nil {
		router.GET("/queue", handleQueue(opts.Fairness))
	}
	if opts.DB != nil {
		router.GET("/jobs", handleJobs(opts.DB))
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleStats(op *operator.Operator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, op.Stats())
	}
}

func handleFinalOutcomes(op *operator.Operator) gin.HandlerFunc {
	return func(c *gin.Context) {
		channel := c.Query("channel")
		if channel == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "channel query parameter is required"})
			return
		}
		data, err := op.FinalOutcomes(channel, c.Query("thread"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	}
}

func handleQueue(q *fairness.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.Query("user"); userID != "" {
			st, err := q.Status(userID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, st)
			return
		}
		all, err := q.StatusAll()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, all)
	}
}

func handleJobs(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := jobs.List(db, jobs.ListFilters{
			UserID: c.Query("user"),
			Status: c.Query("status"),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, recs)
	}
}
