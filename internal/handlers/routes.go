package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the central API on the given engine
func RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// Ingest
		api.POST("/accidents/report", ReportAccident)
		api.POST("/mobile/report", ReportMobile)

		// Review
		api.GET("/incidents", ListIncidents)
		api.GET("/incidents/:id", GetIncident)
		api.POST("/incidents/:id/action", ApplyIncidentAction)
		api.GET("/media/:id", GetMedia)

		// Learning loop
		api.POST("/feedback", SubmitFeedback)
		api.POST("/retrain", TriggerRetrain)
		api.GET("/model/version", GetModelVersion)
		api.GET("/model/download/:filename", DownloadModel)

		// Edge fleet
		api.POST("/edge/heartbeat", EdgeHeartbeat)
		api.GET("/edge/nodes", ListEdgeNodes)

		// Live feed stats
		api.GET("/feeds/stats", GetHubStats)
	}

	r.GET("/ws/incidents", HandleIncidentWebSocket)
}
