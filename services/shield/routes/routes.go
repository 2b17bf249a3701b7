// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianShield/services/shield/handlers"
)

// Deps are the collaborators the route handlers need. All are injected;
// the routes package holds no state of its own.
type Deps struct {
	Assessor handlers.Assessor
	Answerer handlers.Answerer
	Memory   handlers.ContextProvider
	Sessions handlers.SessionEnder
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/scan/assess", handlers.HandleAssess(deps.Assessor))
		v1.POST("/chat/ask", handlers.HandleAsk(deps.Answerer, deps.Memory))
		v1.POST("/session/logout", handlers.HandleLogout(deps.Sessions))
	}
}
