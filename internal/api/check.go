// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package api

import (
	"github.com/alvinbaena/credcheck/internal/match"
	"github.com/alvinbaena/credcheck/internal/protocol"
	"github.com/alvinbaena/credcheck/internal/server"
	"github.com/gin-gonic/gin"
	"net/http"
)

type checkApi struct {
	engine *match.Engine
	parser protocol.Parser
}

func (a *checkApi) respond(c *gin.Context, q protocol.Query, hashes ...string) {
	for _, h := range hashes {
		if err := a.parser.Validate(h); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}

	v := a.engine.Evaluate(q)
	c.JSON(http.StatusOK, verdictResponse{Verdict: v.String(), Found: v.Positive()})
}

func (a *checkApi) checkUsername(c *gin.Context) {
	var req hashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	a.respond(c, protocol.UsernameQuery(req.Hash), req.Hash)
}

func (a *checkApi) checkPassword(c *gin.Context) {
	var req hashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	a.respond(c, protocol.PasswordQuery(req.Hash), req.Hash)
}

func (a *checkApi) checkBoth(c *gin.Context) {
	var req bothRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	a.respond(c, protocol.BothQuery(req.Username, req.Password), req.Username, req.Password)
}

// RegisterCheckApi adds the username, password and both checks to group. Hashes are
// validated like protocol queries, strict when strict is set.
func RegisterCheckApi(group *gin.RouterGroup, engine *match.Engine, strict bool) {
	a := &checkApi{engine: engine, parser: protocol.Parser{Strict: strict}}

	group.POST("/username", a.checkUsername)
	group.POST("/password", a.checkPassword)
	group.POST("/both", a.checkBoth)
}

// RegisterStatsApi serves the protocol server counters.
func RegisterStatsApi(group *gin.RouterGroup, stats func() server.Snapshot) {
	group.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, stats())
	})
}
