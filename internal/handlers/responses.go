package handlers

import (
	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/internal/services/session"
	"github.com/gin-gonic/gin"
)

type Failure struct {
	Error string `json:"error"`
}

type StartRunResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

type ResultsResponse struct {
	Count int                    `json:"count"`
	Items []session.DownloadItem `json:"items"`
}

func ResponseFailure(ctx *gin.Context, err error) {
	ctx.AbortWithError(400, err)
}

func ResponseNotFound(ctx *gin.Context, err error) {
	ctx.AbortWithError(404, err)
}

func ResponseInternalError(ctx *gin.Context, err error) {
	ctx.AbortWithError(500, err)
}

func ResponseSuccess(ctx *gin.Context, data any) {
	ctx.JSON(200, data)
}
