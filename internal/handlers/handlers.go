package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/internal/services/session"
	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/pkg/youtube"
	"github.com/gcottom/go-zaplog"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	Sessions *session.Service
}

func SetupRoutes(router *gin.Engine, sessionService *session.Service) {
	handler := &Handlers{Sessions: sessionService}
	router.GET("/start", handler.StartRun)
	router.GET("/cancel", handler.CancelRun)
	router.GET("/progress", handler.GetProgress)
	router.GET("/results", handler.GetResults)
	router.GET("/item", handler.DownloadItem)
	router.GET("/archive", handler.DownloadArchive)
}

func (h *Handlers) StartRun(ctx *gin.Context) {
	rawURL := ctx.Query("url")
	if rawURL == "" {
		zaplog.WarnC(ctx, "start request without url present: url is required")
		ResponseFailure(ctx, errors.New("start request without url present: url is required"))
		return
	}
	format, err := youtube.ParseFormat(ctx.DefaultQuery("format", string(youtube.FormatAudio)))
	if err != nil {
		zaplog.WarnC(ctx, "start request with unsupported format", zap.Error(err))
		ResponseFailure(ctx, err)
		return
	}
	limit := 0
	if rawLimit := ctx.Query("limit"); rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil {
			zaplog.WarnC(ctx, "start request with non-numeric limit", zap.String("limit", rawLimit))
			ResponseFailure(ctx, errors.New("limit must be an integer"))
			return
		}
	}
	zaplog.InfoC(ctx, "start request received", zap.String("url", rawURL), zap.String("format", string(format)), zap.Int("limit", limit))
	sessionID, err := h.Sessions.StartRun(ctx, ctx.Query("session"), session.PlaylistRequest{URL: rawURL, Format: format, Limit: limit})
	if err != nil {
		zaplog.ErrorC(ctx, "error starting run", zap.Error(err))
		ResponseFailure(ctx, err)
		return
	}
	zaplog.InfoC(ctx, "run started successfully", zap.String("sessionID", sessionID))
	ResponseSuccess(ctx, StartRunResponse{SessionID: sessionID, State: "ACK"})
}

func (h *Handlers) CancelRun(ctx *gin.Context) {
	sessionID := ctx.Query("session")
	if sessionID == "" {
		zaplog.WarnC(ctx, "cancel request without session present: session is required")
		ResponseFailure(ctx, errors.New("cancel request without session present: session is required"))
		return
	}
	zaplog.InfoC(ctx, "cancel request received", zap.String("sessionID", sessionID))
	h.Sessions.CancelRun(ctx, sessionID)
	ResponseSuccess(ctx, StartRunResponse{SessionID: sessionID, State: "ACK"})
}

func (h *Handlers) GetProgress(ctx *gin.Context) {
	sessionID := ctx.Query("session")
	if sessionID == "" {
		zaplog.WarnC(ctx, "progress request without session present: session is required")
		ResponseFailure(ctx, errors.New("progress request without session present: session is required"))
		return
	}
	report, err := h.Sessions.Progress(ctx, sessionID)
	if err != nil {
		zaplog.WarnC(ctx, "error getting progress", zap.String("sessionID", sessionID), zap.Error(err))
		ResponseNotFound(ctx, err)
		return
	}
	ResponseSuccess(ctx, report)
}

func (h *Handlers) GetResults(ctx *gin.Context) {
	sessionID := ctx.Query("session")
	if sessionID == "" {
		zaplog.WarnC(ctx, "results request without session present: session is required")
		ResponseFailure(ctx, errors.New("results request without session present: session is required"))
		return
	}
	items, err := h.Sessions.Results(ctx, sessionID)
	if err != nil {
		zaplog.WarnC(ctx, "error getting results", zap.String("sessionID", sessionID), zap.Error(err))
		ResponseNotFound(ctx, err)
		return
	}
	ResponseSuccess(ctx, ResultsResponse{Count: len(items), Items: items})
}

func (h *Handlers) DownloadItem(ctx *gin.Context) {
	sessionID := ctx.Query("session")
	token := ctx.Query("token")
	if sessionID == "" || token == "" {
		zaplog.WarnC(ctx, "item request missing session or token")
		ResponseFailure(ctx, errors.New("item request requires session and token"))
		return
	}
	item, err := h.Sessions.Item(ctx, sessionID, token)
	if err != nil {
		zaplog.WarnC(ctx, "error getting item", zap.String("sessionID", sessionID), zap.String("token", token), zap.Error(err))
		ResponseNotFound(ctx, err)
		return
	}
	if item.Status != session.StatusSucceeded {
		zaplog.WarnC(ctx, "item requested but not downloadable", zap.String("token", token), zap.String("status", item.Status))
		ResponseFailure(ctx, fmt.Errorf("item %d is not downloadable: %s", item.Index, item.Error))
		return
	}
	zaplog.InfoC(ctx, "serving item", zap.String("sessionID", sessionID), zap.String("filename", item.Filename), zap.Int("bytes", len(item.Payload)))
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.Filename))
	ctx.Data(200, item.MIMEType, item.Payload)
}

func (h *Handlers) DownloadArchive(ctx *gin.Context) {
	sessionID := ctx.Query("session")
	if sessionID == "" {
		zaplog.WarnC(ctx, "archive request without session present: session is required")
		ResponseFailure(ctx, errors.New("archive request without session present: session is required"))
		return
	}
	archive, err := h.Sessions.BuildArchive(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			ResponseNotFound(ctx, err)
			return
		}
		zaplog.WarnC(ctx, "error building archive", zap.String("sessionID", sessionID), zap.Error(err))
		ResponseFailure(ctx, err)
		return
	}
	zaplog.InfoC(ctx, "serving archive", zap.String("sessionID", sessionID), zap.String("name", archive.Name), zap.Int("bytes", len(archive.Data)))
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Name))
	ctx.Data(200, "application/zip", archive.Data)
}
