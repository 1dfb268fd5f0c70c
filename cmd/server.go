package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/config"
	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/internal"
	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/internal/handlers"
	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/internal/services/meta"
	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/internal/services/session"
	"github.com/Tharinda-Pamindu/youtube-playlist-downloader/pkg/youtube"
	"github.com/fatih/color"
	"github.com/gcottom/go-zaplog"
	"github.com/gcottom/qgin/qgin"
	"github.com/gcottom/semaphore"
	"github.com/gin-contrib/cors"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

func init() {
	c := color.New(color.FgCyan)
	c.Print(`
::::    ::::      :::::::::
+:+:+: :+:+:+     :+:    :+:
+:+ +:+:+ +:+     +:+    +:+
+#+  +:+  +#+     +#++:++#+
+#+       +#+     +#+    +#+
#+#       #+#     #+#    #+#
###       ###     #########
|------------------------------------------------------------|
|        Music Bank Playlist Download Service v1.0.0          |
|------------------------------------------------------------|
   `)
}

func main() {
	if err := RunServer(); err != nil {
		panic(err)
	}
}

func RunServer() error {
	ctx := zaplog.CreateAndInject(context.Background())
	zaplog.InfoC(ctx, "starting playlist download server...")

	cfg, err := config.LoadConfigFromFile("")
	if err != nil {
		zaplog.ErrorC(ctx, "failed to load config", zap.Error(err))
		return err
	}

	zaplog.InfoC(ctx, "checking for ffmpeg...")
	if err := internal.EnsureFFmpeg(); err != nil {
		zaplog.ErrorC(ctx, "ffmpeg unavailable", zap.Error(err))
		return err
	}

	zaplog.InfoC(ctx, "creating meta service...")
	metaService := &meta.Service{SpotifyConfig: &clientcredentials.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}}

	zaplog.InfoC(ctx, "creating session service...")
	sessionService := &session.Service{
		DownloadLimiter:   semaphore.NewSemaphore(2),
		ConversionLimiter: semaphore.NewSemaphore(2),
		MetaLimiter:       semaphore.NewSemaphore(2),
		Sessions:          new(sync.Map),
		Fetcher:           youtube.NewClient(),
		Converter:         internal.Converter{},
		Tagger:            metaService,
		MixAutoLimit:      cfg.MixAutoLimit,
		MaxItems:          cfg.MaxPlaylistItems,
		SessionTTL:        time.Duration(cfg.SessionTTLMinutes) * time.Minute,
	}

	zaplog.InfoC(ctx, "creating gin engine...")
	ginws := qgin.NewGinEngine(&ctx, &qgin.Config{
		UseContextMW:       true,
		UseLoggingMW:       true,
		UseRequestIDMW:     false,
		InjectRequestIDCTX: false,
		LogRequestID:       false,
		ProdMode:           true,
	})
	ginws.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	zaplog.InfoC(ctx, "setting up routes...")
	handlers.SetupRoutes(ginws, sessionService)

	zaplog.InfoC(ctx, "starting session janitor...")
	go sessionService.SessionJanitor()

	zaplog.InfoC(ctx, "setup complete, starting server...")
	zaplog.InfoC(ctx, "now listening and serving on port "+cfg.Port+"!")
	return http.ListenAndServe(":"+cfg.Port, ginws)
}
