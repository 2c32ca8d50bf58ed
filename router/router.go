package router

import (
	"database/sql"
	"net/http"

	"deshhindi/config"
	composeHandler "deshhindi/internal/compose"
	composeService "deshhindi/internal/compose/service"
	"deshhindi/internal/refine"
	sessionHandler "deshhindi/internal/session"
	sessionRepository "deshhindi/internal/session/repository"
	sessionService "deshhindi/internal/session/service"
	wpmHandler "deshhindi/internal/wpm"
	wpmRepository "deshhindi/internal/wpm/repository"
	wpmService "deshhindi/internal/wpm/service"
	"deshhindi/middleware"
	"deshhindi/socket"
)

func Setup(cfg *config.Config, db *sql.DB, hub *socket.Hub, translit composeService.Transliterator, passages *wpmService.Passages) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthMiddleware(cfg.JWTSecret)

	// WebSocket
	socket.AllowOrigins(cfg.AllowedOrigins)
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r, middleware.UserID(r))
	})
	mux.Handle("/ws", auth(wsHandler))

	// Sessions
	refiner := refine.NewClient(refine.Config{
		BaseURL:         cfg.Refine.BaseURL,
		APIKey:          cfg.Refine.APIKey,
		Model:           cfg.Refine.Model,
		Temperature:     cfg.Refine.Temperature,
		MaxOutputTokens: cfg.Refine.MaxOutputTokens,
		Timeout:         cfg.Refine.Timeout,
	})
	sessionSvc := sessionService.NewSessionService(sessionRepository.NewSessionRepository(db), refiner, hub)
	sessions := sessionHandler.NewSessionHandler(sessionSvc)

	mux.Handle("/api/sessions", auth(http.HandlerFunc(sessions.ListSessions)))
	mux.Handle("/api/sessions/create", auth(http.HandlerFunc(sessions.CreateSession)))
	mux.Handle("/api/sessions/get", auth(http.HandlerFunc(sessions.GetSession)))
	mux.Handle("/api/sessions/update", auth(http.HandlerFunc(sessions.UpdateSession)))
	mux.Handle("/api/sessions/delete", auth(http.HandlerFunc(sessions.DeleteSession)))
	mux.Handle("/api/sessions/refine", auth(http.HandlerFunc(sessions.RefineSession)))
	mux.Handle("/api/sessions/export", auth(http.HandlerFunc(sessions.ExportSession)))
	mux.Handle("/api/sessions/image", auth(http.HandlerFunc(sessions.UploadImage)))
	mux.Handle("/api/preferences", auth(http.HandlerFunc(sessions.Preferences)))

	// Editor
	compose := composeHandler.NewComposeHandler(composeService.NewComposeService(translit))

	mux.Handle("/api/editor/suggest", auth(http.HandlerFunc(compose.Suggest)))
	mux.Handle("/api/editor/apply", auth(http.HandlerFunc(compose.Apply)))
	mux.Handle("/api/editor/key", auth(http.HandlerFunc(compose.Key)))
	mux.Handle("/api/editor/dictate", auth(http.HandlerFunc(compose.Dictate)))
	mux.Handle("/api/editor/dictation", auth(http.HandlerFunc(compose.DictationConfig)))

	// Typing test
	wpm := wpmHandler.NewWPMHandler(wpmService.NewWPMService(wpmRepository.NewResultRepository(db), passages))

	mux.Handle("/api/wpm/start", auth(http.HandlerFunc(wpm.Start)))
	mux.Handle("/api/wpm/input", auth(http.HandlerFunc(wpm.Input)))
	mux.Handle("/api/wpm/results", auth(http.HandlerFunc(wpm.Results)))

	return middleware.RequestLogger(middleware.CORSMiddleware(cfg.AllowedOrigins)(mux))
}
