package server

import (
	"log/slog"

	"openrag/app/api"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    64 * 1024 * 1024,
}

type Server struct {
	listenAddr string
	app        *fiber.App
	logger     *slog.Logger
}

func New(addr string, svc api.Service) *Server {
	var (
		app               = fiber.New(config)
		checkHandler      = api.NewCheckHandler(svc)
		documentHandler   = api.NewDocumentHandler(svc)
		queryHandler      = api.NewQueryHandler(svc)
		collectionHandler = api.NewCollectionHandler(svc)
	)

	app.Get("/health", checkHandler.HandleHealthy)
	app.Post("/process-query", queryHandler.HandleQuery)
	app.Post("/documents/ingest", documentHandler.HandleIngest)
	app.Get("/documents", documentHandler.HandleListDocuments)
	app.Get("/documents/:id", documentHandler.HandleGetDocument)
	app.Delete("/documents/:id", documentHandler.HandleDeleteDocument)
	app.Post("/documents/:id/reprocess", documentHandler.HandleReprocess)
	app.Get("/collections", collectionHandler.HandleListCollections)

	return &Server{
		listenAddr: addr,
		app:        app,
		logger:     slog.Default(),
	}
}

func (s *Server) Run() error {
	s.logger.Info("server listening", "addr", s.listenAddr)
	return s.app.Listen(s.listenAddr)
}

func (s *Server) Stop() {
	if err := s.app.Shutdown(); err != nil {
		s.logger.Error("server shutdown", "error", err)
		return
	}
	s.logger.Info("server stopped")
}
