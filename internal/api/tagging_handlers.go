package api

import (
	"net/http"

	"github.com/maproxy/maproxy/internal/http/response"
)

// msgInvalidPath is returned for any route the tagging client should not call.
const msgInvalidPath = "Invalid Path"

func (s *Server) registerTaggingRoutes() {
	s.router.Get("/search", s.handleSearch)
	s.router.Get("/search_full", s.handleSearchFull)
	s.router.Get("/search_artist", s.handleSearchArtist)
	s.router.Get("/album", s.handleAlbum)
	s.router.Get("/album_full", s.handleAlbumFull)
	s.router.Get("/artist_info", s.handleArtistInfo)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.metadata.SearchAlbums(r.Context(), q.Get("artist"), q.Get("album"))
	s.reply(w, res, err)
}

func (s *Server) handleSearchFull(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.metadata.SearchAlbumsFull(r.Context(), q.Get("artist"), q.Get("album"))
	s.reply(w, res, err)
}

func (s *Server) handleSearchArtist(w http.ResponseWriter, r *http.Request) {
	res, err := s.metadata.SearchArtists(r.Context(), r.URL.Query().Get("artist"))
	s.reply(w, res, err)
}

func (s *Server) handleAlbum(w http.ResponseWriter, r *http.Request) {
	res, err := s.metadata.GetAlbum(r.Context(), r.URL.Query().Get("url"))
	s.reply(w, res, err)
}

func (s *Server) handleAlbumFull(w http.ResponseWriter, r *http.Request) {
	res, err := s.metadata.GetAlbumWithArtist(r.Context(), r.URL.Query().Get("url"))
	s.reply(w, res, err)
}

func (s *Server) handleArtistInfo(w http.ResponseWriter, r *http.Request) {
	res, err := s.metadata.GetArtist(r.Context(), r.URL.Query().Get("url"))
	s.reply(w, res, err)
}

func (s *Server) handleFavicon(w http.ResponseWriter, _ *http.Request) {
	response.NoContent(w)
}

func (s *Server) handleInvalidPath(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("invalid path", "method", r.Method, "path", r.URL.Path)
	response.Error(w, msgInvalidPath, s.logger)
}

func (s *Server) reply(w http.ResponseWriter, data any, err error) {
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, data, s.logger)
}
