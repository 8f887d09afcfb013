package main

import (
	"github.com/julienschmidt/httprouter"
)

// SetupBookRoutes injects the book related api endpoints. The stats,
// bookshelves and export reads live under the :id wildcard and are
// dispatched by GetBookResource.
func (api *APIHandler) SetupBookRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	router.GET("/", m.public(api.Index))
	router.GET("/status", m.public(api.Status))
	router.GET("/api/books", m.public(api.GetAllBooks))
	router.GET("/api/books/:id", m.public(api.GetBookResource))
	router.POST("/api/books", m.public(api.CreateBook))
	router.POST("/api/books/import", m.public(api.ImportBooks))
	router.PUT("/api/books/:id", m.public(api.UpdateBook))
	router.DELETE("/api/books/:id", m.public(api.DeleteOneBook))
	return router
}
