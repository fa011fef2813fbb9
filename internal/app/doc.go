// Package app provides the application service layer.
//
// Service applies counter and radius use cases to the shared store and publishes the
// resulting pushes. NewDispatcher binds those use cases to their wire method names.
package app
