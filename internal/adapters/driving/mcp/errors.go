// Package mcp provides an MCP (Model Context Protocol) server adapter for tome.
// It lets AI assistants search indexed rulebooks and get answers with
// book and page citations.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// ErrMissingIngestionService is returned by job tools when no ingestion
// service was provided.
var ErrMissingIngestionService = errors.New("mcp: ingestion service is not available")
