package backend

import (
	"context"
	"fmt"

	"github.com/palona/shopchat/backend/internal/model/conversation"
)

// Endpoint paths served by the recommendation backend.
const (
	EndpointClassifyIntent = "/classify-intent"
	EndpointSearchProducts = "/search-products"
	EndpointChat           = "/chat"
	EndpointImageSearch    = "/image-search"
)

// Product is a search result as the backend returns it.
type Product = conversation.Product

// Backend is the remote collaborator the dispatcher talks to. Optional
// response fields come back as zero values.
type Backend interface {
	ClassifyIntent(ctx context.Context, message string) (bool, error)
	SearchProducts(ctx context.Context, message string) ([]Product, error)
	Chat(ctx context.Context, message string) (string, error)
	SearchImage(ctx context.Context, file File) (ImageResult, error)
}

// File is an image picked by the user.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ImageResult is the caption and matching products for an uploaded image.
type ImageResult struct {
	Caption string    `json:"caption"`
	Results []Product `json:"results"`
}

// StatusError reports a non-2xx answer from the backend.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned status %d", e.Endpoint, e.Code)
}

type messageRequest struct {
	Message string `json:"message"`
}

type intentResponse struct {
	IsProduct bool `json:"is_product"`
}

type searchResponse struct {
	Results []Product `json:"results"`
}

type chatResponse struct {
	Response string `json:"response"`
}
