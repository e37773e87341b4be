package upstream

import (
	"context"
	"net/http"
)

type Option func(*Options)

type Options struct {
	Location       string
	Model          string
	EmbeddingModel string
	Client         *http.Client
	Context        context.Context
}

func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithEmbeddingModel(model string) Option {
	return func(o *Options) {
		o.EmbeddingModel = model
	}
}

func WithClient(client *http.Client) Option {
	return func(o *Options) {
		o.Client = client
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Location:       "http://localhost:8080",
		Model:          "llama3",
		EmbeddingModel: "all-MiniLM-L6-v2",
		Context:        context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
