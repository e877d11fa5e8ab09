// Package sample is a small client library used as a fixture.
package sample

import (
	"bytes"
	"context"
	"iter"

	"example.com/sample/store"
)

// Buffer re-exports a standard library type.
type Buffer = bytes.Buffer

// Store re-exports the child package's store.
type Store = store.Store

// Base carries shared state.
type Base struct {
	id string
}

// ID returns the identifier.
func (b *Base) ID() string { return b.id }

// Client talks to the sample service.
type Client struct {
	Base
	addr string
}

// Option configures a Client.
type Option func(*Client)

// Celsius has no methods and is not reported.
type Celsius float64

// Event is one change notification.
type Event struct {
	Key string
}

// NewClient builds a client for addr.
func NewClient(addr string, opts ...Option) *Client {
	c := &Client{addr: addr}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get fetches one value.
func (c *Client) Get(ctx context.Context, key string) (string, error) { return key, ctx.Err() }

// Watch streams changes under prefix.
func (c *Client) Watch(ctx context.Context, prefix string) <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

// Keys iterates the known keys.
func (c *Client) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {}
}

func (c *Client) reset() { c.addr = "" }

// Reader is implemented by readable stores.
type Reader interface {
	// Read returns the value for key.
	Read(key string) ([]byte, error)
}

// ReadCloser adds Close to Reader.
type ReadCloser interface {
	Reader
	// Close releases the reader.
	Close() error
}

func helper() {}
